package model

import "time"

type AggregatorSnapshot struct {
	Targets         []string   `json:"targets"`
	Ready           bool       `json:"ready"`
	Watching        bool       `json:"watching"`
	Flushing        bool       `json:"flushing"`
	Pending         int        `json:"pending"`
	Subscribers     int        `json:"subscribers"`
	Flushes         uint64     `json:"flushes"`
	EventsDelivered uint64     `json:"events_delivered"`
	Failures        uint64     `json:"failures"`
	StartedAt       time.Time  `json:"started_at"`
	LastFlush       *time.Time `json:"last_flush"`
}
