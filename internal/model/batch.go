package model

import (
	"time"

	"gorm.io/gorm"
)

type Batch struct {
	gorm.Model
	Size      int          `gorm:"not null" json:"size"`
	FlushedAt time.Time    `gorm:"not null;index" json:"flushed_at"`
	Events    []BatchEvent `json:"events"`
}

type BatchEvent struct {
	gorm.Model
	BatchID uint      `gorm:"not null;index" json:"batch_id"`
	Seq     int       `gorm:"not null" json:"seq"`
	Kind    EventKind `gorm:"not null" json:"kind"`
	Path    string    `gorm:"not null" json:"path"`
}

func NewBatch(events []ChangeEvent, flushedAt time.Time) Batch {
	batch := Batch{
		Size:      len(events),
		FlushedAt: flushedAt,
		Events:    make([]BatchEvent, 0, len(events)),
	}

	for i, ev := range events {
		batch.Events = append(batch.Events, BatchEvent{
			Seq:  i,
			Kind: ev.Kind,
			Path: ev.Path,
		})
	}

	return batch
}

func (b Batch) ChangeEvents() []ChangeEvent {
	events := make([]ChangeEvent, 0, len(b.Events))
	for _, ev := range b.Events {
		events = append(events, ChangeEvent{Kind: ev.Kind, Path: ev.Path})
	}
	return events
}

// BatchMessage is the wire form of a flushed batch for live consumers.
type BatchMessage struct {
	FlushedAt time.Time      `json:"flushed_at"`
	Size      int            `json:"size"`
	Events    []ChangeEvent  `json:"events"`
	Params    map[string]any `json:"params,omitempty"`
}
