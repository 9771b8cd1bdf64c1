package model

type EventKind string

const (
	EventCreate EventKind = "create"
	EventChange EventKind = "change"
	EventDelete EventKind = "delete"
	EventRename EventKind = "rename"
)

// ChangeEvent is a single raw notification from a watch source.
type ChangeEvent struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}

func (e ChangeEvent) String() string {
	return string(e.Kind) + " " + e.Path
}

// CloneEvents returns a fresh slice holding the same events.
func CloneEvents(events []ChangeEvent) []ChangeEvent {
	if events == nil {
		return nil
	}

	out := make([]ChangeEvent, len(events))
	copy(out, events)
	return out
}
