package history

import (
	"context"
	"time"
)

// EventType names the registrar operation that produced an event.
type EventType string

const (
	EventSync   EventType = "sync"
	EventRemove EventType = "remove"
)

// Record is the outcome of one registrar run.
// Entry is empty for remove runs. Error is empty on success.
type Record struct {
	RunID   string `json:"run_id"`
	User    string `json:"user,omitempty"`
	Entry   string `json:"entry,omitempty"`
	Marker  string `json:"marker"`
	Removed int    `json:"removed"`
	Entries int    `json:"entries"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// Event is an audit record exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for audit events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Reader is implemented by sinks that can list what they stored, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Multi fans an event out to several sinks and returns the first error.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
