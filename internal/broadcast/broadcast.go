// Package broadcast mirrors published events to other processes. Every
// broadcaster is best effort: the bus runs it on a detached task and only logs
// its errors.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/pilarhub/eventcore/internal/events"
)

// Message is the mirrored body: {"id","payload","timestamp"}.
type Message struct {
	ID        string         `json:"id"`
	Payload   map[string]any `json:"payload"`
	Timestamp string         `json:"timestamp"`
}

// NewMessage builds the mirrored body of e. Timestamp is RFC 3339 UTC.
func NewMessage(e *events.Event) Message {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{
		ID:        e.ID,
		Payload:   payload,
		Timestamp: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Channel returns the Redis channel events of type t are published on.
func Channel(t events.Type) string {
	return "events:" + string(t)
}

// Broadcaster mirrors one event.
type Broadcaster interface {
	Broadcast(ctx context.Context, e *events.Event) error
}

// Multi fans an event out to several broadcasters. Every target is tried;
// the errors are joined.
type Multi []Broadcaster

func (m Multi) Broadcast(ctx context.Context, e *events.Event) error {
	var errs []error
	for _, b := range m {
		if err := b.Broadcast(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) Broadcast(context.Context, *events.Event) error { return nil }
