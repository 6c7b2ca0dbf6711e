// Package events publishes domain events.
//
// Publication is fire-and-forget: failures are logged and never returned to
// the workflow that raised the event.
package events

import (
	"context"
	"time"
)

// Event kinds. The published subject is "<prefix>.<kind>".
const (
	DecisionCaptured    = "decision.captured"
	ReflectionSubmitted = "reflection.submitted"
	PrinciplesExtracted = "principles.extracted"
	WeeklyAnalyzed      = "weekly.analyzed"
)

// Event is the JSON envelope published for every kind.
type Event struct {
	Kind       string         `json:"kind"`
	UserID     string         `json:"user_id"`
	EntityID   string         `json:"entity_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close() error
}

// New returns an Event stamped with the current time.
func New(kind, userID, entityID string, attrs map[string]any) Event {
	return Event{
		Kind:       kind,
		UserID:     userID,
		EntityID:   entityID,
		Attributes: attrs,
		OccurredAt: time.Now().UTC(),
	}
}

// Noop discards events.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) {}

// Close does nothing.
func (Noop) Close() error { return nil }
