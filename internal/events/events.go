package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"

	eventVersion = "1.0.0"
)

type Event struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	EventVersion  string         `json:"event_version"`
	Timestamp     string         `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload"`
}

func New(eventType, correlationID string, payload map[string]any) Event {
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// Publisher delivers domain events. Routing uses the event type.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
