package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeBookingReserved  = "booking.reserved"
	EventTypeBookingReleased  = "booking.released"
)

// Event is a settled fact about one payment attempt or booking.
type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	// LogAttrs are the key/value pairs that identify what the event is about.
	LogAttrs() []any
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBase(eventType string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
