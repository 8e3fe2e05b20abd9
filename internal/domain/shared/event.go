package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something the terminal did that other components react to:
// a cart change, a completed or failed sale, a catalog reload.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
}

// BaseDomainEvent is embedded by every terminal event
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID    { return e.ID }
func (e *BaseDomainEvent) EventType() string     { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseDomainEvent stamps a fresh ID and the current time
func NewBaseDomainEvent(eventType string) BaseDomainEvent {
	return BaseDomainEvent{ID: uuid.New(), Type: eventType, Timestamp: time.Now()}
}
