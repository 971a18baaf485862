// Package events carries appointment lifecycle notifications out of the
// booking path. Publishing happens after commit and never fails a booking.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
)

type Kind string

const (
	KindCreated     Kind = "appointment.created"
	KindRescheduled Kind = "appointment.rescheduled"
	KindCancelled   Kind = "appointment.cancelled"
	KindCompleted   Kind = "appointment.completed"
)

type Event struct {
	ID          uuid.UUID          `json:"event_id"`
	Kind        Kind               `json:"event_type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Appointment domain.Appointment `json:"appointment"`
	// PreviousStartAt is set on rescheduled events only.
	PreviousStartAt *time.Time `json:"previous_start_at,omitempty"`
}

func New(kind Kind, appt domain.Appointment, at time.Time) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{ID: id, Kind: kind, OccurredAt: at.UTC(), Appointment: appt}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
