package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	DefaultCurrency = "USD"
	SourceManual    = "manual"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                 uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	LocationID         uuid.UUID         `bun:"location_id,notnull,type:uuid" json:"location_id"`
	ProviderID         uuid.UUID         `bun:"provider_id,notnull,type:uuid" json:"provider_id"`
	ServiceID          uuid.UUID         `bun:"service_id,notnull,type:uuid" json:"service_id"`
	ClientRef          string            `bun:"client_ref,notnull" json:"client_ref"`
	Status             AppointmentStatus `bun:"status,notnull" json:"status"`
	StartAt            time.Time         `bun:"start_at,notnull" json:"start_at"`
	EndAt              time.Time         `bun:"end_at,notnull" json:"end_at"`
	DurationMinutes    int               `bun:"duration_minutes,notnull" json:"duration_minutes"`
	Price              decimal.Decimal   `bun:"price,type:numeric(10,2),notnull" json:"price"`
	Currency           string            `bun:"currency,notnull" json:"currency"`
	Notes              string            `bun:"notes" json:"notes,omitempty"`
	Source             string            `bun:"source,notnull" json:"source"`
	CancelledAt        *time.Time        `bun:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string            `bun:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt          time.Time         `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// OverlapsRange reports whether a occupies any part of [start,end).
func (a Appointment) OverlapsRange(start, end time.Time) bool {
	return a.Status.Occupying() && Overlaps(a.StartAt, a.EndAt, start, end)
}

// SameBooking reports whether b requests the same booking as a. Replays of an
// idempotent booking must match on these fields.
func (a Appointment) SameBooking(b Appointment) bool {
	return a.ProviderID == b.ProviderID &&
		a.ServiceID == b.ServiceID &&
		a.LocationID == b.LocationID &&
		a.ClientRef == b.ClientRef &&
		a.StartAt.Equal(b.StartAt) &&
		a.EndAt.Equal(b.EndAt)
}

// Transition moves a to next, or returns a *TransitionError naming the current status.
func (a *Appointment) Transition(next AppointmentStatus) error {
	if !CanTransition(a.Status, next) {
		return &TransitionError{From: a.Status, To: next}
	}
	a.Status = next
	return nil
}

// MoveTo shifts a to a new start, keeping its duration. The move is only
// legal from confirmed and passes through rescheduled, so the stored status
// is confirmed again once it returns.
func (a *Appointment) MoveTo(start time.Time) error {
	if err := a.Transition(StatusRescheduled); err != nil {
		return err
	}
	a.StartAt = start
	a.EndAt = start.Add(a.Duration())
	return a.Transition(StatusConfirmed)
}
