package scheduling

import (
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor is whoever requests a change. ID is uuid.Nil for system changes.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// cancelStatus picks the cancellation status for the actor's side.
func (a Actor) cancelStatus() domain.AppointmentStatus {
	switch a.Role {
	case RoleProvider, RoleAdmin:
		return domain.StatusCancelledByMaster
	default:
		return domain.StatusCancelledByClient
	}
}

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleClient, RoleProvider, RoleAdmin, RoleSystem:
		return r, true
	}
	return "", false
}

type SlotQuery struct {
	// LocationID may be omitted when ProviderID is set. When both are set the
	// provider must belong to the location.
	LocationID uuid.UUID `json:"location_id" validate:"required_without=ProviderID"`
	// ProviderID narrows the query to one provider; nil means every active
	// provider of the location.
	ProviderID *uuid.UUID `json:"provider_id"`
	ServiceID  uuid.UUID  `json:"service_id" validate:"required"`
	DateFrom   time.Time  `json:"date_from" validate:"required"`
	DateTo     time.Time  `json:"date_to" validate:"required"`
}

type TimeSlot struct {
	Start   domain.TimeOfDay
	End     domain.TimeOfDay
	StartAt time.Time
	EndAt   time.Time
}

// DaySlots lists the bookable slots of one provider on one civil date.
type DaySlots struct {
	Date         time.Time
	ProviderID   uuid.UUID
	ProviderName string
	Timezone     string
	Slots        []TimeSlot
}

type BookInput struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	ProviderID uuid.UUID `json:"provider_id" validate:"required"`
	ServiceID  uuid.UUID `json:"service_id" validate:"required"`
	ClientRef  string    `json:"client_ref" validate:"required,max=128"`
	StartAt    time.Time `json:"start_at" validate:"required"`
	Notes      string    `json:"notes" validate:"max=2000"`
	Source     string    `json:"source" validate:"omitempty,max=30"`
	// IdempotencyKey makes a retried booking return the first result.
	IdempotencyKey string `json:"idempotency_key" validate:"max=256"`
	Actor          Actor  `json:"-"`
}

type RescheduleInput struct {
	AppointmentID uuid.UUID `json:"appointment_id" validate:"required"`
	StartAt       time.Time `json:"start_at" validate:"required"`
	Actor         Actor     `json:"-"`
}

type RuleInput struct {
	DayOfWeek  int        `json:"day_of_week" validate:"min=0,max=6"`
	StartTime  string     `json:"start_time" validate:"required,hhmm"`
	EndTime    string     `json:"end_time" validate:"required,hhmm"`
	Available  bool       `json:"available"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

type TimeBlockInput struct {
	BlockType      string    `json:"block_type" validate:"required,max=30"`
	Title          string    `json:"title" validate:"max=200"`
	StartAt        time.Time `json:"start_at" validate:"required"`
	EndAt          time.Time `json:"end_at" validate:"required"`
	Recurring      bool      `json:"recurring"`
	RecurrenceRule string    `json:"recurrence_rule" validate:"max=500"`
}
