package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/lease"
)

type CalendarRepository interface {
	GetCalendar(ctx context.Context, providerID uuid.UUID) (domain.Calendar, error)
	CreateCalendar(ctx context.Context, cal domain.Calendar) (domain.Calendar, error)
	UpdateCalendarTimezone(ctx context.Context, calendarID uuid.UUID, timezone string) (domain.Calendar, error)

	ListRules(ctx context.Context, calendarID uuid.UUID) ([]domain.AvailabilityRule, error)
	ListActiveRules(ctx context.Context, calendarID uuid.UUID, dayOfWeek int16, date time.Time) ([]domain.AvailabilityRule, error)
	// ReplaceRules deletes every rule of the calendar and inserts rules atomically.
	ReplaceRules(ctx context.Context, calendarID uuid.UUID, rules []domain.AvailabilityRule) ([]domain.AvailabilityRule, error)

	ListBlocksOverlapping(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error)
	ListBlocksStartingBetween(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error)
	ListRecurringBlocks(ctx context.Context, calendarID uuid.UUID, startingBefore time.Time) ([]domain.TimeBlock, error)
	CreateBlock(ctx context.Context, block domain.TimeBlock) (domain.TimeBlock, error)
	DeleteBlock(ctx context.Context, calendarID, blockID uuid.UUID) error
}

// CatalogReader exposes the provider and service catalog, which this service
// never writes.
type CatalogReader interface {
	GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error)
	ListActiveProviders(ctx context.Context, locationID uuid.UUID) ([]domain.Provider, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (domain.ServiceSpec, error)
}

type AppointmentRepository interface {
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	// ListConfirmedOverlapping returns confirmed appointments of the provider
	// intersecting [from,to), skipping exclude when it is not uuid.Nil.
	ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error)
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.ChangeHistory, error)

	// InProviderDayTransaction runs fn in one transaction holding the
	// exclusive lease for key from before fn's first read until commit or
	// rollback.
	InProviderDayTransaction(ctx context.Context, key lease.Key, fn func(ctx context.Context, tx BookingTx) error) error
	// InTransaction runs fn in one transaction without a provider-day lease.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}

// BookingTx is the write side available inside a transaction. Nothing it
// writes is visible to others until the transaction commits.
type BookingTx interface {
	GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	AppendHistory(ctx context.Context, entry domain.ChangeHistory) (domain.ChangeHistory, error)
}

type Store interface {
	CalendarRepository
	CatalogReader
	AppointmentRepository
}
