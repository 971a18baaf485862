// Package scheduling answers availability queries and coordinates bookings so
// that no provider ever holds two overlapping confirmed appointments.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"slotline/backend/internal/availability"
	"slotline/backend/internal/domain"
	"slotline/backend/internal/events"
	"slotline/backend/internal/lease"
	"slotline/backend/internal/store"
)

const DefaultMaxRangeDays = 31

const instrumentationName = "slotline/backend/internal/service/scheduling"

var tracer = otel.Tracer(instrumentationName)

type Service struct {
	store     store.Store
	resolver  *availability.Resolver
	publisher events.Publisher
	validate  *validator
	log       *slog.Logger
	now       func() time.Time
	meters    metric.MeterProvider

	appointmentsCreated metric.Int64Counter
	bookingConflicts    metric.Int64Counter

	stepMinutes     int
	maxRangeDays    int
	expandRecurring bool
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meters = mp }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSlotStep sets the distance between consecutive candidate slot starts.
func WithSlotStep(minutes int) Option {
	return func(s *Service) { s.stepMinutes = minutes }
}

// WithMaxRangeDays bounds how many days one availability query may span.
func WithMaxRangeDays(days int) Option {
	return func(s *Service) { s.maxRangeDays = days }
}

func WithRecurringBlocks(enabled bool) Option {
	return func(s *Service) { s.expandRecurring = enabled }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:        st,
		publisher:    events.Nop{},
		log:          slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		stepMinutes:  availability.DefaultStepMinutes,
		maxRangeDays: DefaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "scheduling"))
	if s.meters == nil {
		s.meters = otel.GetMeterProvider()
	}
	meter := s.meters.Meter(instrumentationName)
	s.appointmentsCreated = s.counter(meter, "appointment.created.total", "Appointments booked")
	s.bookingConflicts = s.counter(meter, "booking.conflict.total", "Bookings rejected because the slot was taken")
	s.validate = newValidator()
	s.resolver = availability.NewResolver(st, s.log, availability.WithRecurringBlocks(s.expandRecurring))
	return s
}

func (s *Service) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{appointment}"))
	if err != nil {
		s.log.Warn("metric instrument unavailable", slog.String("metric", name), slog.Any("err", err))
		return noop.Int64Counter{}
	}
	return c
}

// providerLocation returns the timezone of the provider's calendar, or UTC when
// the provider has none yet.
func (s *Service) providerLocation(ctx context.Context, providerID uuid.UUID) (*time.Location, error) {
	cal, err := s.store.GetCalendar(ctx, providerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.UTC, nil
		}
		return nil, err
	}
	return cal.Location()
}

func (s *Service) leaseKey(ctx context.Context, providerID uuid.UUID, start time.Time) (lease.Key, error) {
	loc, err := s.providerLocation(ctx, providerID)
	if err != nil {
		return lease.Key{}, err
	}
	return lease.NewKey(providerID, start, loc), nil
}

// publish hands evt to the publisher. Failures are logged; the change they
// describe is already committed.
func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.WarnContext(ctx, "event publish failed",
			slog.String("event_type", string(evt.Kind)),
			slog.String("appointment_id", evt.Appointment.ID.String()),
			slog.Any("err", err),
		)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func historyEntry(appt domain.Appointment, action domain.HistoryAction, old *domain.AppointmentStatus, actor Actor) domain.ChangeHistory {
	h := domain.ChangeHistory{
		AppointmentID: appt.ID,
		Action:        action,
		OldStatus:     old,
		NewStatus:     appt.Status,
		ChangeSource:  domain.SourceManual,
	}
	if actor.ID != uuid.Nil {
		id := actor.ID
		h.ChangedBy = &id
	}
	return h
}
