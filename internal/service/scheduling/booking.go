package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/events"
	"slotline/backend/internal/store"
)

// BookAppointment commits a confirmed appointment for the service's duration
// starting at in.StartAt, unless it would overlap another confirmed
// appointment of the provider. A replay with the same idempotency key returns
// the original appointment.
func (s *Service) BookAppointment(ctx context.Context, in BookInput) (out domain.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.BookAppointment")
	defer func() { endSpan(span, err) }()

	in.ClientRef = strings.TrimSpace(in.ClientRef)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := s.validate.Struct(in); err != nil {
		return domain.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("slotline.provider_id", in.ProviderID.String()),
		attribute.String("slotline.service_id", in.ServiceID.String()),
	)

	svc, err := s.store.GetService(ctx, in.ServiceID)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("service %s: %w", in.ServiceID, err)
	}
	if svc.DurationMinutes <= 0 {
		return domain.Appointment{}, validationError("service has no duration")
	}
	if _, err := s.store.GetProvider(ctx, in.ProviderID); err != nil {
		return domain.Appointment{}, fmt.Errorf("provider %s: %w", in.ProviderID, err)
	}

	start := in.StartAt.UTC()
	source := in.Source
	if source == "" {
		source = domain.SourceManual
	}
	currency := svc.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	appt := domain.Appointment{
		LocationID:      in.LocationID,
		ProviderID:      in.ProviderID,
		ServiceID:       in.ServiceID,
		ClientRef:       in.ClientRef,
		Status:          domain.StatusConfirmed,
		StartAt:         start,
		EndAt:           start.Add(time.Duration(svc.DurationMinutes) * time.Minute),
		DurationMinutes: svc.DurationMinutes,
		Price:           svc.Price,
		Currency:        currency,
		Notes:           in.Notes,
		Source:          source,
	}
	if in.IdempotencyKey != "" {
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotline:book_appointment:"+in.ProviderID.String()+":"+in.ClientRef+":"+in.IdempotencyKey))
	}

	key, err := s.leaseKey(ctx, in.ProviderID, start)
	if err != nil {
		return domain.Appointment{}, err
	}

	replayed := false
	err = s.store.InProviderDayTransaction(ctx, key, func(ctx context.Context, tx store.BookingTx) error {
		if appt.ID != uuid.Nil {
			existing, err := tx.GetAppointmentForUpdate(ctx, appt.ID)
			switch {
			case err == nil:
				if !existing.SameBooking(appt) {
					return store.ErrIdempotencyConflict
				}
				out, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		clash, err := tx.ListConfirmedOverlapping(ctx, appt.ProviderID, appt.StartAt, appt.EndAt, uuid.Nil)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return conflictf("slot already booked for provider %s", appt.ProviderID)
		}

		inserted, err := tx.InsertAppointment(ctx, appt)
		if err != nil {
			return err
		}
		h := historyEntry(inserted, domain.ActionCreated, nil, in.Actor)
		h.NewStartAt = &inserted.StartAt
		if _, err := tx.AppendHistory(ctx, h); err != nil {
			return err
		}
		out = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.bookingConflicts.Add(ctx, 1)
		}
		return domain.Appointment{}, err
	}

	if replayed {
		s.log.DebugContext(ctx, "booking replayed", slog.String("appointment_id", out.ID.String()))
		return out, nil
	}
	s.log.InfoContext(ctx, "appointment booked",
		slog.String("appointment_id", out.ID.String()),
		slog.String("provider_id", out.ProviderID.String()),
		slog.Time("start_at", out.StartAt),
	)
	s.appointmentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(out.Source))))
	s.publish(ctx, events.New(events.KindCreated, out, s.now()))
	return out, nil
}

// RescheduleAppointment moves a confirmed appointment to a new start, keeping
// its duration. The move is one update with one history entry.
func (s *Service) RescheduleAppointment(ctx context.Context, in RescheduleInput) (out domain.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.RescheduleAppointment")
	defer func() { endSpan(span, err) }()

	if err := s.validate.Struct(in); err != nil {
		return domain.Appointment{}, err
	}
	span.SetAttributes(attribute.String("slotline.appointment_id", in.AppointmentID.String()))

	current, err := s.store.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", in.AppointmentID, err)
	}
	if !domain.CanTransition(current.Status, domain.StatusRescheduled) {
		return domain.Appointment{}, conflict(&domain.TransitionError{From: current.Status, To: domain.StatusRescheduled})
	}

	newStart := in.StartAt.UTC()
	key, err := s.leaseKey(ctx, current.ProviderID, newStart)
	if err != nil {
		return domain.Appointment{}, err
	}

	var previousStart time.Time
	err = s.store.InProviderDayTransaction(ctx, key, func(ctx context.Context, tx store.BookingTx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, in.AppointmentID)
		if err != nil {
			return fmt.Errorf("appointment %s: %w", in.AppointmentID, err)
		}
		oldStatus := appt.Status
		previousStart = appt.StartAt
		if err := appt.MoveTo(newStart); err != nil {
			return conflict(err)
		}

		clash, err := tx.ListConfirmedOverlapping(ctx, appt.ProviderID, appt.StartAt, appt.EndAt, appt.ID)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return conflictf("new time slot already booked for provider %s", appt.ProviderID)
		}

		updated, err := tx.UpdateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		h := historyEntry(updated, domain.ActionRescheduled, &oldStatus, in.Actor)
		h.OldStartAt = &previousStart
		h.NewStartAt = &updated.StartAt
		if _, err := tx.AppendHistory(ctx, h); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.log.InfoContext(ctx, "appointment rescheduled",
		slog.String("appointment_id", out.ID.String()),
		slog.Time("previous_start_at", previousStart),
		slog.Time("start_at", out.StartAt),
	)
	evt := events.New(events.KindRescheduled, out, s.now())
	evt.PreviousStartAt = &previousStart
	s.publish(ctx, evt)
	return out, nil
}

// CancelAppointment cancels a confirmed appointment on behalf of actor.
// Providers and admins cancel as the master side, everyone else as the client.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, reason string, actor Actor) (domain.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return domain.Appointment{}, validationError("reason must be at most 500 characters")
	}
	next := actor.cancelStatus()
	return s.transition(ctx, "scheduling.CancelAppointment", appointmentID, next, domain.ActionCancelled, actor,
		func(a *domain.Appointment, h *domain.ChangeHistory) {
			now := s.now()
			a.CancelledAt = &now
			a.CancellationReason = reason
			h.Notes = reason
		},
		events.KindCancelled)
}

func (s *Service) CompleteAppointment(ctx context.Context, appointmentID uuid.UUID, actor Actor) (domain.Appointment, error) {
	return s.transition(ctx, "scheduling.CompleteAppointment", appointmentID, domain.StatusCompleted, domain.ActionCompleted, actor, nil, events.KindCompleted)
}

// MarkNoShow records that the client did not turn up. No event is published.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID uuid.UUID, actor Actor) (domain.Appointment, error) {
	return s.transition(ctx, "scheduling.MarkNoShow", appointmentID, domain.StatusNoShow, domain.ActionNoShow, actor, nil, "")
}

// transition applies a status change that frees or keeps the slot without
// moving it, so it needs the row lock but no provider-day lease.
func (s *Service) transition(
	ctx context.Context,
	spanName string,
	appointmentID uuid.UUID,
	next domain.AppointmentStatus,
	action domain.HistoryAction,
	actor Actor,
	mutate func(*domain.Appointment, *domain.ChangeHistory),
	kind events.Kind,
) (out domain.Appointment, err error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer func() { endSpan(span, err) }()

	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	span.SetAttributes(
		attribute.String("slotline.appointment_id", appointmentID.String()),
		attribute.String("slotline.status", string(next)),
	)

	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return fmt.Errorf("appointment %s: %w", appointmentID, err)
		}
		oldStatus := appt.Status
		if err := appt.Transition(next); err != nil {
			return conflict(err)
		}
		h := historyEntry(appt, action, &oldStatus, actor)
		if mutate != nil {
			mutate(&appt, &h)
		}
		updated, err := tx.UpdateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		if _, err := tx.AppendHistory(ctx, h); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.log.InfoContext(ctx, "appointment status changed",
		slog.String("appointment_id", out.ID.String()),
		slog.String("status", string(out.Status)),
	)
	if kind != "" {
		s.publish(ctx, events.New(kind, out, s.now()))
	}
	return out, nil
}

func (s *Service) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.store.GetAppointment(ctx, appointmentID)
}

// ListAppointments returns every appointment of the provider intersecting
// [windowStart, windowEnd), whatever its status.
func (s *Service) ListAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if !end.After(start) {
		return nil, validationError("window_end must be after window_start")
	}
	return s.store.ListAppointments(ctx, providerID, start, end)
}

// ListHistory returns the appointment's change history, newest first.
func (s *Service) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.ChangeHistory, error) {
	if appointmentID == uuid.Nil {
		return nil, validationError("appointment_id is required")
	}
	if _, err := s.store.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, appointmentID)
}
