package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"slotline/backend/internal/availability"
	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

// maxParallelProviders bounds concurrent per-provider resolution.
const maxParallelProviders = 8

// GetAvailableSlots lists, per provider and civil date in [DateFrom, DateTo],
// the slots where the service fits. Providers without a calendar and days
// without slots are omitted. Results are ordered by provider, then date.
func (s *Service) GetAvailableSlots(ctx context.Context, q SlotQuery) (out []DaySlots, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.GetAvailableSlots")
	defer func() { endSpan(span, err) }()

	if err := s.validate.Struct(q); err != nil {
		return nil, err
	}
	from := civil(q.DateFrom)
	to := civil(q.DateTo)
	if to.Before(from) {
		return nil, validationError("date_to must not be before date_from")
	}
	days := int(to.Sub(from)/(24*time.Hour)) + 1
	if days > s.maxRangeDays {
		return nil, validationError(fmt.Sprintf("date range must not exceed %d days", s.maxRangeDays))
	}

	svc, err := s.store.GetService(ctx, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", q.ServiceID, err)
	}

	var providers []domain.Provider
	if q.ProviderID != nil {
		p, err := s.store.GetProvider(ctx, *q.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", *q.ProviderID, err)
		}
		if q.LocationID != uuid.Nil && p.LocationID != q.LocationID {
			return nil, fmt.Errorf("provider %s at location %s: %w", p.ID, q.LocationID, store.ErrNotFound)
		}
		providers = []domain.Provider{p}
	} else {
		providers, err = s.store.ListActiveProviders(ctx, q.LocationID)
		if err != nil {
			return nil, err
		}
	}
	span.SetAttributes(
		attribute.Int("slotline.providers", len(providers)),
		attribute.Int("slotline.days", days),
	)

	perProvider := make([][]DaySlots, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProviders)
	for i, p := range providers {
		g.Go(func() error {
			res, err := s.providerSlots(gctx, p, svc, from, days)
			if err != nil {
				return err
			}
			perProvider[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range perProvider {
		out = append(out, res...)
	}
	return out, nil
}

func (s *Service) providerSlots(ctx context.Context, p domain.Provider, svc domain.ServiceSpec, from time.Time, days int) ([]DaySlots, error) {
	var out []DaySlots
	for d := 0; d < days; d++ {
		date := from.AddDate(0, 0, d)
		res, err := s.resolver.ResolveWindows(ctx, p.ID, date)
		if err != nil {
			return nil, fmt.Errorf("provider %s on %s: %w", p.ID, date.Format(time.DateOnly), err)
		}
		if len(res.Windows) == 0 {
			if res.Calendar.ID == uuid.Nil {
				// No calendar: nothing on any day.
				return nil, nil
			}
			continue
		}

		var slots []TimeSlot
		for slot := range availability.GenerateSlots(res.Windows, svc.DurationMinutes, svc.BufferMinutes, s.stepMinutes) {
			startAt, endAt := slot.Instants(res.Date, res.Location)
			slots = append(slots, TimeSlot{Start: slot.Start, End: slot.End, StartAt: startAt, EndAt: endAt})
		}
		if len(slots) == 0 {
			continue
		}
		out = append(out, DaySlots{
			Date:         res.Date,
			ProviderID:   p.ID,
			ProviderName: p.DisplayName,
			Timezone:     res.Location.String(),
			Slots:        slots,
		})
	}
	return out, nil
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
