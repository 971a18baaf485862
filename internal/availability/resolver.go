package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

// CalendarReader is the read side of the calendar store used to resolve a day.
type CalendarReader interface {
	GetCalendar(ctx context.Context, providerID uuid.UUID) (domain.Calendar, error)
	ListActiveRules(ctx context.Context, calendarID uuid.UUID, dayOfWeek int16, date time.Time) ([]domain.AvailabilityRule, error)
	ListBlocksOverlapping(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error)
	ListRecurringBlocks(ctx context.Context, calendarID uuid.UUID, startingBefore time.Time) ([]domain.TimeBlock, error)
	ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error)
}

// Resolution is the free time of one provider on one civil date.
type Resolution struct {
	Date     time.Time
	Calendar domain.Calendar
	Location *time.Location
	Windows  []Window
}

type Resolver struct {
	store           CalendarReader
	expandRecurring bool
	log             *slog.Logger
}

type ResolverOption func(*Resolver)

// WithRecurringBlocks expands weekly recurring time blocks into per-day
// occurrences. When off, a block's recurring flag has no effect.
func WithRecurringBlocks(enabled bool) ResolverOption {
	return func(r *Resolver) { r.expandRecurring = enabled }
}

func NewResolver(cal CalendarReader, log *slog.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{
		store: cal,
		log:   log.With(slog.String("component", "availability.resolver")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveWindows computes the disjoint, ascending free windows of providerID on
// the civil date. A provider without a calendar, without rules for that weekday,
// or without any available rule has no windows.
func (r *Resolver) ResolveWindows(ctx context.Context, providerID uuid.UUID, date time.Time) (Resolution, error) {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	res := Resolution{Date: date, Location: time.UTC}

	cal, err := r.store.GetCalendar(ctx, providerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return res, nil
		}
		return Resolution{}, err
	}
	loc, err := cal.Location()
	if err != nil {
		return Resolution{}, err
	}
	res.Calendar = cal
	res.Location = loc

	rules, err := r.store.ListActiveRules(ctx, cal.ID, domain.WeekdayIndex(date), date)
	if err != nil {
		return Resolution{}, err
	}

	var windows []Window
	for _, rule := range rules {
		if !rule.Available {
			continue
		}
		if !rule.Usable() {
			r.log.Warn("skipping unusable availability rule",
				slog.String("rule_id", rule.ID.String()),
				slog.String("start", rule.StartTime.String()),
				slog.String("end", rule.EndTime.String()),
			)
			continue
		}
		windows = append(windows, Window{Start: rule.StartTime, End: rule.EndTime})
	}
	if len(windows) == 0 {
		return res, nil
	}
	windows = Normalize(windows)

	dayStart, dayEnd := domain.DayBounds(date, loc)

	blocks, err := r.blocksForDay(ctx, cal.ID, loc, dayStart, dayEnd)
	if err != nil {
		return Resolution{}, err
	}
	for _, b := range blocks {
		windows = Subtract(windows, toLocalWindow(b.StartAt, b.EndAt, dayStart, dayEnd, loc))
	}

	appts, err := r.store.ListConfirmedOverlapping(ctx, providerID, dayStart, dayEnd, uuid.Nil)
	if err != nil {
		return Resolution{}, err
	}
	for _, a := range appts {
		windows = Subtract(windows, toLocalWindow(a.StartAt, a.EndAt, dayStart, dayEnd, loc))
	}

	res.Windows = Normalize(windows)
	return res, nil
}

func (r *Resolver) blocksForDay(ctx context.Context, calendarID uuid.UUID, loc *time.Location, dayStart, dayEnd time.Time) ([]domain.TimeBlock, error) {
	blocks, err := r.store.ListBlocksOverlapping(ctx, calendarID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if !r.expandRecurring {
		return blocks, nil
	}

	out := make([]domain.TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		if !b.Recurring {
			out = append(out, b)
		}
	}

	recurring, err := r.store.ListRecurringBlocks(ctx, calendarID, dayEnd)
	if err != nil {
		return nil, err
	}
	for _, b := range recurring {
		occs, err := b.Occurrences(loc, dayStart, dayEnd)
		if err != nil {
			r.log.Warn("ignoring recurring block with invalid rule",
				slog.String("block_id", b.ID.String()),
				slog.Any("err", err),
			)
			if domain.Overlaps(b.StartAt, b.EndAt, dayStart, dayEnd) {
				out = append(out, b)
			}
			continue
		}
		out = append(out, occs...)
	}
	return out, nil
}

// toLocalWindow clamps an absolute range to the day and converts it to wall-clock
// minutes, rounding outward so an obstruction never shrinks.
func toLocalWindow(start, end, dayStart, dayEnd time.Time, loc *time.Location) Window {
	w := Window{Start: domain.StartOfDay, End: domain.EndOfDay}
	if start.After(dayStart) {
		w.Start = domain.LocalTimeOfDay(start, loc, false)
	}
	if end.Before(dayEnd) {
		w.End = domain.LocalTimeOfDay(end, loc, true)
	}
	return w
}
