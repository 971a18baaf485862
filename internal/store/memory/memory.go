// Package memory is a single-process calendar store. It backs the server when
// store.driver=memory and the coordinator's tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/lease"
	"slotline/backend/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]domain.Provider
	services  map[uuid.UUID]domain.ServiceSpec
	calendars map[uuid.UUID]domain.Calendar
	rules     map[uuid.UUID][]domain.AvailabilityRule
	blocks    map[uuid.UUID]domain.TimeBlock
	appts     map[uuid.UUID]domain.Appointment
	history   map[uuid.UUID][]domain.ChangeHistory

	locker lease.Locker
	rows   *lease.KeyedMutex
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithLocker replaces the in-process provider-day lease, e.g. with a Redis
// lease shared by several processes.
func WithLocker(l lease.Locker) Option {
	return func(s *Store) { s.locker = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		providers: make(map[uuid.UUID]domain.Provider),
		services:  make(map[uuid.UUID]domain.ServiceSpec),
		calendars: make(map[uuid.UUID]domain.Calendar),
		rules:     make(map[uuid.UUID][]domain.AvailabilityRule),
		blocks:    make(map[uuid.UUID]domain.TimeBlock),
		appts:     make(map[uuid.UUID]domain.Appointment),
		history:   make(map[uuid.UUID][]domain.ChangeHistory),
		locker:    lease.NewKeyedMutex(),
		rows:      lease.NewKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) PutProvider(p domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *Store) PutService(svc domain.ServiceSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func newID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func (s *Store) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[providerID]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListActiveProviders(ctx context.Context, locationID uuid.UUID) ([]domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Provider
	for _, p := range s.providers {
		if p.Active && p.LocationID == locationID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Provider) int {
		if c := cmp.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *Store) GetService(ctx context.Context, serviceID uuid.UUID) (domain.ServiceSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return domain.ServiceSpec{}, store.ErrNotFound
	}
	return svc, nil
}

func (s *Store) GetCalendar(ctx context.Context, providerID uuid.UUID) (domain.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cal, ok := s.calendars[providerID]
	if !ok {
		return domain.Calendar{}, store.ErrNotFound
	}
	return cal, nil
}

// CreateCalendar returns the existing calendar when the provider already has one.
func (s *Store) CreateCalendar(ctx context.Context, cal domain.Calendar) (domain.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.calendars[cal.ProviderID]; ok {
		return existing, nil
	}
	if cal.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.Calendar{}, err
		}
		cal.ID = id
	}
	if cal.Name == "" {
		cal.Name = domain.DefaultCalendarName
	}
	if cal.Timezone == "" {
		cal.Timezone = domain.DefaultTimezone
	}
	now := s.now()
	cal.CreatedAt, cal.UpdatedAt = now, now
	s.calendars[cal.ProviderID] = cal
	return cal, nil
}

func (s *Store) UpdateCalendarTimezone(ctx context.Context, calendarID uuid.UUID, timezone string) (domain.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for providerID, cal := range s.calendars {
		if cal.ID == calendarID {
			cal.Timezone = timezone
			cal.UpdatedAt = s.now()
			s.calendars[providerID] = cal
			return cal, nil
		}
	}
	return domain.Calendar{}, store.ErrNotFound
}

func (s *Store) ListRules(ctx context.Context, calendarID uuid.UUID) ([]domain.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.rules[calendarID])
	sortRules(out)
	return out, nil
}

func (s *Store) ListActiveRules(ctx context.Context, calendarID uuid.UUID, dayOfWeek int16, date time.Time) ([]domain.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AvailabilityRule
	for _, r := range s.rules[calendarID] {
		if r.DayOfWeek == dayOfWeek && r.ActiveOn(date) {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func sortRules(rules []domain.AvailabilityRule) {
	slices.SortFunc(rules, func(a, b domain.AvailabilityRule) int {
		if c := cmp.Compare(a.DayOfWeek, b.DayOfWeek); c != 0 {
			return c
		}
		return cmp.Compare(a.StartTime, b.StartTime)
	})
}

func (s *Store) ReplaceRules(ctx context.Context, calendarID uuid.UUID, rules []domain.AvailabilityRule) ([]domain.AvailabilityRule, error) {
	out := make([]domain.AvailabilityRule, 0, len(rules))
	now := s.now()
	for _, r := range rules {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		r.ID = id
		r.CalendarID = calendarID
		r.CreatedAt = now
		out = append(out, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[calendarID] = out
	return slices.Clone(out), nil
}

func (s *Store) ListBlocksOverlapping(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error) {
	return s.filterBlocks(calendarID, func(b domain.TimeBlock) bool {
		return domain.Overlaps(b.StartAt, b.EndAt, from, to)
	}), nil
}

func (s *Store) ListBlocksStartingBetween(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error) {
	return s.filterBlocks(calendarID, func(b domain.TimeBlock) bool {
		return !b.StartAt.Before(from) && b.StartAt.Before(to)
	}), nil
}

func (s *Store) ListRecurringBlocks(ctx context.Context, calendarID uuid.UUID, startingBefore time.Time) ([]domain.TimeBlock, error) {
	return s.filterBlocks(calendarID, func(b domain.TimeBlock) bool {
		return b.Recurring && b.StartAt.Before(startingBefore)
	}), nil
}

func (s *Store) filterBlocks(calendarID uuid.UUID, keep func(domain.TimeBlock) bool) []domain.TimeBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TimeBlock
	for _, b := range s.blocks {
		if b.CalendarID == calendarID && keep(b) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.TimeBlock) int { return a.StartAt.Compare(b.StartAt) })
	return out
}

func (s *Store) CreateBlock(ctx context.Context, block domain.TimeBlock) (domain.TimeBlock, error) {
	if block.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.TimeBlock{}, err
		}
		block.ID = id
	}
	block.CreatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[block.ID] = block
	return block, nil
}

func (s *Store) DeleteBlock(ctx context.Context, calendarID, blockID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok || b.CalendarID != calendarID {
		return store.ErrNotFound
	}
	delete(s.blocks, blockID)
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appts[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Appointment
	for _, a := range s.appts {
		if a.ProviderID == providerID && domain.Overlaps(a.StartAt, a.EndAt, windowStart, windowEnd) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (s *Store) ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return confirmedOverlapping(s.appts, providerID, from, to, exclude), nil
}

func confirmedOverlapping(appts map[uuid.UUID]domain.Appointment, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) []domain.Appointment {
	var out []domain.Appointment
	for id, a := range appts {
		if id == exclude || a.ProviderID != providerID {
			continue
		}
		if a.OverlapsRange(from, to) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out
}

func sortAppointments(appts []domain.Appointment) {
	slices.SortFunc(appts, func(a, b domain.Appointment) int { return a.StartAt.Compare(b.StartAt) })
}

// ListHistory returns entries newest first.
func (s *Store) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.ChangeHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.history[appointmentID])
	slices.Reverse(out)
	return out, nil
}

func (s *Store) InProviderDayTransaction(ctx context.Context, key lease.Key, fn func(ctx context.Context, tx store.BookingTx) error) error {
	ctx, release, err := lease.Hold(ctx, s.locker, key.String())
	if err != nil {
		return err
	}
	defer release()
	return s.InTransaction(ctx, fn)
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	tx := &memTx{
		s:        s,
		staged:   make(map[uuid.UUID]domain.Appointment),
		inserted: make(map[uuid.UUID]bool),
		rowLock:  make(map[uuid.UUID]func()),
	}
	defer tx.unlockRows()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}
