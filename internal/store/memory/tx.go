package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

// memTx stages writes and applies them on commit. Rows read for update are
// locked until the transaction ends.
type memTx struct {
	s        *Store
	staged   map[uuid.UUID]domain.Appointment
	order    []uuid.UUID
	inserted map[uuid.UUID]bool
	history  []domain.ChangeHistory
	rowLock  map[uuid.UUID]func()
}

func (t *memTx) lockRow(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.rowLock[id]; ok {
		return nil
	}
	release, err := t.s.rows.Acquire(ctx, "appointment:"+id.String())
	if err != nil {
		return err
	}
	t.rowLock[id] = release
	return nil
}

func (t *memTx) unlockRows() {
	for _, release := range t.rowLock {
		release()
	}
}

func (t *memTx) lookup(id uuid.UUID) (domain.Appointment, bool) {
	if a, ok := t.staged[id]; ok {
		return a, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.appts[id]
	return a, ok
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if err := t.lockRow(ctx, appointmentID); err != nil {
		return domain.Appointment{}, err
	}
	a, ok := t.lookup(appointmentID)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *memTx) ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error) {
	t.s.mu.RLock()
	merged := make(map[uuid.UUID]domain.Appointment, len(t.s.appts)+len(t.staged))
	for id, a := range t.s.appts {
		merged[id] = a
	}
	t.s.mu.RUnlock()
	for id, a := range t.staged {
		merged[id] = a
	}
	return confirmedOverlapping(merged, providerID, from, to, exclude), nil
}

func (t *memTx) stage(a domain.Appointment) {
	if _, ok := t.staged[a.ID]; !ok {
		t.order = append(t.order, a.ID)
	}
	t.staged[a.ID] = a
}

func (t *memTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	if existing, ok := t.lookup(appt.ID); ok {
		if !existing.SameBooking(appt) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	now := t.s.now()
	appt.CreatedAt, appt.UpdatedAt = now, now
	t.inserted[appt.ID] = true
	t.stage(appt)
	return appt, nil
}

func (t *memTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if _, ok := t.lookup(appt.ID); !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt.UpdatedAt = t.s.now()
	t.stage(appt)
	return appt, nil
}

func (t *memTx) AppendHistory(ctx context.Context, entry domain.ChangeHistory) (domain.ChangeHistory, error) {
	if entry.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return domain.ChangeHistory{}, err
		}
		entry.ID = id
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.s.now()
	}
	t.history = append(t.history, entry)
	return entry, nil
}

// commit applies staged writes atomically. Like the database exclusion
// constraint, it refuses to store two overlapping confirmed appointments for
// one provider.
func (t *memTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	// Another transaction may have committed the same id since it was staged.
	for id := range t.inserted {
		committed, ok := t.s.appts[id]
		if !ok {
			continue
		}
		if !committed.SameBooking(t.staged[id]) {
			return store.ErrIdempotencyConflict
		}
		t.staged[id] = committed
	}

	after := make(map[uuid.UUID]domain.Appointment, len(t.s.appts)+len(t.staged))
	for id, a := range t.s.appts {
		after[id] = a
	}
	for id, a := range t.staged {
		after[id] = a
	}
	for _, id := range t.order {
		a := t.staged[id]
		if !a.Status.Occupying() {
			continue
		}
		if len(confirmedOverlapping(after, a.ProviderID, a.StartAt, a.EndAt, id)) > 0 {
			return store.ErrConflict
		}
	}

	for _, id := range t.order {
		t.s.appts[id] = t.staged[id]
	}
	for _, h := range t.history {
		t.s.history[h.AppointmentID] = append(t.s.history[h.AppointmentID], h)
	}
	return nil
}
