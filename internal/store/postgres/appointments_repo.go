package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/lease"
	"slotline/backend/internal/store"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"

	noOverlapConstraint = "appointments_no_overlap"
)

type AppointmentRepo struct {
	db     *bun.DB
	locker lease.Locker
}

type AppointmentOption func(*AppointmentRepo)

// WithLocker takes the provider-day lease from l instead of a Postgres
// advisory lock. The lease is still held until the transaction ends.
func WithLocker(l lease.Locker) AppointmentOption {
	return func(r *AppointmentRepo) { r.locker = l }
}

func NewAppointmentRepo(db *bun.DB, opts ...AppointmentOption) *AppointmentRepo {
	r := &AppointmentRepo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type bookingTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().Model(&a).Where("id = ?", appointmentID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r *AppointmentRepo) ListAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_at < ?", windowEnd).
		Where("end_at > ?", windowStart).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error) {
	return listConfirmedOverlapping(ctx, r.db, providerID, from, to, exclude)
}

func listConfirmedOverlapping(ctx context.Context, db bun.IDB, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("status = ?", domain.StatusConfirmed).
		Where("start_at < ?", to).
		Where("end_at > ?", from).
		OrderExpr("start_at ASC")
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.ChangeHistory, error) {
	var rows []domain.ChangeHistory
	err := r.db.NewSelect().
		Model(&rows).
		Where("appointment_id = ?", appointmentID).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) InProviderDayTransaction(ctx context.Context, key lease.Key, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if r.locker != nil {
		ctx, release, err := lease.Hold(ctx, r.locker, key.String())
		if err != nil {
			return err
		}
		defer release()
		return r.InTransaction(ctx, fn)
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderDay(ctx, tx, key); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *AppointmentRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

// lockProviderDay takes a transaction-scoped advisory lock, released by
// Postgres on commit or rollback.
func lockProviderDay(ctx context.Context, tx bun.Tx, key lease.Key) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Exec(ctx)
	return err
}

func (r bookingTx) GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r bookingTx) ListConfirmedOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]domain.Appointment, error) {
	return listConfirmedOverlapping(ctx, r.tx, providerID, from, to, exclude)
}

func (r bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	// A savepoint keeps the outer transaction usable after a unique
	// violation so the replayed row can still be read.
	sp, err := r.tx.BeginTx(ctx, nil)
	if err != nil {
		return domain.Appointment{}, err
	}
	if _, err := sp.NewInsert().Model(&m).Exec(ctx); err != nil {
		_ = sp.Rollback()
		return r.resolveInsertError(ctx, appt, err)
	}
	if err := sp.Commit(); err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r bookingTx) resolveInsertError(ctx context.Context, appt domain.Appointment, err error) (domain.Appointment, error) {
	switch classifyPgError(err) {
	case errOverlap:
		return domain.Appointment{}, store.ErrConflict
	case errDuplicate:
		var existing domain.Appointment
		selectErr := r.tx.NewSelect().
			Model(&existing).
			Where("id = ?", appt.ID).
			Limit(1).
			Scan(ctx)
		if selectErr != nil {
			return domain.Appointment{}, err
		}
		if !existing.SameBooking(appt) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	return domain.Appointment{}, err
}

func (r bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("status", "start_at", "end_at", "duration_minutes", "notes", "cancelled_at", "cancellation_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if classifyPgError(err) == errOverlap {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r bookingTx) AppendHistory(ctx context.Context, entry domain.ChangeHistory) (domain.ChangeHistory, error) {
	m := entry
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.ChangeHistory{}, err
	}
	return m, nil
}

type pgErrorKind int

const (
	errOther pgErrorKind = iota
	errOverlap
	errDuplicate
)

func classifyPgError(err error) pgErrorKind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errOther
	}
	switch {
	case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == noOverlapConstraint:
		return errOverlap
	case pgErr.Code == pgUniqueViolation:
		return errDuplicate
	}
	return errOther
}
