package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

// CalendarRepo reads and writes calendars, their rules and blocks, and reads
// the provider/service catalog.
type CalendarRepo struct {
	db *bun.DB
}

func NewCalendarRepo(db *bun.DB) *CalendarRepo {
	return &CalendarRepo{db: db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func (r *CalendarRepo) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().Model(&p).Where("id = ?", providerID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Provider{}, notFound(err)
	}
	return p, nil
}

func (r *CalendarRepo) ListActiveProviders(ctx context.Context, locationID uuid.UUID) ([]domain.Provider, error) {
	var rows []domain.Provider
	err := r.db.NewSelect().
		Model(&rows).
		Where("location_id = ?", locationID).
		Where("is_active").
		OrderExpr("display_name ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) GetService(ctx context.Context, serviceID uuid.UUID) (domain.ServiceSpec, error) {
	var s domain.ServiceSpec
	err := r.db.NewSelect().Model(&s).Where("id = ?", serviceID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.ServiceSpec{}, notFound(err)
	}
	return s, nil
}

func (r *CalendarRepo) GetCalendar(ctx context.Context, providerID uuid.UUID) (domain.Calendar, error) {
	var cal domain.Calendar
	err := r.db.NewSelect().Model(&cal).Where("provider_id = ?", providerID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Calendar{}, notFound(err)
	}
	return cal, nil
}

// CreateCalendar keeps the first calendar when two callers race to create one.
func (r *CalendarRepo) CreateCalendar(ctx context.Context, cal domain.Calendar) (domain.Calendar, error) {
	m := domain.Calendar{
		ID:         cal.ID,
		TenantID:   cal.TenantID,
		ProviderID: cal.ProviderID,
		Name:       cal.Name,
		Timezone:   cal.Timezone,
	}
	_, err := r.db.NewInsert().Model(&m).On("CONFLICT (provider_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return domain.Calendar{}, err
	}
	return r.GetCalendar(ctx, cal.ProviderID)
}

func (r *CalendarRepo) UpdateCalendarTimezone(ctx context.Context, calendarID uuid.UUID, timezone string) (domain.Calendar, error) {
	cal := domain.Calendar{ID: calendarID, Timezone: timezone}
	err := r.db.NewUpdate().
		Model(&cal).
		Column("timezone", "updated_at").
		WherePK().
		Returning("*").
		Scan(ctx)
	if err != nil {
		return domain.Calendar{}, notFound(err)
	}
	return cal, nil
}

func (r *CalendarRepo) ListRules(ctx context.Context, calendarID uuid.UUID) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		OrderExpr("day_of_week ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) ListActiveRules(ctx context.Context, calendarID uuid.UUID, dayOfWeek int16, date time.Time) ([]domain.AvailabilityRule, error) {
	day := date.Format(time.DateOnly)
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("day_of_week = ?", dayOfWeek).
		Where("(valid_from IS NULL OR valid_from <= ?::date)", day).
		Where("(valid_until IS NULL OR valid_until >= ?::date)", day).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) ReplaceRules(ctx context.Context, calendarID uuid.UUID, rules []domain.AvailabilityRule) ([]domain.AvailabilityRule, error) {
	rows := make([]domain.AvailabilityRule, 0, len(rules))
	for _, rule := range rules {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.AvailabilityRule{
			ID:         id,
			CalendarID: calendarID,
			DayOfWeek:  rule.DayOfWeek,
			StartTime:  rule.StartTime,
			EndTime:    rule.EndTime,
			Available:  rule.Available,
			ValidFrom:  rule.ValidFrom,
			ValidUntil: rule.ValidUntil,
			CreatedAt:  time.Now().UTC(),
		})
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*domain.AvailabilityRule)(nil)).
			Where("calendar_id = ?", calendarID).
			Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) ListBlocksOverlapping(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error) {
	var rows []domain.TimeBlock
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("start_at < ?", to).
		Where("end_at > ?", from).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) ListBlocksStartingBetween(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error) {
	var rows []domain.TimeBlock
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("start_at >= ?", from).
		Where("start_at < ?", to).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) ListRecurringBlocks(ctx context.Context, calendarID uuid.UUID, startingBefore time.Time) ([]domain.TimeBlock, error) {
	var rows []domain.TimeBlock
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("is_recurring").
		Where("start_at < ?", startingBefore).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CalendarRepo) CreateBlock(ctx context.Context, block domain.TimeBlock) (domain.TimeBlock, error) {
	m := block
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.TimeBlock{}, err
	}
	return m, nil
}

func (r *CalendarRepo) DeleteBlock(ctx context.Context, calendarID, blockID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.TimeBlock)(nil)).
		Where("calendar_id = ?", calendarID).
		Where("id = ?", blockID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
