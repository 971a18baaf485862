package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	DefaultCalendarName = "Primary"
	DefaultTimezone     = "UTC"
)

type Calendar struct {
	bun.BaseModel `bun:"table:calendars"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	TenantID   uuid.UUID `bun:"tenant_id,notnull,type:uuid"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,unique,type:uuid"`
	Name       string    `bun:"name,notnull"`
	Timezone   string    `bun:"timezone,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (c *Calendar) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.Name == "" {
			c.Name = DefaultCalendarName
		}
		if c.Timezone == "" {
			c.Timezone = DefaultTimezone
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

// Location resolves the calendar's IANA zone; an empty zone means UTC.
func (c Calendar) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: invalid timezone %q: %w", c.ID, c.Timezone, err)
	}
	return loc, nil
}

// AvailabilityRule is a weekly segment of local time. DayOfWeek uses Monday=0.
// StartTime < EndTime is not enforced here; readers skip rules that violate it.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	CalendarID uuid.UUID  `bun:"calendar_id,notnull,type:uuid"`
	DayOfWeek  int16      `bun:"day_of_week,notnull"`
	StartTime  TimeOfDay  `bun:"start_minute,notnull"`
	EndTime    TimeOfDay  `bun:"end_minute,notnull"`
	Available  bool       `bun:"is_available,notnull"`
	ValidFrom  *time.Time `bun:"valid_from,type:date"`
	ValidUntil *time.Time `bun:"valid_until,type:date"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if r.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ActiveOn reports whether the rule applies to the civil date. Nil bounds are open.
func (r AvailabilityRule) ActiveOn(date time.Time) bool {
	if r.DayOfWeek != WeekdayIndex(date) {
		return false
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if r.ValidFrom != nil && day.Before(dateOnly(*r.ValidFrom)) {
		return false
	}
	if r.ValidUntil != nil && day.After(dateOnly(*r.ValidUntil)) {
		return false
	}
	return true
}

// Usable rules describe a non-empty segment inside one day.
func (r AvailabilityRule) Usable() bool {
	return r.StartTime >= StartOfDay && r.EndTime <= EndOfDay && r.StartTime < r.EndTime
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeBlock is an ad-hoc obstruction expressed in absolute instants.
type TimeBlock struct {
	bun.BaseModel `bun:"table:time_blocks"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	CalendarID     uuid.UUID `bun:"calendar_id,notnull,type:uuid"`
	BlockType      string    `bun:"block_type,notnull"`
	Title          string    `bun:"title"`
	StartAt        time.Time `bun:"start_at,notnull"`
	EndAt          time.Time `bun:"end_at,notnull"`
	Recurring      bool      `bun:"is_recurring,notnull"`
	RecurrenceRule string    `bun:"recurrence_rule"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func (b *TimeBlock) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return nil
}
