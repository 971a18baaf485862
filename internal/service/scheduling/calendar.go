package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

// calendarFor returns the provider's calendar, creating it on first use.
func (s *Service) calendarFor(ctx context.Context, providerID uuid.UUID) (domain.Calendar, error) {
	cal, err := s.store.GetCalendar(ctx, providerID)
	if err == nil {
		return cal, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Calendar{}, err
	}
	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return domain.Calendar{}, fmt.Errorf("provider %s: %w", providerID, err)
	}
	return s.store.CreateCalendar(ctx, domain.Calendar{TenantID: p.TenantID, ProviderID: p.ID})
}

func (s *Service) GetCalendar(ctx context.Context, providerID uuid.UUID) (domain.Calendar, error) {
	if providerID == uuid.Nil {
		return domain.Calendar{}, validationError("provider_id is required")
	}
	return s.calendarFor(ctx, providerID)
}

func (s *Service) GetAvailabilityRules(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	cal, err := s.calendarFor(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.store.ListRules(ctx, cal.ID)
}

// SetAvailabilityRules replaces the provider's whole weekly pattern.
func (s *Service) SetAvailabilityRules(ctx context.Context, providerID uuid.UUID, in []RuleInput) ([]domain.AvailabilityRule, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	rules := make([]domain.AvailabilityRule, 0, len(in))
	for i, r := range in {
		if err := s.validate.Struct(r); err != nil {
			return nil, validationError(fmt.Sprintf("rules[%d]: %s", i, err))
		}
		start, _ := domain.ParseTimeOfDay(r.StartTime)
		end, _ := domain.ParseTimeOfDay(r.EndTime)
		if end <= start {
			return nil, validationError(fmt.Sprintf("rules[%d]: end_time must be after start_time", i))
		}
		rule := domain.AvailabilityRule{
			DayOfWeek: int16(r.DayOfWeek),
			StartTime: start,
			EndTime:   end,
			Available: r.Available,
		}
		if r.ValidFrom != nil {
			d := civil(*r.ValidFrom)
			rule.ValidFrom = &d
		}
		if r.ValidUntil != nil {
			d := civil(*r.ValidUntil)
			rule.ValidUntil = &d
		}
		if rule.ValidFrom != nil && rule.ValidUntil != nil && rule.ValidUntil.Before(*rule.ValidFrom) {
			return nil, validationError(fmt.Sprintf("rules[%d]: valid_until must not be before valid_from", i))
		}
		rules = append(rules, rule)
	}

	cal, err := s.calendarFor(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.store.ReplaceRules(ctx, cal.ID, rules)
}

func (s *Service) SetTimezone(ctx context.Context, providerID uuid.UUID, timezone string) (domain.Calendar, error) {
	if providerID == uuid.Nil {
		return domain.Calendar{}, validationError("provider_id is required")
	}
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return domain.Calendar{}, validationError("timezone is required")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return domain.Calendar{}, validationError("invalid timezone")
	}
	cal, err := s.calendarFor(ctx, providerID)
	if err != nil {
		return domain.Calendar{}, err
	}
	return s.store.UpdateCalendarTimezone(ctx, cal.ID, timezone)
}

func (s *Service) CreateTimeBlock(ctx context.Context, providerID uuid.UUID, in TimeBlockInput) (domain.TimeBlock, error) {
	if providerID == uuid.Nil {
		return domain.TimeBlock{}, validationError("provider_id is required")
	}
	in.BlockType = strings.TrimSpace(in.BlockType)
	in.RecurrenceRule = strings.TrimSpace(in.RecurrenceRule)
	if err := s.validate.Struct(in); err != nil {
		return domain.TimeBlock{}, err
	}
	start := in.StartAt.UTC()
	end := in.EndAt.UTC()
	if !end.After(start) {
		return domain.TimeBlock{}, validationError("end_at must be after start_at")
	}
	if in.Recurring && in.RecurrenceRule != "" {
		if _, err := domain.ParseWeeklyRule(in.RecurrenceRule); err != nil {
			return domain.TimeBlock{}, validationError("invalid recurrence_rule: " + err.Error())
		}
	}

	cal, err := s.calendarFor(ctx, providerID)
	if err != nil {
		return domain.TimeBlock{}, err
	}
	return s.store.CreateBlock(ctx, domain.TimeBlock{
		CalendarID:     cal.ID,
		BlockType:      in.BlockType,
		Title:          strings.TrimSpace(in.Title),
		StartAt:        start,
		EndAt:          end,
		Recurring:      in.Recurring,
		RecurrenceRule: in.RecurrenceRule,
	})
}

// ListTimeBlocks returns the provider's blocks starting in [from, to).
func (s *Service) ListTimeBlocks(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if !to.After(from) {
		return nil, validationError("to must be after from")
	}
	cal, err := s.calendarFor(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.store.ListBlocksStartingBetween(ctx, cal.ID, from.UTC(), to.UTC())
}

func (s *Service) DeleteTimeBlock(ctx context.Context, providerID, blockID uuid.UUID) error {
	if providerID == uuid.Nil {
		return validationError("provider_id is required")
	}
	if blockID == uuid.Nil {
		return validationError("block_id is required")
	}
	cal, err := s.store.GetCalendar(ctx, providerID)
	if err != nil {
		return err
	}
	return s.store.DeleteBlock(ctx, cal.ID, blockID)
}
