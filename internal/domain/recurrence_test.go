package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func recurringBlock(start time.Time, length time.Duration, rule string) TimeBlock {
	return TimeBlock{
		ID:             uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		CalendarID:     uuid.MustParse("00000000-0000-0000-0000-0000000000c1"),
		BlockType:      "break",
		StartAt:        start,
		EndAt:          start.Add(length),
		Recurring:      true,
		RecurrenceRule: rule,
	}
}

func TestParseWeeklyRule_Validation(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		wantErr string
	}{
		{name: "empty", rule: "  ", wantErr: "empty recurrence rule"},
		{name: "daily", rule: "FREQ=DAILY", wantErr: "unsupported recurrence frequency"},
		{name: "missing freq", rule: "BYDAY=MO", wantErr: "unsupported recurrence frequency"},
		{name: "bad interval", rule: "FREQ=WEEKLY;INTERVAL=0", wantErr: "invalid interval"},
		{name: "bad weekday", rule: "FREQ=WEEKLY;BYDAY=XX", wantErr: "invalid weekday"},
		{name: "bad until", rule: "FREQ=WEEKLY;UNTIL=tomorrow", wantErr: "invalid until"},
		{name: "bad count", rule: "FREQ=WEEKLY;COUNT=-1", wantErr: "invalid count"},
		{name: "malformed", rule: "FREQ", wantErr: "malformed recurrence rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWeeklyRule(tt.rule)
			if err == nil {
				t.Fatalf("expected error")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseWeeklyRule_Fields(t *testing.T) {
	r, err := ParseWeeklyRule("RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=20260301T000000Z;COUNT=4")
	if err != nil {
		t.Fatalf("ParseWeeklyRule error: %v", err)
	}
	if r.Interval != 2 {
		t.Fatalf("Interval = %d, want 2", r.Interval)
	}
	if len(r.ByWeekday) != 2 || r.ByWeekday[0] != 0 || r.ByWeekday[1] != 2 {
		t.Fatalf("ByWeekday = %v, want [0 2]", r.ByWeekday)
	}
	if r.Until == nil || !r.Until.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Until = %v", r.Until)
	}
	if r.Count == nil || *r.Count != 4 {
		t.Fatalf("Count = %v, want 4", r.Count)
	}
}

func TestOccurrences_NonRecurringBlockPassesThrough(t *testing.T) {
	b := recurringBlock(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC), time.Hour, "")
	b.Recurring = false

	occs, err := b.Occurrences(time.UTC, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}

	occs, err = b.Occurrences(time.UTC, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 0 {
		t.Fatalf("len(occs) = %d, want 0", len(occs))
	}
}

func TestOccurrences_NormalizesWeekdays(t *testing.T) {
	// 2026-01-05 is a Monday.
	b := recurringBlock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Hour, "FREQ=WEEKLY;BYDAY=WE,MO,WE")

	occs, err := b.Occurrences(time.UTC, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 4 {
		t.Fatalf("len(occs) = %d, want 4", len(occs))
	}
	for i := 1; i < len(occs); i++ {
		if !occs[i-1].StartAt.Before(occs[i].StartAt) {
			t.Fatalf("occurrences not sorted: %v then %v", occs[i-1].StartAt, occs[i].StartAt)
		}
	}
}

func TestOccurrences_DefaultsToStartWeekday(t *testing.T) {
	b := recurringBlock(time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC), 30*time.Minute, "FREQ=WEEKLY")

	occs, err := b.Occurrences(time.UTC, time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	want := time.Date(2026, 1, 14, 13, 0, 0, 0, time.UTC)
	if !occs[0].StartAt.Equal(want) {
		t.Fatalf("StartAt = %v, want %v", occs[0].StartAt, want)
	}
	if got := occs[0].EndAt.Sub(occs[0].StartAt); got != 30*time.Minute {
		t.Fatalf("length = %v, want 30m", got)
	}
}

func TestOccurrences_RespectsUntilAndCount(t *testing.T) {
	b := recurringBlock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Hour, "FREQ=WEEKLY;BYDAY=MO;UNTIL=20260120;COUNT=2")

	occs, err := b.Occurrences(time.UTC, b.StartAt, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("len(occs) = %d, want 2", len(occs))
	}

	b.RecurrenceRule = "FREQ=WEEKLY;BYDAY=MO;UNTIL=20260113"
	occs, err = b.Occurrences(time.UTC, b.StartAt, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("len(occs) with until = %d, want 2", len(occs))
	}
}

func TestOccurrences_IntervalSkipsWeeks(t *testing.T) {
	b := recurringBlock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Hour, "FREQ=WEEKLY;INTERVAL=2")

	occs, err := b.Occurrences(time.UTC, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 0 {
		t.Fatalf("len(occs) on off week = %d, want 0", len(occs))
	}

	occs, err = b.Occurrences(time.UTC, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("len(occs) on on week = %d, want 1", len(occs))
	}
}

func TestOccurrences_DSTMaintainsLocalHour(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	b := recurringBlock(time.Date(2026, 3, 1, 9, 0, 0, 0, loc), time.Hour, "FREQ=WEEKLY;BYDAY=SU")

	windowStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)

	occs, err := b.Occurrences(loc, windowStart, windowEnd)
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(occs) == 0 {
		t.Fatalf("expected occurrences")
	}
	for _, o := range occs {
		if o.StartAt.In(loc).Hour() != 9 {
			t.Fatalf("local hour = %d, want 9 (start=%v)", o.StartAt.In(loc).Hour(), o.StartAt)
		}
		if !Overlaps(o.StartAt, o.EndAt, windowStart, windowEnd) {
			t.Fatalf("occurrence does not overlap window: %v %v", o.StartAt, o.EndAt)
		}
	}
}
