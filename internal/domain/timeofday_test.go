package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "17:30", want: 1050},
		{in: "00:00", want: 0},
		{in: "24:00", want: EndOfDay},
		{in: "08:15:00", want: 495},
		{in: "24:01", wantErr: true},
		{in: "9", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10:00:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeOfDay(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDayString(t *testing.T) {
	if got := NewTimeOfDay(9, 5).String(); got != "09:05" {
		t.Fatalf("String = %q, want %q", got, "09:05")
	}
	if got := EndOfDay.String(); got != "24:00" {
		t.Fatalf("String = %q, want %q", got, "24:00")
	}
}

func TestTimeOfDayOn_EndOfDayIsNextMidnight(t *testing.T) {
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	got := EndOfDay.On(date, time.UTC)
	want := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("On = %v, want %v", got, want)
	}
}

func TestLocalTimeOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	instant := time.Date(2026, 1, 5, 11, 30, 20, 0, time.UTC)

	if got := LocalTimeOfDay(instant, loc, false); got != NewTimeOfDay(12, 30) {
		t.Fatalf("LocalTimeOfDay = %s, want 12:30", got)
	}
	if got := LocalTimeOfDay(instant, loc, true); got != NewTimeOfDay(12, 31) {
		t.Fatalf("LocalTimeOfDay roundUp = %s, want 12:31", got)
	}
}

func TestWeekdayIndex_MondayIsZero(t *testing.T) {
	monday := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := WeekdayIndex(monday.AddDate(0, 0, i)); got != int16(i) {
			t.Fatalf("WeekdayIndex(%s) = %d, want %d", monday.AddDate(0, 0, i).Weekday(), got, i)
		}
	}
}

func TestCivilDateAndDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	instant := time.Date(2026, 1, 6, 5, 0, 0, 0, time.UTC)
	if got := CivilDate(instant, loc); !got.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("CivilDate = %v, want 2026-01-05", got)
	}

	start, end := DayBounds(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), loc)
	if got := end.Sub(start); got != 24*time.Hour {
		t.Fatalf("day length = %v, want 24h", got)
	}
	if start.In(loc).Hour() != 0 {
		t.Fatalf("start is not local midnight: %v", start.In(loc))
	}
}

func TestAvailabilityRuleActiveOn(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	r := AvailabilityRule{
		ID:         uuid.New(),
		DayOfWeek:  0,
		StartTime:  NewTimeOfDay(9, 0),
		EndTime:    NewTimeOfDay(17, 0),
		Available:  true,
		ValidFrom:  &from,
		ValidUntil: &until,
	}

	if !r.ActiveOn(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected active on Monday within validity")
	}
	if r.ActiveOn(time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected inactive on Tuesday")
	}
	if r.ActiveOn(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected inactive after valid_until")
	}
	if !r.ActiveOn(time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected active on last Monday before valid_until")
	}
}

func TestAvailabilityRuleUsable(t *testing.T) {
	if (AvailabilityRule{StartTime: NewTimeOfDay(10, 0), EndTime: NewTimeOfDay(10, 0)}).Usable() {
		t.Fatalf("zero-length rule must not be usable")
	}
	if (AvailabilityRule{StartTime: NewTimeOfDay(12, 0), EndTime: NewTimeOfDay(9, 0)}).Usable() {
		t.Fatalf("inverted rule must not be usable")
	}
	if !(AvailabilityRule{StartTime: 0, EndTime: EndOfDay}).Usable() {
		t.Fatalf("full-day rule must be usable")
	}
}
