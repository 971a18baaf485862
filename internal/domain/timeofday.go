package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock offset in minutes after local midnight.
// EndOfDay (24:00) is a valid exclusive upper bound.
type TimeOfDay int

const (
	StartOfDay TimeOfDay = 0
	EndOfDay   TimeOfDay = 24 * 60
)

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (seconds must be zero). "24:00" is allowed.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
	}
	t := NewTimeOfDay(h, m)
	if h < 0 || t > EndOfDay {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// On returns the instant this wall-clock time denotes on date in loc.
// EndOfDay maps to the following local midnight.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// LocalTimeOfDay converts an instant to its wall-clock minute in loc.
// Seconds are truncated unless roundUp is set, in which case any sub-minute
// remainder moves the result to the next minute.
func LocalTimeOfDay(t time.Time, loc *time.Location, roundUp bool) TimeOfDay {
	local := t.In(loc)
	tod := NewTimeOfDay(local.Hour(), local.Minute())
	if roundUp && (local.Second() > 0 || local.Nanosecond() > 0) {
		tod++
	}
	return tod
}

// CivilDate returns the calendar date of t in loc as midnight UTC.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns [local midnight, next local midnight) of date in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	end := time.Date(date.Year(), date.Month(), date.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}

// WeekdayIndex numbers days Monday=0 through Sunday=6.
func WeekdayIndex(date time.Time) int16 {
	wd := date.Weekday()
	if wd == time.Sunday {
		return 6
	}
	return int16(wd) - 1
}

func mondayDateUTC(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -int(WeekdayIndex(t)))
}

// Overlaps reports whether half-open ranges [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching ranges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
