package domain

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

// WeeklyRecurrence is the weekly subset of an RFC 5545 RRULE understood for
// recurring time blocks. Weekdays use Monday=0.
type WeeklyRecurrence struct {
	Interval  int
	ByWeekday []int16
	Until     *time.Time
	Count     *int
}

var byDayCodes = map[string]int16{
	"MO": 0, "TU": 1, "WE": 2, "TH": 3, "FR": 4, "SA": 5, "SU": 6,
}

func ParseWeeklyRule(rule string) (WeeklyRecurrence, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	if rule == "" {
		return WeeklyRecurrence{}, errors.New("empty recurrence rule")
	}

	out := WeeklyRecurrence{Interval: 1}
	sawFreq := false
	for _, part := range strings.Split(rule, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return WeeklyRecurrence{}, errors.New("malformed recurrence rule")
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			if strings.ToUpper(value) != "WEEKLY" {
				return WeeklyRecurrence{}, errors.New("unsupported recurrence frequency")
			}
			sawFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return WeeklyRecurrence{}, errors.New("invalid interval")
			}
			out.Interval = n
		case "BYDAY":
			for _, code := range strings.Split(value, ",") {
				wd, ok := byDayCodes[strings.ToUpper(strings.TrimSpace(code))]
				if !ok {
					return WeeklyRecurrence{}, errors.New("invalid weekday")
				}
				out.ByWeekday = append(out.ByWeekday, wd)
			}
		case "UNTIL":
			until, err := parseUntil(value)
			if err != nil {
				return WeeklyRecurrence{}, err
			}
			out.Until = &until
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return WeeklyRecurrence{}, errors.New("invalid count")
			}
			out.Count = &n
		}
	}
	if !sawFreq {
		return WeeklyRecurrence{}, errors.New("unsupported recurrence frequency")
	}
	return out, nil
}

func parseUntil(v string) (time.Time, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid until")
}

// Occurrences expands a recurring block into the copies that overlap
// [windowStart, windowEnd). Each copy keeps the first block's local start time
// and length, so it follows the wall clock across DST changes.
func (b TimeBlock) Occurrences(loc *time.Location, windowStart, windowEnd time.Time) ([]TimeBlock, error) {
	if !b.Recurring {
		if Overlaps(b.StartAt, b.EndAt, windowStart, windowEnd) {
			return []TimeBlock{b}, nil
		}
		return nil, nil
	}
	rule, err := ParseWeeklyRule(b.RecurrenceRule)
	if err != nil {
		return nil, err
	}
	duration := b.EndAt.Sub(b.StartAt)
	if duration <= 0 {
		return nil, errors.New("invalid duration")
	}

	dtstartUTC := b.StartAt.UTC()
	dtstartLocal := b.StartAt.In(loc)

	weekdays := slices.Clone(rule.ByWeekday)
	if len(weekdays) == 0 {
		weekdays = []int16{WeekdayIndex(dtstartLocal)}
	}
	slices.Sort(weekdays)
	weekdays = slices.Compact(weekdays)

	startWeekMonday := mondayDateUTC(dtstartLocal)
	windowStartWeekMonday := mondayDateUTC(windowStart.In(loc))
	windowEndBoundary := mondayDateUTC(windowEnd.In(loc)).AddDate(0, 0, 7)

	startWeekIndex := 0
	if windowStartWeekMonday.After(startWeekMonday) {
		daysDiff := int(windowStartWeekMonday.Sub(startWeekMonday) / (24 * time.Hour))
		startWeekIndex = daysDiff / (7 * rule.Interval)
	}

	occurrenceStart := func(weekMonday time.Time, wd int16) time.Time {
		d := weekMonday.AddDate(0, 0, int(wd))
		return time.Date(d.Year(), d.Month(), d.Day(),
			dtstartLocal.Hour(), dtstartLocal.Minute(), dtstartLocal.Second(), dtstartLocal.Nanosecond(), loc).UTC()
	}

	skippedInFirstWeek := 0
	for _, wd := range weekdays {
		if occurrenceStart(startWeekMonday, wd).Before(dtstartUTC) {
			skippedInFirstWeek++
		}
	}

	var out []TimeBlock
	for weekIndex := startWeekIndex; ; weekIndex++ {
		weekMonday := startWeekMonday.AddDate(0, 0, weekIndex*rule.Interval*7)
		if !weekMonday.Before(windowEndBoundary) {
			break
		}
		for i, wd := range weekdays {
			start := occurrenceStart(weekMonday, wd)
			if start.Before(dtstartUTC) {
				continue
			}
			if rule.Until != nil && start.After(rule.Until.UTC()) {
				return out, nil
			}
			if rule.Count != nil && weekIndex*len(weekdays)+i-skippedInFirstWeek >= *rule.Count {
				return out, nil
			}
			end := start.Add(duration)
			if Overlaps(start, end, windowStart, windowEnd) {
				occ := b
				occ.StartAt = start
				occ.EndAt = end
				out = append(out, occ)
			}
		}
	}
	return out, nil
}
