package availability

import (
	"iter"
	"time"

	"slotline/backend/internal/domain"
)

const DefaultStepMinutes = 15

// Slot is a candidate booking interval in local wall-clock time.
type Slot struct {
	Start domain.TimeOfDay
	End   domain.TimeOfDay
}

// Instants returns the slot's absolute range on date in loc.
func (s Slot) Instants(date time.Time, loc *time.Location) (time.Time, time.Time) {
	return s.Start.On(date, loc), s.End.On(date, loc)
}

// GenerateSlots walks each window with a fixed step and yields every start
// whose service duration plus trailing buffer still fits inside the window.
// The buffer reserves room after the slot but is not part of it. A step of
// zero or less uses DefaultStepMinutes. The sequence can be ranged over any
// number of times.
func GenerateSlots(windows []Window, durationMinutes, bufferMinutes, stepMinutes int) iter.Seq[Slot] {
	if stepMinutes <= 0 {
		stepMinutes = DefaultStepMinutes
	}
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}
	reserved := durationMinutes + bufferMinutes

	return func(yield func(Slot) bool) {
		if durationMinutes <= 0 {
			return
		}
		for _, w := range windows {
			for cursor := w.Start; cursor.Add(reserved) <= w.End; cursor = cursor.Add(stepMinutes) {
				if !yield(Slot{Start: cursor, End: cursor.Add(durationMinutes)}) {
					return
				}
			}
		}
	}
}
