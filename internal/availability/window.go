package availability

import (
	"cmp"
	"slices"

	"slotline/backend/internal/domain"
)

// Window is a half-open span of local wall-clock time within one day.
type Window struct {
	Start domain.TimeOfDay
	End   domain.TimeOfDay
}

func (w Window) Empty() bool {
	return w.End <= w.Start
}

func (w Window) Minutes() int {
	if w.Empty() {
		return 0
	}
	return int(w.End - w.Start)
}

// Subtract removes obstruction from every window, splitting a window in two
// when the obstruction falls strictly inside it.
func Subtract(windows []Window, obstruction Window) []Window {
	if obstruction.Empty() {
		return windows
	}
	out := make([]Window, 0, len(windows)+1)
	for _, w := range windows {
		if obstruction.End <= w.Start || obstruction.Start >= w.End {
			out = append(out, w)
			continue
		}
		if obstruction.Start > w.Start {
			out = append(out, Window{Start: w.Start, End: obstruction.Start})
		}
		if obstruction.End < w.End {
			out = append(out, Window{Start: obstruction.End, End: w.End})
		}
	}
	return out
}

// Normalize drops empty windows, sorts the rest and merges any that overlap
// or touch, leaving a disjoint ascending list.
func Normalize(windows []Window) []Window {
	out := make([]Window, 0, len(windows))
	for _, w := range windows {
		if !w.Empty() {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b Window) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	merged := out[:0]
	for _, w := range out {
		if n := len(merged); n > 0 && w.Start <= merged[n-1].End {
			if w.End > merged[n-1].End {
				merged[n-1].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
