package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInterval is returned when an interval does not end after it starts
var ErrInvalidInterval = errors.New("interval end must be after start")

// Interval is a half-open time range [Start, End)
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval and validates that End is after Start
func New(start, end time.Time) (Interval, error) {
	i := Interval{Start: start.UTC(), End: end.UTC()}
	if !i.Valid() {
		return Interval{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return i, nil
}

// MustNew is New for literals known to be valid
func MustNew(start, end time.Time) Interval {
	i, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return i
}

// Valid reports whether the interval is non-empty
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns the length of the interval
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether o lies fully inside i
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// ContainsTime reports whether t is inside [Start, End)
func (i Interval) ContainsTime(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Extend returns a copy with End moved forward by d
func (i Interval) Extend(d time.Duration) Interval {
	return Interval{Start: i.Start, End: i.End.Add(d)}
}

func (i Interval) String() string {
	return "[" + i.Start.Format(time.RFC3339) + ", " + i.End.Format(time.RFC3339) + ")"
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Intersect returns the common part of a and b
func Intersect(a, b Interval) (Interval, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	out := Interval{Start: start, End: end}
	return out, out.Valid()
}

// IntersectAll clips every interval in set to window, dropping empty results
func IntersectAll(window Interval, set []Interval) []Interval {
	out := make([]Interval, 0, len(set))
	for _, iv := range set {
		if clipped, ok := Intersect(window, iv); ok {
			out = append(out, clipped)
		}
	}
	return Merge(out)
}

// Merge sorts intervals and coalesces overlapping or touching ones
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	for _, iv := range sorted {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes busy intervals from window and returns the free gaps in
// ascending order. Busy intervals may be unsorted and may overlap.
func Subtract(window Interval, busy []Interval) []Interval {
	if !window.Valid() {
		return nil
	}

	free := make([]Interval, 0, len(busy)+1)
	cursor := window.Start
	for _, b := range Merge(busy) {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if window.End.After(cursor) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// SubtractAll subtracts busy from each window and concatenates the gaps
func SubtractAll(windows []Interval, busy []Interval) []Interval {
	var free []Interval
	for _, w := range Merge(windows) {
		free = append(free, Subtract(w, busy)...)
	}
	return free
}

// EnumerateSlots returns every start t = window.Start + k*step such that
// [t, t+duration) fits inside window.
func EnumerateSlots(window Interval, duration, step time.Duration) []time.Time {
	if duration <= 0 || step <= 0 || !window.Valid() {
		return nil
	}

	var slots []time.Time
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		slots = append(slots, t)
	}
	return slots
}

// FilterMinDuration drops intervals shorter than min
func FilterMinDuration(intervals []Interval, min time.Duration) []Interval {
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Duration() >= min {
			out = append(out, iv)
		}
	}
	return out
}
