package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DailyWindow is a recurring opening period on one weekday, expressed in
// minutes after local midnight. A CloseMinute at or before OpenMinute means
// the period runs past midnight into the following day.
type DailyWindow struct {
	Weekday     time.Weekday
	OpenMinute  int
	CloseMinute int
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// OperatingWindows expands weekly opening hours into concrete intervals that
// intersect window, evaluated in loc so DST shifts land on wall-clock times.
// No hours at all means the room is always open.
func OperatingWindows(window Interval, hours []DailyWindow, loc *time.Location) []Interval {
	if !window.Valid() {
		return nil
	}
	if len(hours) == 0 {
		return []Interval{window}
	}
	if loc == nil {
		loc = time.UTC
	}

	first := window.Start.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day()-1, 0, 0, 0, 0, loc)

	var open []Interval
	for !day.After(window.End) {
		for _, h := range hours {
			if h.Weekday != day.Weekday() {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, h.OpenMinute, 0, 0, loc)
			closeDay := day.Day()
			if h.CloseMinute <= h.OpenMinute {
				closeDay++
			}
			end := time.Date(day.Year(), day.Month(), closeDay, 0, h.CloseMinute, 0, 0, loc)
			if clipped, ok := Intersect(window, Interval{Start: start.UTC(), End: end.UTC()}); ok {
				open = append(open, clipped)
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}
	return Merge(open)
}
