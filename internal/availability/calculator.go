package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"
	"roomly/internal/store"
	"roomly/internal/venues"

	"github.com/google/uuid"
)

// DefaultMaxWindow caps the span a single Check may ask about
const DefaultMaxWindow = 31 * 24 * time.Hour

// ErrOutsideView is returned when a snapshot asks for more than its RoomView holds
var ErrOutsideView = errors.New("window is outside the loaded room view")

// RoomView is the directory side of a room over a window: the room, its
// opening hours and the blocked slots overlapping the window. Write paths
// load it before opening the room's write scope so the scope itself only
// touches the store.
type RoomView struct {
	Room    *domain.Room
	Window  calendar.Interval
	hours   []calendar.DailyWindow
	blocked []calendar.Interval
}

// NewRoomView assembles a view from directory data already in hand
func NewRoomView(room *domain.Room, window calendar.Interval, hours []calendar.DailyWindow, blocked []calendar.Interval) *RoomView {
	return &RoomView{
		Room:    room,
		Window:  calendar.Interval{Start: window.Start.UTC(), End: window.End.UTC()},
		hours:   hours,
		blocked: calendar.Merge(blocked),
	}
}

// Covers reports whether window lies inside the loaded window
func (v *RoomView) Covers(window calendar.Interval) bool {
	return v.Window.Contains(window)
}

func (v *RoomView) blockedIn(window calendar.Interval) []calendar.Interval {
	var out []calendar.Interval
	for _, b := range v.blocked {
		if calendar.Overlaps(b, window) {
			out = append(out, b)
		}
	}
	return out
}

// Snapshot is everything known about a room over one window at one point in time
type Snapshot struct {
	Room         *domain.Room
	Window       calendar.Interval
	Open         []calendar.Interval
	Blocked      []calendar.Interval
	Reservations []domain.Reservation
}

// Busy returns blocked slots and occupying reservations merged
func (s *Snapshot) Busy() []calendar.Interval {
	busy := make([]calendar.Interval, 0, len(s.Blocked)+len(s.Reservations))
	busy = append(busy, s.Blocked...)
	for _, r := range s.Reservations {
		busy = append(busy, r.Interval())
	}
	return calendar.Merge(busy)
}

// Free returns the bookable gaps of the window, ascending
func (s *Snapshot) Free() []calendar.Interval {
	return calendar.SubtractAll(s.Open, s.Busy())
}

// IsOpen reports whether iv lies entirely within one operating period
func (s *Snapshot) IsOpen(iv calendar.Interval) bool {
	for _, o := range s.Open {
		if o.Contains(iv) {
			return true
		}
	}
	return false
}

// IsFree reports whether iv lies entirely within one free gap
func (s *Snapshot) IsFree(iv calendar.Interval) bool {
	for _, f := range s.Free() {
		if f.Contains(iv) {
			return true
		}
	}
	return false
}

// Calculator answers what can be booked in a room
type Calculator struct {
	directory venues.Directory
	reader    store.Reader
	timeout   time.Duration
	maxWindow time.Duration
}

// Option tunes a Calculator
type Option func(*Calculator)

// WithMaxWindow sets the longest window Check accepts
func WithMaxWindow(d time.Duration) Option {
	return func(c *Calculator) {
		if d > 0 {
			c.maxWindow = d
		}
	}
}

// NewCalculator reads reservations through reader; timeout bounds each
// persistence read (zero disables it)
func NewCalculator(directory venues.Directory, reader store.Reader, timeout time.Duration, opts ...Option) *Calculator {
	c := &Calculator{
		directory: directory,
		reader:    reader,
		timeout:   timeout,
		maxWindow: DefaultMaxWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns the free intervals of roomID within window that last at least minDuration
func (c *Calculator) Check(ctx context.Context, roomID uuid.UUID, window calendar.Interval, minDuration time.Duration) ([]calendar.Interval, error) {
	if !window.Valid() {
		return nil, apperrors.InvalidArgument("window", "end must be after start")
	}
	if window.Duration() > c.maxWindow {
		return nil, apperrors.InvalidArgument("window", "at most %s per request", c.maxWindow)
	}
	if minDuration < 0 {
		return nil, apperrors.InvalidArgument("min_duration", "must not be negative")
	}

	view, err := c.LoadView(ctx, roomID, window)
	if err != nil {
		return nil, err
	}
	snap, err := c.Snapshot(ctx, c.reader, view, window, nil)
	if err != nil {
		return nil, err
	}

	free := snap.Free()
	if minDuration > 0 {
		free = calendar.FilterMinDuration(free, minDuration)
	}
	return free, nil
}

// LoadView reads the room, its opening hours and the blocked slots
// overlapping window from the directory
func (c *Calculator) LoadView(ctx context.Context, roomID uuid.UUID, window calendar.Interval) (*RoomView, error) {
	window = calendar.Interval{Start: window.Start.UTC(), End: window.End.UTC()}
	if !window.Valid() {
		return nil, apperrors.InvalidArgument("window", "end must be after start")
	}

	room, err := c.directory.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	hours, err := c.directory.GetRoomOperatingHours(ctx, roomID)
	if err != nil {
		return nil, err
	}
	blocked, err := c.directory.GetBlockedIntervals(ctx, roomID, window)
	if err != nil {
		return nil, err
	}
	return NewRoomView(room, window, hours, blocked), nil
}

// Snapshot combines view with the occupying reservations read from reader.
// Inside a write scope pass the scope's transaction as reader. exclude
// leaves one reservation out. window must lie inside view.
func (c *Calculator) Snapshot(ctx context.Context, reader store.Reader, view *RoomView, window calendar.Interval, exclude *uuid.UUID) (*Snapshot, error) {
	window = calendar.Interval{Start: window.Start.UTC(), End: window.End.UTC()}
	if !window.Valid() {
		return nil, apperrors.InvalidArgument("window", "end must be after start")
	}
	if !view.Covers(window) {
		return nil, fmt.Errorf("%w: %s not in %s", ErrOutsideView, window, view.Window)
	}

	readCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	reservations, err := reader.ListOccupying(readCtx, view.Room.ID, window, exclude)
	if err != nil {
		return nil, apperrors.FromContext("persistence", fmt.Errorf("failed to list reservations: %w", err))
	}

	return &Snapshot{
		Room:         view.Room,
		Window:       window,
		Open:         calendar.OperatingWindows(window, view.hours, view.Room.Location()),
		Blocked:      view.blockedIn(window),
		Reservations: reservations,
	}, nil
}

func (c *Calculator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
