package venues

import (
	"context"
	"sync"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/shared/apperrors"

	"github.com/google/uuid"
)

// StaticDirectory is an in-process Directory for tests and local tooling
type StaticDirectory struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]domain.Room
	hours   map[uuid.UUID][]calendar.DailyWindow
	blocked map[uuid.UUID][]calendar.Interval

	// Delay is applied to every lookup, honoring ctx
	Delay time.Duration
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		rooms:   make(map[uuid.UUID]domain.Room),
		hours:   make(map[uuid.UUID][]calendar.DailyWindow),
		blocked: make(map[uuid.UUID][]calendar.Interval),
	}
}

// AddRoom registers room, assigning an id when it has none
func (d *StaticDirectory) AddRoom(room domain.Room, hours ...calendar.DailyWindow) *domain.Room {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.VenueID == uuid.Nil {
		room.VenueID = uuid.New()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[room.ID] = room
	d.hours[room.ID] = append([]calendar.DailyWindow(nil), hours...)
	return &room
}

func (d *StaticDirectory) Block(roomID uuid.UUID, iv calendar.Interval) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocked[roomID] = append(d.blocked[roomID], iv)
}

func (d *StaticDirectory) wait(ctx context.Context) error {
	if d.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d.Delay):
		return nil
	case <-ctx.Done():
		return apperrors.FromContext("room directory", ctx.Err())
	}
}

func (d *StaticDirectory) GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	if err := d.wait(ctx); err != nil {
		return nil, apperrors.FromContext("room directory", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return nil, apperrors.NotFound("room", roomID)
	}
	return &room, nil
}

func (d *StaticDirectory) GetRoomOperatingHours(ctx context.Context, roomID uuid.UUID) ([]calendar.DailyWindow, error) {
	if err := d.wait(ctx); err != nil {
		return nil, apperrors.FromContext("room directory", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.rooms[roomID]; !ok {
		return nil, apperrors.NotFound("room", roomID)
	}
	return append([]calendar.DailyWindow(nil), d.hours[roomID]...), nil
}

func (d *StaticDirectory) GetBlockedIntervals(ctx context.Context, roomID uuid.UUID, window calendar.Interval) ([]calendar.Interval, error) {
	if err := d.wait(ctx); err != nil {
		return nil, apperrors.FromContext("room directory", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []calendar.Interval
	for _, iv := range d.blocked[roomID] {
		if calendar.Overlaps(iv, window) {
			out = append(out, iv)
		}
	}
	return calendar.Merge(out), nil
}
