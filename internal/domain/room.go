package domain

import (
	"fmt"
	"time"

	"roomly/internal/calendar"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Venue and room rows are owned by the venue subsystem; the engine only reads them.

type Venue struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Timezone  string    `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VenueID   uuid.UUID `gorm:"type:uuid;not null;index" json:"venue_id"`
	Name      string    `gorm:"not null" json:"name"`
	Capacity  int       `gorm:"not null;default:1" json:"capacity"`
	Timezone  string    `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Location resolves the room's IANA zone, falling back to UTC
func (r *Room) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OperatingHours is one weekly opening period for a room. Times are wall-clock
// "HH:MM" in the room's time zone.
type OperatingHours struct {
	ID       uint         `gorm:"primaryKey" json:"-"`
	RoomID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"room_id"`
	Weekday  time.Weekday `gorm:"not null" json:"weekday"`
	OpensAt  string       `gorm:"type:varchar(5);not null" json:"opens_at"`
	ClosesAt string       `gorm:"type:varchar(5);not null" json:"closes_at"`
}

func (OperatingHours) TableName() string {
	return "room_operating_hours"
}

// Window converts the row into a calendar.DailyWindow
func (h OperatingHours) Window() (calendar.DailyWindow, error) {
	open, err := calendar.ParseClock(h.OpensAt)
	if err != nil {
		return calendar.DailyWindow{}, fmt.Errorf("opens_at: %w", err)
	}
	closes, err := calendar.ParseClock(h.ClosesAt)
	if err != nil {
		return calendar.DailyWindow{}, fmt.Errorf("closes_at: %w", err)
	}
	return calendar.DailyWindow{Weekday: h.Weekday, OpenMinute: open, CloseMinute: closes}, nil
}

// DailyWindows converts a set of rows, failing on the first malformed one
func DailyWindows(hours []OperatingHours) ([]calendar.DailyWindow, error) {
	out := make([]calendar.DailyWindow, 0, len(hours))
	for _, h := range hours {
		w, err := h.Window()
		if err != nil {
			return nil, fmt.Errorf("room %s weekday %d: %w", h.RoomID, h.Weekday, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// BlockedSlot is a maintenance or closure period during which a room cannot be booked
type BlockedSlot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;index" json:"room_id"`
	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null;index" json:"end_time"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *BlockedSlot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b BlockedSlot) Interval() calendar.Interval {
	return calendar.Interval{Start: b.StartTime, End: b.EndTime}
}
