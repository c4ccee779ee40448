package domain

import (
	"time"

	"roomly/internal/calendar"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WaitlistStatus string

const (
	WaitlistWaiting  WaitlistStatus = "waiting"
	WaitlistPromoted WaitlistStatus = "promoted"
	WaitlistExpired  WaitlistStatus = "expired"
	WaitlistRemoved  WaitlistStatus = "removed"
)

func (s WaitlistStatus) IsValid() bool {
	switch s {
	case WaitlistWaiting, WaitlistPromoted, WaitlistExpired, WaitlistRemoved:
		return true
	}
	return false
}

func (s WaitlistStatus) String() string {
	return string(s)
}

// WaitlistEntry is a user's request to be given a room interval once it frees up.
// Entries are ordered per room by EnqueuedAt, then by Sequence.
type WaitlistEntry struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	RoomID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_waitlist_room_seq,priority:1;index:idx_waitlist_room_order,priority:1" json:"room_id"`
	DesiredStart  time.Time      `gorm:"not null" json:"desired_start"`
	DesiredEnd    time.Time      `gorm:"not null" json:"desired_end"`
	EnqueuedAt    time.Time      `gorm:"not null;index:idx_waitlist_room_order,priority:2" json:"enqueued_at"`
	Sequence      int64          `gorm:"not null;uniqueIndex:idx_waitlist_room_seq,priority:2;index:idx_waitlist_room_order,priority:3" json:"sequence"`
	Status        WaitlistStatus `gorm:"type:varchar(20);not null;default:'waiting';index" json:"status"`
	ReservationID *uuid.UUID     `gorm:"type:uuid" json:"reservation_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}

func (e *WaitlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Desired returns the interval the entry is waiting for
func (e *WaitlistEntry) Desired() calendar.Interval {
	return calendar.Interval{Start: e.DesiredStart, End: e.DesiredEnd}
}

// Before reports whether e is ahead of o in promotion order
func (e *WaitlistEntry) Before(o *WaitlistEntry) bool {
	if e.EnqueuedAt.Equal(o.EnqueuedAt) {
		return e.Sequence < o.Sequence
	}
	return e.EnqueuedAt.Before(o.EnqueuedAt)
}
