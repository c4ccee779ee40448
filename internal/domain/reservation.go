package domain

import (
	"time"

	"roomly/internal/calendar"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	StatusPending    ReservationStatus = "pending"
	StatusConfirmed  ReservationStatus = "confirmed"
	StatusCheckedIn  ReservationStatus = "checked_in"
	StatusCheckedOut ReservationStatus = "checked_out"
	StatusCompleted  ReservationStatus = "completed"
	StatusCancelled  ReservationStatus = "cancelled"
	StatusNoShow     ReservationStatus = "no_show"
)

// OccupyingStatuses are the statuses that hold capacity in a room
var OccupyingStatuses = []ReservationStatus{StatusPending, StatusConfirmed, StatusCheckedIn}

var validTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusCheckedOut},
	StatusCheckedOut: {StatusCompleted},
}

// IsValid checks if the reservation status is known
func (s ReservationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s ReservationStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOccupying reports whether a reservation in this status blocks the room
func (s ReservationStatus) IsOccupying() bool {
	for _, o := range OccupyingStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s ReservationStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

type Reservation struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID             uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservations_room_window,priority:1" json:"room_id"`
	VenueID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"venue_id"`
	UserID             uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	StartTime          time.Time         `gorm:"not null;index:idx_reservations_room_window,priority:2" json:"start_time"`
	EndTime            time.Time         `gorm:"not null;index:idx_reservations_room_window,priority:3" json:"end_time"`
	Status             ReservationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RecurringGroupID   *uuid.UUID        `gorm:"type:uuid;index" json:"recurring_group_id,omitempty"`
	WaitlistEntryID    *uuid.UUID        `gorm:"type:uuid" json:"waitlist_entry_id,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	CheckedInAt        *time.Time        `json:"checked_in_at,omitempty"`
	CheckedOutAt       *time.Time        `json:"checked_out_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// NewReservation builds a pending reservation for the given interval
func NewReservation(room *Room, userID uuid.UUID, interval calendar.Interval, now time.Time) *Reservation {
	return &Reservation{
		ID:        uuid.New(),
		RoomID:    room.ID,
		VenueID:   room.VenueID,
		UserID:    userID,
		StartTime: interval.Start.UTC(),
		EndTime:   interval.End.UTC(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BeforeCreate assigns an id when the caller did not
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Interval returns the reserved [StartTime, EndTime) range
func (r *Reservation) Interval() calendar.Interval {
	return calendar.Interval{Start: r.StartTime, End: r.EndTime}
}

// Normalize forces stored instants to UTC
func (r *Reservation) Normalize() {
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
}
