package waitlist

import (
	"time"

	"roomly/internal/domain"

	"github.com/google/uuid"
)

type EntryResponse struct {
	ID            uuid.UUID             `json:"id"`
	RoomID        uuid.UUID             `json:"room_id"`
	UserID        uuid.UUID             `json:"user_id"`
	DesiredStart  time.Time             `json:"desired_start"`
	DesiredEnd    time.Time             `json:"desired_end"`
	Status        domain.WaitlistStatus `json:"status"`
	Position      int                   `json:"position,omitempty"`
	ReservationID *uuid.UUID            `json:"reservation_id,omitempty"`
	EnqueuedAt    time.Time             `json:"enqueued_at"`
}

func toEntryResponse(e domain.WaitlistEntry, position int) EntryResponse {
	return EntryResponse{
		ID:            e.ID,
		RoomID:        e.RoomID,
		UserID:        e.UserID,
		DesiredStart:  e.DesiredStart,
		DesiredEnd:    e.DesiredEnd,
		Status:        e.Status,
		Position:      position,
		ReservationID: e.ReservationID,
		EnqueuedAt:    e.EnqueuedAt,
	}
}
