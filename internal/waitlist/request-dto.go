package waitlist

import (
	"time"

	"github.com/google/uuid"
)

type EnqueueRequest struct {
	RoomID       uuid.UUID `json:"room_id" binding:"required"`
	DesiredStart time.Time `json:"desired_start" binding:"required"`
	DesiredEnd   time.Time `json:"desired_end" binding:"required,gtfield=DesiredStart"`
}
