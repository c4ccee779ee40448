package venues

import (
	"fmt"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"

	"github.com/google/uuid"
)

type OpeningHoursResponse struct {
	Weekday  string `json:"weekday"`
	OpensAt  string `json:"opens_at"`
	ClosesAt string `json:"closes_at"`
}

type RoomResponse struct {
	ID           uuid.UUID              `json:"id"`
	VenueID      uuid.UUID              `json:"venue_id"`
	Name         string                 `json:"name"`
	Capacity     int                    `json:"capacity"`
	Timezone     string                 `json:"timezone"`
	OpeningHours []OpeningHoursResponse `json:"opening_hours"`
	AlwaysOpen   bool                   `json:"always_open"`
	CreatedAt    time.Time              `json:"created_at"`
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func toRoomResponse(room *domain.Room, hours []calendar.DailyWindow) RoomResponse {
	resp := RoomResponse{
		ID:           room.ID,
		VenueID:      room.VenueID,
		Name:         room.Name,
		Capacity:     room.Capacity,
		Timezone:     room.Timezone,
		OpeningHours: make([]OpeningHoursResponse, 0, len(hours)),
		AlwaysOpen:   len(hours) == 0,
		CreatedAt:    room.CreatedAt,
	}
	for _, h := range hours {
		resp.OpeningHours = append(resp.OpeningHours, OpeningHoursResponse{
			Weekday:  h.Weekday.String(),
			OpensAt:  formatClock(h.OpenMinute),
			ClosesAt: formatClock(h.CloseMinute),
		})
	}
	return resp
}
