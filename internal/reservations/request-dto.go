package reservations

import (
	"time"

	"roomly/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CreateReservationRequest struct {
	RoomID    uuid.UUID `json:"room_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	Strategy  string    `json:"strategy" binding:"omitempty,oneof=reject suggest_alternatives notify_admin"`
}

type CreateRecurringRequest struct {
	RoomID          uuid.UUID  `json:"room_id" binding:"required"`
	FirstStart      time.Time  `json:"first_start" binding:"required"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=1440"`
	Frequency       string     `json:"frequency" binding:"required,oneof=daily weekly"`
	Interval        int        `json:"interval" binding:"required,min=1"`
	Count           *int       `json:"count,omitempty" binding:"omitempty,min=1"`
	Until           *time.Time `json:"until,omitempty"`
}

// Pattern converts the request into a domain pattern
func (r CreateRecurringRequest) Pattern() domain.Pattern {
	return domain.Pattern{
		Frequency: domain.Frequency(r.Frequency),
		Interval:  r.Interval,
		Count:     r.Count,
		Until:     r.Until,
	}
}

// validateRecurringRequest requires exactly one end condition
func validateRecurringRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateRecurringRequest)
	if req.Count == nil && req.Until == nil {
		sl.ReportError(req.Count, "Count", "count", "required_without", "Until")
	}
	if req.Count != nil && req.Until != nil {
		sl.ReportError(req.Until, "Until", "until", "excluded_with", "Count")
	}
}

type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type ExtendReservationRequest struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,min=1,max=1440"`
}

type ListReservationsQuery struct {
	Status string     `form:"status" binding:"omitempty,oneof=pending confirmed checked_in checked_out completed cancelled no_show"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page   int        `form:"page" binding:"omitempty,min=1"`
	Limit  int        `form:"limit" binding:"omitempty,min=1,max=100"`
}

type RoomScheduleQuery struct {
	Start time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End   time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}
