package reservations

import (
	"roomly/internal/domain"
	"roomly/internal/recurrence"
)

type ReservationListResponse struct {
	Reservations []domain.Reservation `json:"reservations"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
}

type RecurringReservationResponse struct {
	Group   *domain.RecurringGroup `json:"group"`
	Created []domain.Reservation   `json:"created"`
	Skipped []recurrence.Skipped   `json:"skipped"`
}

func toRecurringResponse(r *recurrence.Result) RecurringReservationResponse {
	return RecurringReservationResponse{
		Group:   r.Group,
		Created: r.Created,
		Skipped: r.Skipped,
	}
}
