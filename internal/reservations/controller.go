package reservations

import (
	"context"
	"net/http"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/domain"
	"roomly/internal/recurrence"
	"roomly/internal/shared/middleware"
	"roomly/internal/shared/utils/response"
	"roomly/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) CreateReservation(ctx *gin.Context) {
	var req CreateReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	reservation, err := c.service.Create(ctx.Request.Context(), CreateInput{
		RoomID:   req.RoomID,
		UserID:   userID,
		Interval: calendar.Interval{Start: req.StartTime, End: req.EndTime},
		Strategy: domain.Strategy(req.Strategy),
	})
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Reservation created", reservation, nil)
}

func (c *Controller) CreateRecurringReservation(ctx *gin.Context) {
	var req CreateRecurringRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	result, err := c.service.CreateRecurring(ctx.Request.Context(), recurrence.Request{
		RoomID:     req.RoomID,
		UserID:     userID,
		FirstStart: req.FirstStart,
		Duration:   time.Duration(req.DurationMinutes) * time.Minute,
		Pattern:    req.Pattern(),
	})
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	message := "Recurring reservation created"
	if len(result.Skipped) > 0 {
		message = "Recurring reservation created with skipped occurrences"
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, message, toRecurringResponse(result), nil)
}

func (c *Controller) GetReservation(ctx *gin.Context) {
	id, ok := reservationID(ctx)
	if !ok {
		return
	}

	reservation, err := c.service.Get(ctx.Request.Context(), id)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation retrieved", reservation, nil)
}

func (c *Controller) ListMyReservations(ctx *gin.Context) {
	var q ListReservationsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	query := store.ListQuery{From: q.From, To: q.To, Page: q.Page, Limit: q.Limit}
	if q.Status != "" {
		status := domain.ReservationStatus(q.Status)
		query.Status = &status
	}

	list, total, err := c.service.ListByUser(ctx.Request.Context(), userID, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	page, limit := q.Page, q.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 20
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservations retrieved", ReservationListResponse{
		Reservations: list,
		Total:        total,
		Page:         page,
		Limit:        limit,
	}, nil)
}

// ListRoomSchedule returns every reservation on a room overlapping [start, end)
func (c *Controller) ListRoomSchedule(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid room ID", nil, nil)
		return
	}

	var q RoomScheduleQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	list, err := c.service.ListByRoom(ctx.Request.Context(), roomID, calendar.Interval{Start: q.Start.UTC(), End: q.End.UTC()})
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	if list == nil {
		list = []domain.Reservation{}
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Room schedule retrieved", gin.H{
		"room_id":      roomID,
		"reservations": list,
		"total":        len(list),
	}, nil)
}

func (c *Controller) Confirm(ctx *gin.Context) {
	c.runTransition(ctx, "Reservation confirmed", c.service.Confirm)
}

func (c *Controller) CheckIn(ctx *gin.Context) {
	c.runTransition(ctx, "Checked in", c.service.CheckIn)
}

func (c *Controller) CheckOut(ctx *gin.Context) {
	c.runTransition(ctx, "Checked out", c.service.CheckOut)
}

func (c *Controller) Complete(ctx *gin.Context) {
	c.runTransition(ctx, "Reservation completed", c.service.Complete)
}

func (c *Controller) MarkNoShow(ctx *gin.Context) {
	c.runTransition(ctx, "Reservation marked as no-show", c.service.MarkNoShow)
}

func (c *Controller) Cancel(ctx *gin.Context) {
	id, ok := reservationID(ctx)
	if !ok {
		return
	}

	var req CancelReservationRequest
	// the body is optional
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	reservation, err := c.service.Cancel(ctx.Request.Context(), id, req.Reason)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation cancelled", reservation, nil)
}

func (c *Controller) Extend(ctx *gin.Context) {
	id, ok := reservationID(ctx)
	if !ok {
		return
	}

	var req ExtendReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	reservation, err := c.service.Extend(ctx.Request.Context(), id, time.Duration(req.AdditionalMinutes)*time.Minute)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation extended", reservation, nil)
}

func (c *Controller) runTransition(ctx *gin.Context, message string, op func(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)) {
	id, ok := reservationID(ctx)
	if !ok {
		return
	}

	reservation, err := op(ctx.Request.Context(), id)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, message, reservation, nil)
}

func reservationID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return uuid.Nil, false
	}
	return id, true
}
