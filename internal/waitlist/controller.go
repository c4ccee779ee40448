package waitlist

import (
	"net/http"

	"roomly/internal/calendar"
	"roomly/internal/shared/middleware"
	"roomly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{
		service: service,
	}
}

func (c *Controller) Enqueue(ctx *gin.Context) {
	var request EnqueueRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	desired := calendar.Interval{Start: request.DesiredStart, End: request.DesiredEnd}
	entry, err := c.service.Enqueue(ctx.Request.Context(), userID, request.RoomID, desired)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Added to waitlist", toEntryResponse(*entry, 0), nil)
}

func (c *Controller) GetEntry(ctx *gin.Context) {
	entryID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid waitlist entry ID", nil, nil)
		return
	}

	entry, err := c.service.Get(ctx.Request.Context(), entryID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	// entries are private to their owner
	if userID, _ := middleware.UserID(ctx); entry.UserID != userID {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "waitlist entry "+entryID.String()+" not found", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist entry retrieved", entry, nil)
}

func (c *Controller) Remove(ctx *gin.Context) {
	entryID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid waitlist entry ID", nil, nil)
		return
	}

	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	if err := c.service.Remove(ctx.Request.Context(), userID, entryID); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Removed from waitlist", nil, nil)
}

func (c *Controller) ListForRoom(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid room ID", nil, nil)
		return
	}

	entries, err := c.service.ListForRoom(ctx.Request.Context(), roomID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist retrieved", gin.H{
		"room_id": roomID,
		"entries": entries,
		"total":   len(entries),
	}, nil)
}
