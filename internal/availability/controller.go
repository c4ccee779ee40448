package availability

import (
	"net/http"
	"time"

	"roomly/internal/calendar"
	"roomly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AvailabilityQuery struct {
	Start       time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End         time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	MinDuration int       `form:"min_duration" binding:"omitempty,min=0"` // minutes
}

type AvailabilityResponse struct {
	RoomID uuid.UUID           `json:"room_id"`
	Window calendar.Interval   `json:"window"`
	Free   []calendar.Interval `json:"free"`
}

type Controller struct {
	calculator *Calculator
}

func NewController(calculator *Calculator) *Controller {
	return &Controller{calculator: calculator}
}

func (c *Controller) GetAvailability(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid room ID", nil, nil)
		return
	}

	var q AvailabilityQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	window := calendar.Interval{Start: q.Start.UTC(), End: q.End.UTC()}
	free, err := c.calculator.Check(ctx.Request.Context(), roomID, window, time.Duration(q.MinDuration)*time.Minute)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	if free == nil {
		free = []calendar.Interval{}
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved", AvailabilityResponse{
		RoomID: roomID,
		Window: window,
		Free:   free,
	}, nil)
}

// SetupAvailabilityRoutes configures the public availability route
func SetupAvailabilityRoutes(rg *gin.RouterGroup, controller *Controller) {
	rg.GET("/rooms/:id/availability", controller.GetAvailability)
}
