package venues

import (
	"net/http"

	"roomly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	directory Directory
}

func NewController(directory Directory) *Controller {
	return &Controller{directory: directory}
}

// GetRoom returns a room with its weekly opening hours
func (c *Controller) GetRoom(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid room ID", nil, nil)
		return
	}

	room, err := c.directory.GetRoom(ctx.Request.Context(), roomID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	hours, err := c.directory.GetRoomOperatingHours(ctx.Request.Context(), roomID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Room retrieved", toRoomResponse(room, hours), nil)
}

// SetupVenueRoutes configures the read-only room routes
func SetupVenueRoutes(rg *gin.RouterGroup, controller *Controller) {
	rg.GET("/rooms/:id", controller.GetRoom)
}
