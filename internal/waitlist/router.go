package waitlist

import (
	"roomly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupWaitlistRoutes configures all waitlist-related routes
func SetupWaitlistRoutes(rg *gin.RouterGroup, controller *Controller) {
	waitlist := rg.Group("/waitlist")
	waitlist.Use(middleware.RequireUser())
	{
		waitlist.POST("", controller.Enqueue)
		waitlist.GET("/:id", controller.GetEntry)
		waitlist.DELETE("/:id", controller.Remove)
	}

	rg.GET("/rooms/:id/waitlist", controller.ListForRoom)
}
