package reservations

import (
	"roomly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupReservationRoutes configures all reservation-related routes
func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterStructValidation(validateRecurringRequest, CreateRecurringRequest{})
	}

	reservations := rg.Group("/reservations")
	reservations.Use(middleware.RequireUser())
	{
		reservations.POST("", controller.CreateReservation)
		reservations.POST("/recurring", controller.CreateRecurringReservation)
		reservations.GET("/:id", controller.GetReservation)

		reservations.POST("/:id/confirm", controller.Confirm)
		reservations.POST("/:id/cancel", controller.Cancel)
		reservations.POST("/:id/check-in", controller.CheckIn)
		reservations.POST("/:id/check-out", controller.CheckOut)
		reservations.POST("/:id/complete", controller.Complete)
		reservations.POST("/:id/no-show", controller.MarkNoShow)
		reservations.POST("/:id/extend", controller.Extend)
	}

	rooms := rg.Group("/rooms")
	rooms.Use(middleware.RequireUser())
	{
		rooms.GET("/:id/reservations", controller.ListRoomSchedule)
	}

	users := rg.Group("/users/me")
	users.Use(middleware.RequireUser())
	{
		users.GET("/reservations", controller.ListMyReservations)
	}
}
