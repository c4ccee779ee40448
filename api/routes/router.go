// api/routes/router.go
package routes

import (
	"context"
	"net/http"
	"time"

	"roomly/internal/availability"
	"roomly/internal/reservations"
	"roomly/internal/shared/config"
	"roomly/internal/venues"
	"roomly/internal/waitlist"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether backing stores are reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusReporter is optionally implemented by a HealthChecker to expose
// per-store state on /status
type StatusReporter interface {
	Status(ctx context.Context) map[string]string
}

// Services bundles the engine components exposed over HTTP
type Services struct {
	Directory    venues.Directory
	Calculator   *availability.Calculator
	Reservations reservations.Service
	Waitlist     waitlist.Service
}

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	health   HealthChecker
	services Services
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, health HealthChecker, services Services) *Router {
	return &Router{
		config:   cfg,
		health:   health,
		services: services,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		venues.SetupVenueRoutes(api, venues.NewController(r.services.Directory))
		availability.SetupAvailabilityRoutes(api, availability.NewController(r.services.Calculator))
		reservations.SetupReservationRoutes(api, reservations.NewController(r.services.Reservations))
		waitlist.SetupWaitlistRoutes(api, waitlist.NewController(r.services.Waitlist))
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if r.health != nil {
			if err := r.health.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"error":     err.Error(),
					"timestamp": time.Now(),
					"service":   "roomly",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "roomly",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		body := gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		}
		if reporter, ok := r.health.(StatusReporter); ok {
			body["stores"] = reporter.Status(c.Request.Context())
		}
		c.JSON(http.StatusOK, body)
	})
}
