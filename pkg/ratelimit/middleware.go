package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomly/internal/shared/utils/response"
	"roomly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware limits requests per client IP and route class. A limiter
// failure lets the request through: losing Redis must not stop bookings.
func Middleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		route := c.FullPath()
		limitType := getRateLimitType(c.Request.Method, route)

		result, err := limiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			logger.GetDefault().WithError(err).WarnContext(c.Request.Context(), "Rate limit check failed, allowing request",
				"ip", clientIP, "route", route)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, route)
			if wait := time.Until(time.Unix(result.ResetTime, 0)); wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
			}
			response.RespondJSON(c, "error", http.StatusTooManyRequests, "Rate limit exceeded", nil, gin.H{
				"limit":      result.Limit,
				"reset_time": result.ResetTime,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getRateLimitType classifies a route template such as /api/v1/rooms/:id/waitlist
func getRateLimitType(method, path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"):
		return RateLimitTypeHealth
	case strings.Contains(path, "/waitlist"):
		return RateLimitTypeWaitlist
	// every write on a reservation contends for a room scope
	case strings.Contains(path, "/reservations") && method != http.MethodGet:
		return RateLimitTypeBooking
	case strings.Contains(path, "/rooms/"):
		return RateLimitTypePublic
	default:
		return RateLimitTypeDefault
	}
}
