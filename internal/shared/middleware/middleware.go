package middleware

import (
	"net/http"
	"time"

	"roomly/internal/shared/utils/response"
	"roomly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"

	ContextUserID    = "user_id"
	ContextRequestID = "request_id"
)

// RequireUser reads the caller identity forwarded by the gateway. Authentication
// itself happens upstream; requests without a well-formed id are rejected.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		if raw == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, HeaderUserID+" header is required", nil, nil)
			c.Abort()
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid user id", nil, nil)
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), userID.String()))
		c.Next()
	}
}

// UserID returns the id set by RequireUser
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RequestID propagates or assigns X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs one line per request. Request and user ids come from
// the request context set by RequestID and RequireUser.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogHTTPRequest(c, time.Since(start))
	}
}
