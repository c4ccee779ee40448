package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with the engine's logging helpers
type Logger struct {
	*slog.Logger
}

// New creates a logger at LOG_LEVEL
func New() *Logger {
	return NewWithLevel(os.Getenv("LOG_LEVEL"))
}

// NewWithLevel creates a logger at the named level ("debug", "info", "warn", "error")
func NewWithLevel(levelStr string) *Logger {
	return NewWithWriter(os.Stdout, levelStr)
}

// NewWithWriter is NewWithLevel writing to w. Text output in gin debug mode,
// JSON otherwise.
func NewWithWriter(w io.Writer, levelStr string) *Logger {
	level := parseLevel(levelStr)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(contextHandler{handler})}
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// ContextWithRequestID tags ctx so every *Context log call made with it
// carries request_id
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithUserID tags ctx with the caller id
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequestIDFromContext returns the id set by ContextWithRequestID
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// contextHandler copies request-scoped ids from the context onto each record
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("request_id", id))
		}
		if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("user_id", id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// LogHTTPRequest logs a finished request; 4xx at warn, 5xx at error
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	status := c.Writer.Status()
	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("route", c.FullPath()),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.Int("size", c.Writer.Size()),
	}
	if q := c.Request.URL.RawQuery; q != "" {
		attrs = append(attrs, slog.String("query", q))
	}
	for _, e := range c.Errors {
		attrs = append(attrs, slog.String("error", e.Error()))
	}
	l.Logger.LogAttrs(c.Request.Context(), level, "HTTP Request", attrs...)
}

// Reservation engine logging methods

// LogReservationCreated logs when a reservation is written
func (l *Logger) LogReservationCreated(ctx context.Context, reservationID, roomID, userID string) {
	l.Logger.InfoContext(ctx,
		"Reservation Created",
		slog.String("reservation_id", reservationID),
		slog.String("room_id", roomID),
		slog.String("owner_id", userID),
	)
}

// LogReservationTransition logs a lifecycle change
func (l *Logger) LogReservationTransition(ctx context.Context, reservationID, from, to string) {
	l.Logger.InfoContext(ctx,
		"Reservation Transition",
		slog.String("reservation_id", reservationID),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogConflictDetected logs a rejected candidate interval
func (l *Logger) LogConflictDetected(ctx context.Context, roomID, interval string, conflicting int, strategy string) {
	l.Logger.InfoContext(ctx,
		"Conflict Detected",
		slog.String("room_id", roomID),
		slog.String("interval", interval),
		slog.Int("conflicting", conflicting),
		slog.String("strategy", strategy),
	)
}

// LogWaitlistPromoted logs a waitlist entry turning into a reservation
func (l *Logger) LogWaitlistPromoted(ctx context.Context, entryID, reservationID, roomID string) {
	l.Logger.InfoContext(ctx,
		"Waitlist Entry Promoted",
		slog.String("entry_id", entryID),
		slog.String("reservation_id", reservationID),
		slog.String("room_id", roomID),
	)
}

// LogRateLimitExceeded logs a rejected request
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, route string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("route", route),
	)
}

// ErrorWithContext logs err with extra fields
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]any, 0, len(fields)+1)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New())
}

// GetDefault returns the process-wide logger
func GetDefault() *Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}
