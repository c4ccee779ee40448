package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	return NewWithWriter(&buf, level), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	return rec
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestContextHandler_AddsRequestIDs(t *testing.T) {
	log, buf := newJSONLogger(t, "info")

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "user-1")
	log.InfoContext(ctx, "hello")

	rec := decodeLine(t, buf)
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "user-1", rec["user_id"])

	id, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestContextHandler_SurvivesWith(t *testing.T) {
	log, buf := newJSONLogger(t, "info")

	ctx := ContextWithRequestID(context.Background(), "req-2")
	log.WithError(errors.New("boom")).WarnContext(ctx, "failed")

	rec := decodeLine(t, buf)
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "req-2", rec["request_id"])
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newJSONLogger(t, "warn")

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Equal(t, "kept", decodeLine(t, buf)["msg"])
}

func TestLogHTTPRequest_LevelByStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusConflict, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			log, buf := newJSONLogger(t, "info")

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/reservations?dry=1", nil)
			c.Status(tc.status)
			c.Writer.WriteHeaderNow()

			log.LogHTTPRequest(c, 5*time.Millisecond)

			rec := decodeLine(t, buf)
			assert.Equal(t, tc.level, rec["level"])
			assert.Equal(t, float64(tc.status), rec["status"])
			assert.Equal(t, "dry=1", rec["query"])
		})
	}
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	before := GetDefault()
	SetDefault(nil)
	assert.Same(t, before, GetDefault())
}
