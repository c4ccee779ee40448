package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Enabled:          true,
		WindowDuration:   time.Minute,
		DefaultRequests:  5,
		PublicRequests:   5,
		BookingRequests:  2,
		WaitlistRequests: 3,
		WhitelistedIPs:   []string{"10.0.0.1"},
	}
}

func exhaust(t *testing.T, l Limiter, ip string, limitType RateLimitType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		res, err := l.IsAllowed(context.Background(), ip, limitType)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i+1)
	}
}

func TestRateLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRateLimiter(client, testConfig())
	ctx := context.Background()

	exhaust(t, l, "192.0.2.1", RateLimitTypeBooking, 2)
	res, err := l.IsAllowed(ctx, "192.0.2.1", RateLimitTypeBooking)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 2, res.Limit)

	// separate budget per type and per client
	res, err = l.IsAllowed(ctx, "192.0.2.1", RateLimitTypeWaitlist)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = l.IsAllowed(ctx, "192.0.2.2", RateLimitTypeBooking)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	exhaust(t, l, "10.0.0.1", RateLimitTypeBooking, 10)
	exhaust(t, l, "192.0.2.1", RateLimitTypeHealth, 10)
}

func TestRateLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRateLimiter(client, testConfig())
	mr.Close()

	_, err := l.IsAllowed(context.Background(), "192.0.2.1", RateLimitTypeBooking)
	assert.Error(t, err)
}

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(testConfig())
	ctx := context.Background()

	exhaust(t, l, "192.0.2.1", RateLimitTypeWaitlist, 3)
	res, err := l.IsAllowed(ctx, "192.0.2.1", RateLimitTypeWaitlist)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = l.IsAllowed(ctx, "192.0.2.9", RateLimitTypeWaitlist)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	disabled := testConfig()
	disabled.Enabled = false
	exhaust(t, NewLocalLimiter(disabled), "192.0.2.1", RateLimitTypeBooking, 10)
}

func TestGetRateLimitType(t *testing.T) {
	tests := []struct {
		method, path string
		want         RateLimitType
	}{
		{http.MethodGet, "/health", RateLimitTypeHealth},
		{http.MethodPost, "/api/v1/reservations", RateLimitTypeBooking},
		{http.MethodPost, "/api/v1/reservations/:id/extend", RateLimitTypeBooking},
		{http.MethodGet, "/api/v1/reservations/:id", RateLimitTypeDefault},
		{http.MethodPost, "/api/v1/waitlist", RateLimitTypeWaitlist},
		{http.MethodGet, "/api/v1/rooms/:id/waitlist", RateLimitTypeWaitlist},
		{http.MethodGet, "/api/v1/rooms/:id/availability", RateLimitTypePublic},
		{http.MethodGet, "/api/v1/users/me/reservations", RateLimitTypeDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getRateLimitType(tt.method, tt.path), tt.method+" "+tt.path)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(NewLocalLimiter(testConfig())))
	r.POST("/api/v1/reservations", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.2")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, send().Code)
	assert.Equal(t, http.StatusCreated, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
}

type brokenLimiter struct{}

func (brokenLimiter) IsAllowed(context.Context, string, RateLimitType) (*Result, error) {
	return nil, assert.AnError
}

func TestMiddleware_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(brokenLimiter{}))
	r.POST("/api/v1/reservations", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}
