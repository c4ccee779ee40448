package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"roomly/internal/shared/constants"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type RateLimitType string

const (
	RateLimitTypeDefault  RateLimitType = "default"
	RateLimitTypePublic   RateLimitType = "public"
	RateLimitTypeBooking  RateLimitType = "booking"
	RateLimitTypeWaitlist RateLimitType = "waitlist"
	RateLimitTypeHealth   RateLimitType = "health"
)

type Config struct {
	Enabled          bool          `json:"enabled"`
	WindowDuration   time.Duration `json:"window_duration"`
	DefaultRequests  int           `json:"default_requests"`
	PublicRequests   int           `json:"public_requests"`
	BookingRequests  int           `json:"booking_requests"`
	WaitlistRequests int           `json:"waitlist_requests"`
	WhitelistedIPs   []string      `json:"whitelisted_ips"`
}

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Limiter decides whether a client may make one more request of a kind
type Limiter interface {
	IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error)
}

// limits holds the per-type budgets and the checks shared by both limiters
type limits struct {
	config    *Config
	whitelist map[string]bool
}

func newLimits(config *Config) limits {
	wl := make(map[string]bool, len(config.WhitelistedIPs))
	for _, ip := range config.WhitelistedIPs {
		wl[ip] = true
	}
	return limits{config: config, whitelist: wl}
}

func (l limits) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return l.config.PublicRequests
	case RateLimitTypeBooking:
		return l.config.BookingRequests
	case RateLimitTypeWaitlist:
		return l.config.WaitlistRequests
	default:
		return l.config.DefaultRequests
	}
}

// unlimited returns a passing result when limiting does not apply
func (l limits) unlimited(clientIP string, limitType RateLimitType) (*Result, bool) {
	if l.config.Enabled && limitType != RateLimitTypeHealth && !l.whitelist[clientIP] {
		return nil, false
	}
	limit := l.getLimit(limitType)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit,
		ResetTime: time.Now().Add(l.config.WindowDuration).Unix(),
	}, true
}

// RateLimiter is a sliding-window limiter shared by every instance through Redis
type RateLimiter struct {
	limits
	client *redis.Client
}

func NewRateLimiter(client *redis.Client, config *Config) *RateLimiter {
	return &RateLimiter{
		limits: newLimits(config),
		client: client,
	}
}

// slidingWindow trims the window, then records the request if there is room.
// It returns the count after the attempt and whether it was recorded.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current_count = redis.call('ZCARD', key)

	if current_count >= limit then
		redis.call('PEXPIRE', key, window_ms)
		return {current_count, 0}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return {current_count + 1, 1}
`)

func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	if res, ok := r.unlimited(clientIP, limitType); ok {
		return res, nil
	}

	key := constants.BuildRateLimitKey(clientIP, string(limitType))
	limit := r.getLimit(limitType)
	return r.checkLimit(ctx, key, limit)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-r.config.WindowDuration)

	values, err := slidingWindow.Run(ctx, r.client, []string{key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		r.config.WindowDuration.Milliseconds(),
		strconv.FormatInt(now.UnixNano(), 10),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	count, recorded := int(values[0]), values[1] == 1
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   recorded,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

// LocalLimiter is a per-process token bucket limiter for running without Redis.
// Each client and type gets a bucket that refills limit tokens per window.
type LocalLimiter struct {
	limits

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLocalLimiter(config *Config) *LocalLimiter {
	return &LocalLimiter{
		limits:  newLimits(config),
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) bucket(key string, limit int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		every := l.config.WindowDuration / time.Duration(limit)
		b = rate.NewLimiter(rate.Every(every), limit)
		l.buckets[key] = b
	}
	return b
}

func (l *LocalLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	if res, ok := l.unlimited(clientIP, limitType); ok {
		return res, nil
	}

	limit := l.getLimit(limitType)
	if limit <= 0 {
		return &Result{Allowed: false, ResetTime: time.Now().Add(l.config.WindowDuration).Unix()}, nil
	}

	now := time.Now()
	b := l.bucket(clientIP+":"+string(limitType), limit)
	allowed := b.AllowN(now, 1)
	remaining := int(b.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(l.config.WindowDuration).Unix(),
	}, nil
}
