package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyThrottledUntil stores the end of the current throttle window as a
// Unix timestamp, shared by every process hitting the same API account.
const RedisKeyThrottledUntil = "s1:ratelimit:throttled_until"

// Prometheus metrics for the shared throttle window.
var (
	s1ThrottleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s1_throttle_waits_total",
		Help: "Total number of requests that waited for a shared throttle window",
	})

	s1ThrottleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "s1_throttle_wait_seconds",
		Help:    "Time spent waiting for shared throttle windows to pass",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})
)

// SharedThrottle coordinates the API's announced throttle windows across
// processes through Redis.
type SharedThrottle struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewSharedThrottle creates a shared throttle backed by the given Redis client.
func NewSharedThrottle(redisClient *redis.Client, logger zerolog.Logger) *SharedThrottle {
	return &SharedThrottle{
		redis:  redisClient,
		logger: logger,
	}
}

// Remaining returns how long the current throttle window still has to run.
// Zero means no window is active; a missing key counts as healthy.
func (t *SharedThrottle) Remaining(ctx context.Context) (time.Duration, error) {
	until, err := t.redis.Get(ctx, RedisKeyThrottledUntil).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get throttle window: %w", err)
	}

	remaining := time.Until(time.Unix(until, 0))
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// SetUntil publishes a throttle window end time. The key expires with the
// window so stale state cannot linger.
func (t *SharedThrottle) SetUntil(ctx context.Context, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	if err := t.redis.Set(ctx, RedisKeyThrottledUntil, until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("set throttle window: %w", err)
	}

	t.logger.Warn().
		Time("until", until).
		Dur("window", ttl).
		Msg("Published shared throttle window")
	return nil
}

// Wait blocks until the active throttle window has passed, or the context is
// cancelled. Returns immediately when no window is active.
func (t *SharedThrottle) Wait(ctx context.Context) error {
	remaining, err := t.Remaining(ctx)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return nil
	}

	s1ThrottleWaitsTotal.Inc()
	s1ThrottleWaitSeconds.Observe(remaining.Seconds())
	t.logger.Warn().
		Dur("wait", remaining).
		Msg("Waiting for shared throttle window")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(remaining):
		return nil
	}
}

// Clear removes any active throttle window.
func (t *SharedThrottle) Clear(ctx context.Context) error {
	if err := t.redis.Del(ctx, RedisKeyThrottledUntil).Err(); err != nil {
		return fmt.Errorf("clear throttle window: %w", err)
	}
	return nil
}
