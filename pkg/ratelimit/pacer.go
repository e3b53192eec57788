// Package ratelimit enforces the API's minimum request spacing and shares
// announced throttle windows across processes through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Pacing multipliers on top of the base delay.
const (
	// rateSensitiveFactor slows endpoints that can return large datasets.
	rateSensitiveFactor = 1.5

	// highComplexityFactor slows endpoints with heavy response payloads.
	highComplexityFactor = 1.2
)

// Prometheus metrics for request pacing.
var (
	s1PacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "s1_pacer_wait_seconds",
		Help:    "Time spent waiting for the minimum request spacing",
		Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 3, 5},
	})

	s1PacerWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s1_pacer_waits_total",
		Help: "Total number of requests delayed by the pacer",
	})
)

// Profile describes how an endpoint scales the base pacing delay.
type Profile struct {
	RateSensitive  bool
	HighComplexity bool
}

// Pacer enforces a minimum delay between consecutive requests. It is safe
// for concurrent use; concurrent callers are serialized onto the schedule.
type Pacer struct {
	mu       sync.Mutex
	delay    time.Duration
	lastCall time.Time
	logger   zerolog.Logger
}

// NewPacer creates a pacer with the given base delay between requests.
func NewPacer(delay time.Duration, logger zerolog.Logger) *Pacer {
	return &Pacer{
		delay:  delay,
		logger: logger,
	}
}

// delayFor scales the base delay by the endpoint profile.
func (p *Pacer) delayFor(profile Profile) time.Duration {
	d := float64(p.delay)
	if profile.RateSensitive {
		d *= rateSensitiveFactor
	}
	if profile.HighComplexity {
		d *= highComplexityFactor
	}
	return time.Duration(d)
}

// Wait blocks until the minimum spacing since the previous request has
// elapsed, or the context is cancelled. The first call never waits.
func (p *Pacer) Wait(ctx context.Context, profile Profile) error {
	p.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if !p.lastCall.IsZero() {
		due := p.lastCall.Add(p.delayFor(profile))
		if due.After(now) {
			wait = due.Sub(now)
		}
	}
	// Claim the slot before sleeping so concurrent callers queue behind it.
	p.lastCall = now.Add(wait)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	s1PacerWaitsTotal.Inc()
	s1PacerWaitSeconds.Observe(wait.Seconds())
	p.logger.Debug().
		Dur("wait", wait).
		Bool("rate_sensitive", profile.RateSensitive).
		Bool("high_complexity", profile.HighComplexity).
		Msg("Pacing request")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
