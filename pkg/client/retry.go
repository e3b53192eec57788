package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	s1RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	s1RetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "s1_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	s1RetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryConfigForErrorClass returns the retry configuration for an error class.
func retryConfigForErrorClass(class ErrorClass) RetryConfig {
	switch class {
	case ErrorClassMaintenance:
		// Maintenance windows are long, fixed waits.
		return RetryConfig{
			MaxAttempts:       4,
			InitialBackoff:    30 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 1.0,
		}
	case ErrorClassThrottle:
		return RetryConfig{
			MaxAttempts:       4,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// backoffFor computes the wait before the next attempt. A throttle error
// carrying a callback time overrides the exponential schedule.
func backoffFor(err error, backoff time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.CallbackTime.IsZero() {
		if wait := time.Until(apiErr.CallbackTime); wait > 0 {
			return wait
		}
	}
	// Jitter of up to 20% avoids synchronized retries.
	return time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
}

// retryWithBackoff executes a function with exponential backoff retry logic.
// It respects context cancellation and honors the API's callback time when
// one is announced.
func retryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	var backoff time.Duration
	attempts := DefaultRetryConfig().MaxAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		class := ErrorClassNetwork
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			class = apiErr.Class
		}

		if !shouldRetry(class) {
			return lastErr
		}

		config := retryConfigForErrorClass(class)
		attempts = config.MaxAttempts
		if backoff == 0 {
			backoff = config.InitialBackoff
		}

		if attempt >= attempts {
			break
		}

		s1RetriesTotal.WithLabelValues(string(class)).Inc()

		wait := backoffFor(err, backoff)
		s1RetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	class := ErrorClassNetwork
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		class = apiErr.Class
	}
	s1RetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempts, lastErr)
}
