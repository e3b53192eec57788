//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestSharedThrottle_Integration_HealthyByDefault(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	throttle := NewSharedThrottle(redisClient, testLogger())
	ctx := context.Background()

	remaining, err := throttle.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("Remaining() = %v, want 0 with no window set", remaining)
	}

	// Wait must return immediately when no window is active.
	start := time.Now()
	if err := throttle.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() took %v with no window, expected immediate return", elapsed)
	}
}

func TestSharedThrottle_Integration_WindowRoundTrip(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	throttle := NewSharedThrottle(redisClient, testLogger())
	ctx := context.Background()

	until := time.Now().Add(30 * time.Second)
	if err := throttle.SetUntil(ctx, until); err != nil {
		t.Fatalf("SetUntil() error = %v", err)
	}

	remaining, err := throttle.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if remaining <= 0 || remaining > 31*time.Second {
		t.Errorf("Remaining() = %v, want about 30s", remaining)
	}

	// A second process sharing the same Redis sees the same window.
	other := NewSharedThrottle(redisClient, testLogger())
	otherRemaining, err := other.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if otherRemaining <= 0 {
		t.Error("second throttle instance should see the shared window")
	}

	if err := throttle.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	remaining, err = throttle.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() after Clear error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("Remaining() after Clear = %v, want 0", remaining)
	}
}

func TestSharedThrottle_Integration_PastWindowIgnored(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	throttle := NewSharedThrottle(redisClient, testLogger())
	ctx := context.Background()

	// A window that already ended must not be published at all.
	if err := throttle.SetUntil(ctx, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetUntil() error = %v", err)
	}
	remaining, err := throttle.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("Remaining() = %v, want 0 for past window", remaining)
	}
}

func TestSharedThrottle_Integration_WaitBlocksUntilWindowEnds(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	throttle := NewSharedThrottle(redisClient, testLogger())
	ctx := context.Background()

	if err := throttle.SetUntil(ctx, time.Now().Add(300*time.Millisecond)); err != nil {
		t.Fatalf("SetUntil() error = %v", err)
	}

	start := time.Now()
	if err := throttle.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to block for the window", elapsed)
	}
}
