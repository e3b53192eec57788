// Package checkpoint persists batch processing state so interrupted runs can
// resume where they stopped. State lives in Redis, keyed per site, and
// expires after a configurable retention window.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNoCheckpoint indicates no saved state exists for the site.
	ErrNoCheckpoint = errors.New("no checkpoint")

	// ErrCorruptCheckpoint indicates the saved state could not be decoded.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
)

// DefaultTTL is how long a checkpoint survives without being refreshed.
const DefaultTTL = 7 * 24 * time.Hour

// Prometheus metrics for checkpoint operations.
var (
	checkpointSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s1_checkpoint_saves_total",
		Help: "Total number of checkpoint saves",
	})

	checkpointResumesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s1_checkpoint_resumes_total",
		Help: "Total number of runs resumed from a checkpoint",
	})

	checkpointErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_checkpoint_errors_total",
		Help: "Total checkpoint errors by operation",
	}, []string{"operation"})
)

// State is the saved position of an interrupted run.
type State struct {
	EndpointID   string            `json:"endpoint_id"`
	Site         string            `json:"site"`
	Params       map[string]string `json:"params,omitempty"`
	BatchNum     int               `json:"batch_num"`
	TotalBatches int               `json:"total_batches"`
	SavedAt      time.Time         `json:"saved_at"`
}

// Describe renders the state for logs and status output.
func (s State) Describe() string {
	return fmt.Sprintf("endpoint %s, site %s, batch %d/%d, saved %s",
		s.EndpointID, s.Site, s.BatchNum, s.TotalBatches,
		s.SavedAt.UTC().Format(time.RFC3339))
}

// Store persists checkpoints in Redis.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates a checkpoint store. A zero ttl means DefaultTTL.
func NewStore(redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

func key(site string) string {
	return "s1:checkpoint:" + site
}

// Save writes the current state, stamping SavedAt and refreshing the TTL.
func (s *Store) Save(ctx context.Context, state State) error {
	state.SavedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		checkpointErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := s.redis.Set(ctx, key(state.Site), data, s.ttl).Err(); err != nil {
		checkpointErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	checkpointSavesTotal.Inc()
	s.logger.Info().
		Str("site", state.Site).
		Int("batch", state.BatchNum).
		Int("total_batches", state.TotalBatches).
		Msg("Checkpoint saved")
	return nil
}

// Load retrieves the saved state for a site. Returns ErrNoCheckpoint when
// none exists and ErrCorruptCheckpoint when it cannot be decoded.
func (s *Store) Load(ctx context.Context, site string) (State, error) {
	data, err := s.redis.Get(ctx, key(site)).Bytes()
	if err == redis.Nil {
		return State{}, ErrNoCheckpoint
	}
	if err != nil {
		checkpointErrorsTotal.WithLabelValues("load").Inc()
		return State{}, fmt.Errorf("redis get: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		checkpointErrorsTotal.WithLabelValues("load").Inc()
		return State{}, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}

	checkpointResumesTotal.Inc()
	s.logger.Info().
		Str("site", site).
		Str("checkpoint", state.Describe()).
		Msg("Checkpoint loaded")
	return state, nil
}

// Exists reports whether a checkpoint is saved for the site.
func (s *Store) Exists(ctx context.Context, site string) (bool, error) {
	n, err := s.redis.Exists(ctx, key(site)).Result()
	if err != nil {
		checkpointErrorsTotal.WithLabelValues("exists").Inc()
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Clear removes the checkpoint for a site after a successful run.
func (s *Store) Clear(ctx context.Context, site string) error {
	if err := s.redis.Del(ctx, key(site)).Err(); err != nil {
		checkpointErrorsTotal.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	s.logger.Info().Str("site", site).Msg("Checkpoint cleared")
	return nil
}
