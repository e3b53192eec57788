package chunking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for chunked fetch operations.
var (
	chunkAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_chunk_attempts_total",
		Help: "Total range fetch attempts by outcome",
	}, []string{"outcome"})

	chunkSplitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s1_chunk_splits_total",
		Help: "Total range bisections triggered by S1-705 responses",
	})

	chunkGapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_chunk_gaps_total",
		Help: "Sub-ranges that terminated without records, by reason",
	}, []string{"reason"})

	chunkRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s1_chunk_records_total",
		Help: "Total records recovered across all chunks",
	})

	chunkPaceWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "s1_chunk_pace_wait_seconds",
		Help:    "Inter-sibling rate limit pauses in seconds",
		Buckets: []float64{0.5, 1, 1.5, 2, 5, 10},
	})
)

// Record is one opaque result row from the upstream API. The fetch engine
// only concatenates record slices; it never reads or rewrites fields.
type Record map[string]any

// Caller performs the actual API request for a single date range. It is
// supplied by the host: the fetch engine never builds HTTP requests itself.
//
// On an upstream failure the returned error should carry the raw response
// body via a Payload() []byte method (see client.APIError) so the engine can
// recognize the S1-705 signal. Errors without a payload, and panics, are
// treated as non-cardinality failures, terminal for their branch.
type Caller interface {
	FetchRange(ctx context.Context, site string, start, end time.Time) ([]Record, error)
}

// CallerFunc adapts a plain function to the Caller interface.
type CallerFunc func(ctx context.Context, site string, start, end time.Time) ([]Record, error)

// FetchRange implements Caller.
func (f CallerFunc) FetchRange(ctx context.Context, site string, start, end time.Time) ([]Record, error) {
	return f(ctx, site, start, end)
}

// ProgressFunc is an optional observer invoked before each range attempt.
// Its return value is ignored and it must not block for long.
type ProgressFunc func(site string, rng DateRange, depth int)

// Config holds the fetch engine configuration. The bundle is snapshotted at
// Fetch time and read-only thereafter.
type Config struct {
	// Enabled toggles chunking. When false, Fetch issues a single call over
	// the full range and never splits.
	Enabled bool

	// MaxDepth caps the recursion depth (bisections from the original
	// range). The guard exists for pathological inputs; 10 levels subdivide
	// a year into sub-day spans.
	MaxDepth int

	// MinChunkDays is the smallest span (in days) still eligible for
	// splitting. Ranges at or below it that hit S1-705 are terminal.
	MinChunkDays int

	// RateLimitDelay is the pause between a left branch's completion and the
	// right branch's start. Applied only when the left branch returned
	// records, unless AlwaysPace is set.
	RateLimitDelay time.Duration

	// AlwaysPace applies RateLimitDelay between every sibling pair, even
	// after an empty left branch. Stricter API courtesy at the cost of
	// latency.
	AlwaysPace bool
}

// DefaultConfig returns the standard chunking configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MaxDepth:       10,
		MinChunkDays:   1,
		RateLimitDelay: 1500 * time.Millisecond,
		AlwaysPace:     false,
	}
}

// GapReason identifies why a sub-range contributed zero records.
type GapReason string

const (
	// GapDepthExhausted marks a branch cut off by the MaxDepth guard.
	GapDepthExhausted GapReason = "depth_exhausted"

	// GapUnsplittable marks a single-day (or sub-MinChunkDays) range that
	// still overflowed the result cap. Permanent: it cannot be chunked
	// smaller.
	GapUnsplittable GapReason = "unsplittable"

	// GapAPIError marks a non-cardinality upstream failure.
	GapAPIError GapReason = "api_error"

	// GapCancelled marks a branch skipped due to cancellation.
	GapCancelled GapReason = "cancelled"
)

// Gap records one sub-range that terminated without records.
type Gap struct {
	Site   string
	Range  DateRange
	Reason GapReason
	Depth  int
	Err    error
}

// Report summarizes a single top-level Fetch. It is the diagnostics channel:
// the record slice alone cannot distinguish "no data existed" from "gave up
// here", so operators read the gap list instead.
type Report struct {
	Calls   int
	Splits  int
	Records int
	Gaps    []Gap
}

// Complete reports whether every attempted sub-range succeeded.
func (r *Report) Complete() bool {
	return len(r.Gaps) == 0
}

// GapsByReason counts gaps per terminal reason.
func (r *Report) GapsByReason() map[GapReason]int {
	counts := make(map[GapReason]int, 4)
	for _, g := range r.Gaps {
		counts[g.Reason]++
	}
	return counts
}

// Fetcher drives the recursive split-and-merge fetch. One Fetcher is safe to
// reuse across sequential fetches; per-call state lives on the stack.
type Fetcher struct {
	caller   Caller
	config   Config
	progress ProgressFunc
	logger   zerolog.Logger
}

// New creates a fetch engine around the injected caller. Zero config fields
// fall back to defaults; unknown settings do not exist by construction.
func New(caller Caller, cfg Config) *Fetcher {
	if caller == nil {
		panic("chunking: caller cannot be nil")
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.MinChunkDays < 1 {
		cfg.MinChunkDays = DefaultConfig().MinChunkDays
	}
	if cfg.RateLimitDelay < 0 {
		cfg.RateLimitDelay = DefaultConfig().RateLimitDelay
	}

	return &Fetcher{
		caller: caller,
		config: cfg,
		logger: log.With().Str("component", "chunking").Logger(),
	}
}

// SetProgress installs an observer called before every range attempt.
func (f *Fetcher) SetProgress(fn ProgressFunc) {
	f.progress = fn
}

// Fetch retrieves all records for the range, subdividing on S1-705 as needed,
// and returns them in chronological chunk order together with a Report.
//
// Fetch never returns an error: every terminal condition degrades to zero
// records for its branch and shows up as a Gap in the report. Cancellation
// returns whatever records were accumulated before it was observed.
func (f *Fetcher) Fetch(ctx context.Context, site string, rng DateRange) ([]Record, *Report) {
	rep := &Report{}

	var records []Record
	if f.config.Enabled {
		records = f.fetch(ctx, site, rng, 0, rep)
	} else {
		records = f.fetchDirect(ctx, site, rng, rep)
	}

	rep.Records = len(records)
	chunkRecordsTotal.Add(float64(len(records)))

	evt := f.logger.Info()
	if !rep.Complete() {
		evt = f.logger.Warn()
	}
	evt.Str("site", site).
		Stringer("range", rng).
		Int("records", rep.Records).
		Int("calls", rep.Calls).
		Int("splits", rep.Splits).
		Int("gaps", len(rep.Gaps)).
		Msg("Chunked fetch complete")

	return records, rep
}

// fetchDirect is the Enabled=false path: one call over the full range,
// no splitting regardless of outcome.
func (f *Fetcher) fetchDirect(ctx context.Context, site string, rng DateRange, rep *Report) []Record {
	if ctx.Err() != nil {
		f.addGap(rep, Gap{Site: site, Range: rng, Reason: GapCancelled, Err: ctx.Err()})
		return nil
	}

	f.observe(site, rng, 0)

	records, err := f.invoke(ctx, site, rng)
	rep.Calls++
	if err != nil {
		chunkAttemptsTotal.WithLabelValues("api_error").Inc()
		chunkGapsTotal.WithLabelValues(string(GapAPIError)).Inc()
		f.logger.Error().Err(err).Str("site", site).Stringer("range", rng).
			Msg("Fetch failed (chunking disabled)")
		f.addGap(rep, Gap{Site: site, Range: rng, Reason: GapAPIError, Err: err})
		return nil
	}

	chunkAttemptsTotal.WithLabelValues("success").Inc()
	return records
}

// fetch is one recursion frame of the chunking state machine.
func (f *Fetcher) fetch(ctx context.Context, site string, rng DateRange, depth int, rep *Report) []Record {
	logger := f.logger.With().
		Str("site", site).
		Stringer("range", rng).
		Int("depth", depth).
		Logger()

	// Terminal: cancelled before this branch started.
	if ctx.Err() != nil {
		logger.Info().Msg("Chunk cancelled")
		chunkGapsTotal.WithLabelValues(string(GapCancelled)).Inc()
		f.addGap(rep, Gap{Site: site, Range: rng, Reason: GapCancelled, Depth: depth, Err: ctx.Err()})
		return nil
	}

	// Terminal: depth guard. Safety valve against ranges that keep
	// overflowing all the way down.
	if depth >= f.config.MaxDepth {
		logger.Error().Int("max_depth", f.config.MaxDepth).Msg("Max chunking depth reached")
		chunkGapsTotal.WithLabelValues(string(GapDepthExhausted)).Inc()
		f.addGap(rep, Gap{Site: site, Range: rng, Reason: GapDepthExhausted, Depth: depth})
		return nil
	}

	logger.Info().Msg("Trying chunk")
	f.observe(site, rng, depth)

	records, err := f.invoke(ctx, site, rng)
	rep.Calls++

	if err == nil {
		chunkAttemptsTotal.WithLabelValues("success").Inc()
		logger.Info().Int("records", len(records)).Msg("Chunk succeeded")
		return records
	}

	if !IsTooManyResults(errorPayload(err)) {
		// Terminal: a different failure class. Never retried as a chunking
		// matter; a higher layer owns transient-error retries.
		chunkAttemptsTotal.WithLabelValues("api_error").Inc()
		chunkGapsTotal.WithLabelValues(string(GapAPIError)).Inc()
		logger.Error().Err(err).Msg("Non-705 error, not chunking")
		f.addGap(rep, Gap{Site: site, Range: rng, Reason: GapAPIError, Depth: depth, Err: err})
		return nil
	}

	chunkAttemptsTotal.WithLabelValues("too_many_results").Inc()

	// Terminal: the range cannot be subdivided further. A single day that
	// still overflows is a permanent limitation, not a transient error.
	if rng.Days() <= f.config.MinChunkDays {
		chunkGapsTotal.WithLabelValues(string(GapUnsplittable)).Inc()
		logger.Warn().Msg("S1-705 on unsplittable range, skipping")
		f.addGap(rep, Gap{Site: site, Range: rng, Reason: GapUnsplittable, Depth: depth, Err: err})
		return nil
	}

	left, right := rng.Split()
	rep.Splits++
	chunkSplitsTotal.Inc()
	logger.Info().
		Stringer("left", left).
		Stringer("right", right).
		Msg("S1-705 detected, splitting range")

	leftRecords := f.fetch(ctx, site, left, depth+1, rep)

	// Pace siblings when the left branch actually hit the API with effect.
	// An empty left branch produced no backpressure worth respecting.
	if len(leftRecords) > 0 || f.config.AlwaysPace {
		f.pace(ctx)
	}

	// Re-check after the pause: under cancellation the left half alone is an
	// acceptable partial result.
	if ctx.Err() != nil {
		logger.Info().Msg("Cancelled before right chunk")
		chunkGapsTotal.WithLabelValues(string(GapCancelled)).Inc()
		f.addGap(rep, Gap{Site: site, Range: right, Reason: GapCancelled, Depth: depth + 1, Err: ctx.Err()})
		return leftRecords
	}

	rightRecords := f.fetch(ctx, site, right, depth+1, rep)

	merged := append(leftRecords, rightRecords...)
	logger.Info().Int("records", len(merged)).Msg("Merged chunk results")
	return merged
}

// invoke calls the injected Caller, converting panics into plain errors so a
// faulty caller can never unwind past the fetch boundary and abort sibling
// branches.
func (f *Fetcher) invoke(ctx context.Context, site string, rng DateRange) (records []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("caller panic: %v", r)
		}
	}()
	return f.caller.FetchRange(ctx, site, rng.Start, rng.End)
}

// pace waits out the configured inter-sibling delay, returning early if the
// context is cancelled mid-wait.
func (f *Fetcher) pace(ctx context.Context) {
	if f.config.RateLimitDelay <= 0 {
		return
	}

	chunkPaceWaitSeconds.Observe(f.config.RateLimitDelay.Seconds())
	f.logger.Debug().Dur("delay", f.config.RateLimitDelay).Msg("Rate limit pause between chunks")

	select {
	case <-ctx.Done():
	case <-time.After(f.config.RateLimitDelay):
	}
}

func (f *Fetcher) addGap(rep *Report, g Gap) {
	rep.Gaps = append(rep.Gaps, g)
}

func (f *Fetcher) observe(site string, rng DateRange, depth int) {
	if f.progress != nil {
		f.progress(site, rng, depth)
	}
}

// errorPayload extracts the raw upstream error body from an error chain, or
// nil when no link carries one.
func errorPayload(err error) []byte {
	var carrier interface{ Payload() []byte }
	if errors.As(err, &carrier) {
		return carrier.Payload()
	}
	return nil
}
