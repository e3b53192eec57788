// Package metrics provides the centralized Prometheus metrics reference for
// the ScholarOne client. All metrics are defined in their respective
// packages (client, chunking, ratelimit, checkpoint) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - s1_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - s1_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - s1_errors_total{class} (Counter): Errors by class (throttle, maintenance, auth, server, bad_request, too_many_results, network, unknown)
//
// Retry Metrics (pkg/client):
//   - s1_retries_total{error_class} (Counter): Retry attempts by error class
//   - s1_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - s1_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Chunking Metrics (pkg/chunking):
//   - s1_chunk_attempts_total{outcome} (Counter): Chunk fetch attempts by outcome (success, split, error)
//   - s1_chunk_splits_total (Counter): Date ranges bisected after a result set overflow
//   - s1_chunk_gaps_total{reason} (Counter): Chunks abandoned by reason (depth_exhausted, unsplittable, api_error, cancelled)
//   - s1_chunk_records_total (Counter): Records retrieved through chunked fetches
//   - s1_chunk_pace_wait_seconds (Histogram): Pauses between sibling chunk fetches
//
// Rate Limit Metrics (pkg/ratelimit):
//   - s1_pacer_waits_total (Counter): Requests delayed by the minimum spacing
//   - s1_pacer_wait_seconds (Histogram): Time spent waiting on the pacer
//   - s1_throttle_waits_total (Counter): Requests that waited for a shared throttle window
//   - s1_throttle_wait_seconds (Histogram): Time spent waiting on throttle windows
//
// Checkpoint Metrics (pkg/checkpoint):
//   - s1_checkpoint_saves_total (Counter): Checkpoint saves
//   - s1_checkpoint_resumes_total (Counter): Runs resumed from a checkpoint
//   - s1_checkpoint_errors_total{operation} (Counter): Checkpoint errors by operation
//
// Example Prometheus Queries:
//
//   # Chunk split rate
//   rate(s1_chunk_splits_total[5m])
//
//   # Share of chunks lost to gaps
//   sum(rate(s1_chunk_gaps_total[5m])) / sum(rate(s1_chunk_attempts_total[5m]))
//
//   # Request Error Rate
//   rate(s1_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(s1_request_duration_seconds_bucket[5m]))
//
//   # Time lost to throttle windows
//   rate(s1_throttle_wait_seconds_sum[5m])
