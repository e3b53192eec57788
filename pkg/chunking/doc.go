// Package chunking implements adaptive date-range subdivision for ScholarOne
// Web Services queries that overflow the server-side result cap.
//
// Date-range endpoints (idsByDate, editorAssignmentsByDate) reject queries
// that would return too many records with the S1-705 error instead of
// paginating. This package recovers the full result set by bisecting the
// requested range and retrying each half, recursively, until every leaf
// either succeeds or is terminally unsplittable.
//
// Example usage:
//
//	fetcher := chunking.New(caller, chunking.DefaultConfig())
//	records, report := fetcher.Fetch(ctx, "ijoc", rng)
//
// The fetcher:
//   - Detects the S1-705 "too many results" signal in API error payloads
//   - Splits the range in two balanced halves and recurses depth-first
//   - Paces sibling sub-requests to respect the upstream rate limit
//   - Honors context cancellation between branches, keeping partial results
//   - Merges leaf results in chronological order
//
// Branches are fetched strictly sequentially, never in parallel: the upstream
// quota model penalizes request bursts, and sequential traversal keeps record
// order and pacing deterministic.
package chunking
