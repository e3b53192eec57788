package chunking

import (
	"fmt"
	"time"
)

// DateRange is a closed interval of calendar days, inclusive on both ends.
// Start and End are normalized to midnight UTC; Start never exceeds End.
// Ranges are value types and immutable once created; Split produces fresh
// ranges instead of mutating.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range from two timestamps, truncating both to
// midnight UTC. Returns an error if end precedes start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s := truncateDay(start)
	e := truncateDay(end)
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("invalid date range: end %s before start %s",
			e.Format("2006-01-02"), s.Format("2006-01-02"))
	}
	return DateRange{Start: s, End: e}, nil
}

// MustDateRange is NewDateRange that panics on invalid input. Intended for
// tests and literals with known-good dates.
func MustDateRange(start, end time.Time) DateRange {
	r, err := NewDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Days returns the inclusive day count of the range. A range whose start and
// end fall on the same day spans 1 day.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// Split divides the range into two contiguous halves:
//
//	left  = [start, start + floor(span/2) days]
//	right = [left.end + 1 day, end]
//
// The halves cover the original range exactly, do not overlap, and differ in
// day count by at most one. Split is only defined for ranges spanning at
// least 2 days; callers must check Days() first.
func (r DateRange) Split() (DateRange, DateRange) {
	wholeDays := r.Days() - 1
	mid := r.Start.AddDate(0, 0, wholeDays/2)

	left := DateRange{Start: r.Start, End: mid}
	right := DateRange{Start: mid.AddDate(0, 0, 1), End: r.End}
	return left, right
}

// Contains reports whether the given day falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// String renders the range the way it appears in logs and progress output,
// e.g. "2025-01-01 to 2025-12-31 (365 days)".
func (r DateRange) String() string {
	return fmt.Sprintf("%s to %s (%d days)",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), r.Days())
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
