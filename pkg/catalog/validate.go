package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var siteNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// dateLayouts are the input formats accepted for date parameters, tried in
// order. All are normalized to the ISO 8601 timestamp the API expects.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
}

// NormalizeDate parses a date in any accepted format and returns it as an
// ISO 8601 UTC timestamp at midnight (or the given time of day when one was
// supplied).
func NormalizeDate(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("empty date value")
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		return t.UTC().Format("2006-01-02T15:04:05Z"), nil
	}
	return "", fmt.Errorf("unrecognized date format: %q", value)
}

// ParseDay parses a date in any accepted format and returns it truncated to
// UTC midnight.
func ParseDay(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// ValidateSiteName checks the short name identifying a journal site.
func ValidateSiteName(site string) error {
	if site == "" {
		return fmt.Errorf("site name is required")
	}
	if !siteNamePattern.MatchString(site) {
		return fmt.Errorf("invalid site name %q: only letters, digits, underscore and hyphen are allowed", site)
	}
	return nil
}

// SanitizeIDs trims, de-blanks and deduplicates an id list, preserving order.
func SanitizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateBatch checks an id batch against the endpoint's per-call limit.
func ValidateBatch(ep Endpoint, ids []string) error {
	if ep.MaxIDsPerCall == 0 {
		if len(ids) > 0 {
			return fmt.Errorf("endpoint %s (%s) does not accept ids", ep.ID, ep.Name)
		}
		return nil
	}
	if len(ids) == 0 {
		return fmt.Errorf("endpoint %s (%s) requires at least one id", ep.ID, ep.Name)
	}
	if len(ids) > ep.MaxIDsPerCall {
		return fmt.Errorf("endpoint %s (%s) accepts at most %d ids per call, got %d",
			ep.ID, ep.Name, ep.MaxIDsPerCall, len(ids))
	}
	return nil
}

// ValidateRange checks a from/to span against the endpoint's date range cap.
// Both bounds are inclusive days.
func ValidateRange(ep Endpoint, start, end time.Time) error {
	if !ep.IsDateRange() {
		return fmt.Errorf("endpoint %s (%s) is not a date range endpoint", ep.ID, ep.Name)
	}
	if end.Before(start) {
		return fmt.Errorf("date range end %s is before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	days := int(end.Sub(start)/(24*time.Hour)) + 1
	if ep.MaxRangeDays > 0 && days > ep.MaxRangeDays {
		return fmt.Errorf("endpoint %s (%s) allows date ranges up to %d days, got %d",
			ep.ID, ep.Name, ep.MaxRangeDays, days)
	}
	return nil
}

// Batches splits a sanitized id list into chunks of the endpoint's per-call
// limit.
func Batches(ep Endpoint, ids []string) [][]string {
	size := ep.MaxIDsPerCall
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
