package catalog

import (
	"reflect"
	"testing"
	"time"
)

func TestGet(t *testing.T) {
	ep, err := Get("4")
	if err != nil {
		t.Fatalf("Get(4) error: %v", err)
	}
	if ep.Name != "Get IDs By Date" {
		t.Errorf("unexpected name: %s", ep.Name)
	}
	if !ep.IsDateRange() {
		t.Error("endpoint 4 should be a date range endpoint")
	}
	if !ep.RateSensitive {
		t.Error("endpoint 4 should be rate sensitive")
	}

	if _, err := Get("999"); err == nil {
		t.Error("expected error for unknown endpoint id")
	}
}

func TestDateRangeCaps(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"4", DefaultMaxRangeDays},
		{"12", EditorAssignmentsMaxRangeDays},
		{"26", ExternalDocIDsMaxRangeDays},
	}
	for _, tt := range tests {
		ep, err := Get(tt.id)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", tt.id, err)
		}
		if ep.MaxRangeDays != tt.want {
			t.Errorf("endpoint %s: MaxRangeDays = %d, want %d", tt.id, ep.MaxRangeDays, tt.want)
		}
	}
}

func TestAllSorted(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("empty registry")
	}
	for i := 1; i < len(all); i++ {
		a, b := all[i-1].ID, all[i].ID
		if len(a) > len(b) || (len(a) == len(b) && a >= b) {
			t.Errorf("registry not sorted: %s before %s", a, b)
		}
	}
}

func TestDateRangeEndpoints(t *testing.T) {
	for _, ep := range DateRangeEndpoints() {
		if !ep.IsDateRange() {
			t.Errorf("endpoint %s not a date range endpoint", ep.ID)
		}
		if ep.MaxRangeDays == 0 {
			t.Errorf("endpoint %s missing range cap", ep.ID)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2025-01-15", want: "2025-01-15T00:00:00Z"},
		{in: "01/15/2025", want: "2025-01-15T00:00:00Z"},
		{in: "01-15-2025", want: "2025-01-15T00:00:00Z"},
		{in: "2025-01-15T10:30:00", want: "2025-01-15T10:30:00Z"},
		{in: "2025-01-15T10:30:00Z", want: "2025-01-15T10:30:00Z"},
		{in: "  2025-01-15  ", want: "2025-01-15T00:00:00Z"},
		{in: "", wantErr: true},
		{in: "15.01.2025", wantErr: true},
		{in: "not a date", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeDate(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDate(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay("2025-06-30T18:45:00")
	if err != nil {
		t.Fatalf("ParseDay error: %v", err)
	}
	want := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseDay = %v, want %v", got, want)
	}
}

func TestValidateSiteName(t *testing.T) {
	valid := []string{"acme-journal", "journal_01", "ABC123"}
	for _, s := range valid {
		if err := ValidateSiteName(s); err != nil {
			t.Errorf("ValidateSiteName(%q) unexpected error: %v", s, err)
		}
	}
	invalid := []string{"", "my journal", "journal;drop", "a/b"}
	for _, s := range invalid {
		if err := ValidateSiteName(s); err == nil {
			t.Errorf("ValidateSiteName(%q): expected error", s)
		}
	}
}

func TestSanitizeIDs(t *testing.T) {
	got := SanitizeIDs([]string{" 100 ", "", "101", "100", "  ", "102"})
	want := []string{"100", "101", "102"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SanitizeIDs = %v, want %v", got, want)
	}
}

func TestValidateBatch(t *testing.T) {
	ep, _ := Get("1")

	if err := ValidateBatch(ep, []string{"1"}); err != nil {
		t.Errorf("single id: %v", err)
	}
	if err := ValidateBatch(ep, nil); err == nil {
		t.Error("expected error for empty batch")
	}

	big := make([]string, MaxBatchSize+1)
	for i := range big {
		big[i] = "x"
	}
	if err := ValidateBatch(ep, big); err == nil {
		t.Error("expected error for oversized batch")
	}
	if err := ValidateBatch(ep, big[:MaxBatchSize]); err != nil {
		t.Errorf("batch at limit: %v", err)
	}

	cfg, _ := Get("20")
	if err := ValidateBatch(cfg, []string{"1"}); err == nil {
		t.Error("expected error: configuration endpoint takes no ids")
	}
	if err := ValidateBatch(cfg, nil); err != nil {
		t.Errorf("configuration endpoint with no ids: %v", err)
	}
}

func TestValidateRange(t *testing.T) {
	ep4, _ := Get("4")
	ep12, _ := Get("12")
	ep26, _ := Get("26")
	ep1, _ := Get("1")

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		ep      Endpoint
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{"within default cap", ep4, day(2025, 1, 1), day(2025, 6, 29), false},
		{"over default cap", ep4, day(2025, 1, 1), day(2025, 12, 31), true},
		{"year for editor assignments", ep12, day(2025, 1, 1), day(2025, 12, 31), false},
		{"week for external doc ids", ep26, day(2025, 1, 1), day(2025, 1, 7), false},
		{"over week cap", ep26, day(2025, 1, 1), day(2025, 1, 8), true},
		{"inverted range", ep4, day(2025, 2, 1), day(2025, 1, 1), true},
		{"non date endpoint", ep1, day(2025, 1, 1), day(2025, 1, 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(tt.ep, tt.start, tt.end)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBatches(t *testing.T) {
	ep, _ := Get("1")
	ids := make([]string, 60)
	for i := range ids {
		ids[i] = "id"
	}
	got := Batches(ep, ids)
	if len(got) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(got))
	}
	if len(got[0]) != 25 || len(got[1]) != 25 || len(got[2]) != 10 {
		t.Errorf("unexpected batch sizes: %d %d %d", len(got[0]), len(got[1]), len(got[2]))
	}
}
