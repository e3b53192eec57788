package tabular

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestFlatten(t *testing.T) {
	row := chunking.Record{
		"submissionId": "100",
		"author": map[string]any{
			"firstName": "John",
			"address": map[string]any{
				"city": "Boston",
			},
		},
		"files": []any{map[string]any{"name": "a.pdf"}},
	}

	got := Flatten(row)

	if got["submissionId"] != "100" {
		t.Errorf("scalar lost: %v", got)
	}
	if got["author.firstName"] != "John" {
		t.Errorf("nested key not flattened: %v", got)
	}
	if got["author.address.city"] != "Boston" {
		t.Errorf("deep key not flattened: %v", got)
	}
	if _, ok := got["files"].([]any); !ok {
		t.Errorf("array should be preserved for explosion: %v", got["files"])
	}
}

func TestExplodeArrays(t *testing.T) {
	rows := []chunking.Record{
		{
			"id": "1",
			"authors": []any{
				map[string]any{"name": "A1"},
				map[string]any{"name": "A2"},
				map[string]any{"name": "A3"},
			},
		},
	}

	got := ExplodeArrays(rows)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i, want := range []string{"A1", "A2", "A3"} {
		if got[i]["authors.name"] != want {
			t.Errorf("row %d: authors.name = %v, want %s", i, got[i]["authors.name"], want)
		}
		if got[i]["id"] != "1" {
			t.Errorf("row %d: scalar field not repeated", i)
		}
	}
}

func TestExplodeArraysScalarElements(t *testing.T) {
	rows := []chunking.Record{
		{"id": "1", "keywords": []any{"alpha", "beta"}},
	}

	got := ExplodeArrays(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0]["keywords"] != "alpha" || got[1]["keywords"] != "beta" {
		t.Errorf("scalar array elements misplaced: %v", got)
	}
}

func TestExplodeArraysUnevenLengths(t *testing.T) {
	rows := []chunking.Record{
		{
			"authors":   []any{"A1", "A2", "A3"},
			"reviewers": []any{"R1"},
		},
	}

	got := ExplodeArrays(rows)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Shorter array repeats its last element.
	for i := range got {
		if got[i]["reviewers"] != "R1" {
			t.Errorf("row %d: reviewers = %v, want R1", i, got[i]["reviewers"])
		}
	}
}

func TestExplodeArraysNoArrays(t *testing.T) {
	rows := []chunking.Record{{"id": "1"}}
	got := ExplodeArrays(rows)
	if len(got) != 1 || got[0]["id"] != "1" {
		t.Errorf("rows without arrays must pass through: %v", got)
	}
}

func TestCellify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string", "hello", "hello"},
		{"nil", nil, nil},
		{"number", 42.0, 42.0},
		{"object with name", map[string]any{"name": "Editor", "id": "7"}, "Editor"},
		{"object with id", map[string]any{"id": "7", "extra": "x"}, "ID: 7"},
		{"single key object", map[string]any{"status": "open"}, "status: open"},
		{"array", []any{1.0, 2.0}, "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cellify(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Cellify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerceRow(t *testing.T) {
	row := chunking.Record{
		"title":  "Paper",
		"editor": map[string]any{"name": "Smith", "id": "9"},
	}

	got := CoerceRow(row)
	if got["title"] != "Paper" {
		t.Errorf("title = %v", got["title"])
	}
	if got["editor"] != "Smith" {
		t.Errorf("editor = %v, want Smith", got["editor"])
	}
}

func TestInferColumns(t *testing.T) {
	rows := []chunking.Record{
		{"b": 1, "a": 2, "Journal": "acme"},
		{"c": 3},
	}

	got := InferColumns(rows)
	want := []string{"Journal", "a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InferColumns() = %v, want %v", got, want)
	}
}

func TestInferColumnsEmpty(t *testing.T) {
	got := InferColumns(nil)
	if !reflect.DeepEqual(got, []string{"submission"}) {
		t.Errorf("InferColumns(nil) = %v", got)
	}
}

func TestPrepareAndWriteCSV(t *testing.T) {
	rows := []chunking.Record{
		{
			"Journal":      "acme",
			"submissionId": "100",
			"author": map[string]any{
				"firstName": "John",
			},
			"files": []any{
				map[string]any{"name": "a.pdf"},
				map[string]any{"name": "b.pdf"},
			},
		},
	}

	prepared := Prepare(rows, testLogger())
	if len(prepared) != 2 {
		t.Fatalf("expected 2 exploded rows, got %d", len(prepared))
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, prepared); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Journal,") {
		t.Errorf("Journal must be the first column: %s", lines[0])
	}
	if !strings.Contains(lines[0], "author.firstName") {
		t.Errorf("flattened column missing: %s", lines[0])
	}
	if !strings.Contains(buf.String(), "a.pdf") || !strings.Contains(buf.String(), "b.pdf") {
		t.Errorf("exploded file rows missing: %s", buf.String())
	}
}
