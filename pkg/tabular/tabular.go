// Package tabular turns nested API records into flat rows suitable for
// spreadsheet or CSV export. Nested objects flatten to dot notation, arrays
// explode to one row per element, and whatever is left gets rendered to a
// single cell value.
package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
)

// journalColumn is stamped on every record and always exported first.
const journalColumn = "Journal"

// Flatten collapses nested objects into dot notation keys. Arrays are kept
// as values for ExplodeArrays.
func Flatten(row chunking.Record) chunking.Record {
	out := chunking.Record{}
	flattenInto(out, row, "")
	return out
}

func flattenInto(out chunking.Record, data map[string]any, prefix string) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok {
			flattenInto(out, m, key)
			continue
		}
		out[key] = v
	}
}

// ExplodeArrays expands array fields into one row per element. Rows without
// arrays pass through unchanged. When a row holds arrays of different
// lengths, shorter arrays repeat their last element; scalar fields repeat in
// every produced row.
func ExplodeArrays(rows []chunking.Record) []chunking.Record {
	var out []chunking.Record

	for _, row := range rows {
		maxLen := 0
		for _, v := range row {
			if list, ok := v.([]any); ok && len(list) > maxLen {
				maxLen = len(list)
			}
		}
		if maxLen == 0 {
			out = append(out, row)
			continue
		}

		for i := 0; i < maxLen; i++ {
			exploded := chunking.Record{}
			for k, v := range row {
				list, ok := v.([]any)
				if !ok || len(list) == 0 {
					exploded[k] = v
					continue
				}
				idx := i
				if idx >= len(list) {
					idx = len(list) - 1
				}
				if m, ok := list[idx].(map[string]any); ok {
					for subKey, subVal := range m {
						exploded[k+"."+subKey] = subVal
					}
				} else {
					exploded[k] = list[idx]
				}
			}
			out = append(out, exploded)
		}
	}

	return out
}

// Cellify renders any value to something a single spreadsheet cell can hold.
// Objects with a name or id collapse to that, everything else falls back to
// its JSON encoding.
func Cellify(val any) any {
	switch v := val.(type) {
	case nil, string, bool, int, int64, float64:
		return v
	case map[string]any:
		if name, ok := v["name"]; ok {
			return name
		}
		if id, ok := v["id"]; ok {
			return fmt.Sprintf("ID: %v", id)
		}
		if len(v) == 1 {
			for k, inner := range v {
				return fmt.Sprintf("%s: %v", k, inner)
			}
		}
	}

	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Sprintf("%v", val)
	}
	return string(data)
}

// InferColumns collects all keys across rows in first-seen order, with the
// Journal column forced to the front. Within one row, keys sort
// alphabetically to keep the order deterministic.
func InferColumns(rows []chunking.Record) []string {
	var cols []string
	seen := map[string]bool{}

	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}

	if len(cols) == 0 {
		return []string{"submission"}
	}

	for i, c := range cols {
		if c == journalColumn && i != 0 {
			copy(cols[1:i+1], cols[:i])
			cols[0] = journalColumn
			break
		}
	}
	return cols
}

// CoerceRow cellifies every value of a row in place and returns it.
func CoerceRow(row chunking.Record) chunking.Record {
	for k, v := range row {
		row[k] = Cellify(v)
	}
	return row
}

// Prepare runs the full pipeline over raw records: flatten, explode, then
// cellify every value. The result is rectangular data ready for WriteCSV.
func Prepare(rows []chunking.Record, logger zerolog.Logger) []chunking.Record {
	flat := make([]chunking.Record, 0, len(rows))
	for _, row := range rows {
		flat = append(flat, Flatten(row))
	}

	exploded := ExplodeArrays(flat)
	for _, row := range exploded {
		CoerceRow(row)
	}

	warnLeftoverJSON(exploded, logger)

	logger.Debug().
		Int("records", len(rows)).
		Int("rows", len(exploded)).
		Msg("Prepared tabular rows")
	return exploded
}

// WriteCSV writes prepared rows with an inferred header.
func WriteCSV(w io.Writer, rows []chunking.Record) error {
	cols := InferColumns(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	line := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			line[i] = cellString(row[col])
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// warnLeftoverJSON flags JSON strings that survived the pipeline, which
// means a structure slipped past Flatten and ExplodeArrays.
func warnLeftoverJSON(rows []chunking.Record, logger zerolog.Logger) {
	limit := 5
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		for key, value := range rows[i] {
			s, ok := value.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
				(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
				logger.Warn().
					Int("row", i).
					Str("field", key).
					Msg("JSON string left in cell")
				break
			}
		}
	}
}
