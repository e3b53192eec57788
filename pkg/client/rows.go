package client

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
)

// maxExtractDepth bounds the nested array search.
const maxExtractDepth = 3

// configPatterns maps configuration endpoint wrapper objects to the array
// keys they nest their records under.
var configPatterns = map[string][]string{
	"editorList":         {"editor", "editors"},
	"attributeList":      {"attribute", "attributes"},
	"customQuestionList": {"customQuestion", "customQuestions"},
	"checklistList":      {"checklist", "checklists"},
	"roleList":           {"role", "roles"},
}

// wrapperKeys are the entity arrays the API nests result records under.
var wrapperKeys = []string{
	"submission", "submissions", "document", "documents",
	"person", "persons", "reviewer", "reviewers",
}

// ExtractRows parses a ScholarOne response body and pulls out the record
// list, whatever nesting the endpoint chose. A non-SUCCESS status or an
// unrecognized shape yields an empty slice, never an error.
func ExtractRows(body []byte, logger zerolog.Logger) []chunking.Record {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		logger.Warn().Msg("Non-object response received")
		return nil
	}

	resp := firstOf(root, "Response", "response")
	if !resp.IsObject() {
		logger.Warn().Msg("No extractable data found in response")
		return nil
	}

	if status := firstOf(resp, "Status", "status").String(); status != "" && status != "SUCCESS" {
		logger.Warn().Str("status", status).Msg("API returned non-success status")
		if msg := firstOf(resp, "ErrorMessage", "errorMessage").String(); msg != "" {
			logger.Error().Str("error", msg).Msg("API error")
		}
		return nil
	}

	result := firstOf(resp, "result", "Result")

	// Direct list of records.
	if result.IsArray() {
		rows := toRecords(result.Value())
		logger.Debug().Int("records", len(rows)).Msg("Found direct record list")
		return rows
	}

	if result.IsObject() {
		if m, ok := result.Value().(map[string]any); ok {
			return extractNested(m, 0, logger)
		}
	}

	logger.Warn().Msg("No extractable data found in response")
	return nil
}

// extractNested recursively searches a nested result object for the record
// array. Known configuration and entity wrappers win over the generic
// search; failing both, the largest array of objects found is used, and a
// plain object is treated as a single record.
func extractNested(data map[string]any, depth int, logger zerolog.Logger) []chunking.Record {
	if depth > maxExtractDepth {
		return []chunking.Record{data}
	}

	for configKey, arrayKeys := range configPatterns {
		inner, ok := data[configKey]
		if !ok {
			continue
		}
		switch v := inner.(type) {
		case map[string]any:
			for _, arrayKey := range arrayKeys {
				if rows := toRecords(v[arrayKey]); rows != nil {
					logger.Debug().
						Str("pattern", configKey+"."+arrayKey).
						Int("records", len(rows)).
						Msg("Found configuration array")
					return rows
				}
			}
		case []any:
			if rows := toRecords(v); rows != nil {
				logger.Debug().
					Str("pattern", configKey).
					Int("records", len(rows)).
					Msg("Found configuration array")
				return rows
			}
		}
	}

	for _, key := range wrapperKeys {
		if rows := toRecords(data[key]); rows != nil {
			logger.Debug().
				Str("wrapper", key).
				Int("records", len(rows)).
				Msg("Found wrapper array")
			return rows
		}
	}

	type candidate struct {
		key  string
		rows []chunking.Record
	}
	var candidates []candidate

	for key, value := range data {
		switch v := value.(type) {
		case []any:
			if rows := toRecords(v); rows != nil {
				candidates = append(candidates, candidate{key, rows})
			}
		case map[string]any:
			nested := extractNested(v, depth+1, logger)
			if len(nested) > 1 || (len(nested) == 1 && !sameMap(nested[0], v)) {
				logger.Debug().
					Str("key", key).
					Int("records", len(nested)).
					Msg("Found nested array")
				return nested
			}
		}
	}

	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			return len(candidates[i].rows) > len(candidates[j].rows)
		})
		best := candidates[0]
		logger.Debug().
			Str("key", best.key).
			Int("records", len(best.rows)).
			Msg("Using largest array")
		return best.rows
	}

	logger.Debug().Msg("No arrays found, treating as single record")
	return []chunking.Record{data}
}

// StampJournal sets the Journal field on every record to the site name.
func StampJournal(rows []chunking.Record, site string) {
	for _, row := range rows {
		row["Journal"] = site
	}
}

// toRecords converts a decoded JSON value to records when it is a non-empty
// array of objects, nil otherwise.
func toRecords(value any) []chunking.Record {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	rows := make([]chunking.Record, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		rows = append(rows, m)
	}
	return rows
}

// sameMap reports whether a record is the same object that was searched,
// which means the recursion found nothing below it.
func sameMap(r chunking.Record, m map[string]any) bool {
	if len(r) != len(m) {
		return false
	}
	for k := range r {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// firstOf returns the first present key from a JSON object.
func firstOf(obj gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := obj.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
