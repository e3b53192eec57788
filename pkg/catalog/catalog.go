// Package catalog defines the ScholarOne Web Services endpoint registry and
// the parameter validation rules the API enforces.
package catalog

import (
	"fmt"
	"sort"
)

// TimeoutClass selects the request timeout bucket for an endpoint.
type TimeoutClass string

const (
	// TimeoutBase is the standard request timeout bucket.
	TimeoutBase TimeoutClass = "base"

	// TimeoutExtended is for endpoints returning large or deeply nested
	// payloads.
	TimeoutExtended TimeoutClass = "extended"
)

// Complexity grades how heavy an endpoint's responses tend to be. High
// complexity endpoints get extended timeouts and extra pacing.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// API-enforced limits shared across endpoints.
const (
	// MaxBatchSize is the largest ids list most endpoints accept per call.
	MaxBatchSize = 25

	// DefaultMaxRangeDays caps date-range queries for most endpoints.
	DefaultMaxRangeDays = 180

	// EditorAssignmentsMaxRangeDays is the wider cap for the editor
	// assignments endpoint.
	EditorAssignmentsMaxRangeDays = 365

	// ExternalDocIDsMaxRangeDays is the one-week cap the API enforces on
	// the external document IDs endpoint.
	ExternalDocIDsMaxRangeDays = 7
)

// Endpoint describes one ScholarOne Web Services operation.
type Endpoint struct {
	ID       string
	Name     string
	Path     string
	Required []string
	Optional []string

	// MaxIDsPerCall caps the ids batch, 0 when the endpoint takes no ids.
	MaxIDsPerCall int

	Timeout    TimeoutClass
	Complexity Complexity

	// RateSensitive endpoints can return large datasets and get extra
	// inter-request pacing.
	RateSensitive bool

	// DateParams names the parameters normalized to ISO 8601 timestamps.
	// Endpoints with both from and to params are date-range queries and
	// eligible for adaptive chunking.
	DateParams []string

	// MaxRangeDays caps the from/to span, 0 for non-date endpoints.
	MaxRangeDays int
}

// IsDateRange reports whether the endpoint queries by a from/to date span.
func (e Endpoint) IsDateRange() bool {
	return len(e.DateParams) >= 2
}

// endpoints is the registry, keyed by the stable numeric endpoint id used
// throughout configuration and checkpoints.
var endpoints = map[string]Endpoint{
	"1": {
		ID: "1", Name: "Get Submission Info Basic",
		Path:     "/api/s1m/v3/submissions/basic/metadata/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutBase, Complexity: ComplexityLow,
	},
	"2": {
		ID: "2", Name: "Get Submission Info Full",
		Path:     "/api/s1m/v9/submissions/full/metadata/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"3": {
		ID: "3", Name: "Get Submission Versions",
		Path:     "/api/s1m/v2/submissions/full/revisions/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutBase, Complexity: ComplexityMedium,
	},
	"4": {
		ID: "4", Name: "Get IDs By Date",
		Path:     "/api/s1m/v4/submissions/full/idsByDate",
		Required: []string{"from_time", "to_time"}, Optional: []string{"document_status", "criteria"},
		Timeout: TimeoutExtended, Complexity: ComplexityHigh,
		RateSensitive: true,
		DateParams:    []string{"from_time", "to_time"},
		MaxRangeDays:  DefaultMaxRangeDays,
	},
	"5": {
		ID: "5", Name: "Get Person Info Full (by personIds)",
		Path:     "/api/s1m/v7/person/full/personids/search",
		Required: []string{"ids"}, Optional: []string{"is_deleted"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"7": {
		ID: "7", Name: "Get Author Info Full",
		Path:     "/api/s1m/v3/submissions/full/contributors/authors/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"8": {
		ID: "8", Name: "Get Reviewer Info Full",
		Path:     "/api/s1m/v2/submissions/full/reviewer/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"11": {
		ID: "11", Name: "Get Decision Correspondence",
		Path:     "/api/s1m/v4/submissions/full/decisioncorrespondence/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityMedium,
	},
	"12": {
		ID: "12", Name: "Get Editor Assignments By Date",
		Path:     "/api/s1m/v1/submissions/full/editorAssignmentsByDate",
		Required: []string{"from_time", "to_time"}, Optional: []string{"role_type", "custom_question"},
		Timeout: TimeoutExtended, Complexity: ComplexityHigh,
		RateSensitive: true,
		DateParams:    []string{"from_time", "to_time"},
		MaxRangeDays:  EditorAssignmentsMaxRangeDays,
	},
	"13": {
		ID: "13", Name: "Get Metadata Info (by documentIds)",
		Path:     "/api/s1m/v3/submissions/full/metadatainfo/documentids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"14": {
		ID: "14", Name: "Get Metadata Info (by submissionIds)",
		Path:     "/api/s1m/v3/submissions/full/metadatainfo/submissionids",
		Required: []string{"ids"}, Optional: []string{"id_type"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"20": {
		ID: "20", Name: "Get Attribute List Configuration",
		Path:    "/api/s1m/v3/configuration/full/attributeList",
		Timeout: TimeoutBase, Complexity: ComplexityLow,
	},
	"21": {
		ID: "21", Name: "Get Custom Question List Configuration",
		Path:    "/api/s1m/v2/configuration/full/customQuestionList",
		Timeout: TimeoutBase, Complexity: ComplexityMedium,
	},
	"22": {
		ID: "22", Name: "Get Editor List Configuration",
		Path:     "/api/s1m/v2/configuration/full/editorList",
		Optional: []string{"role_type", "role_name"},
		Timeout:  TimeoutBase, Complexity: ComplexityLow,
	},
	"23": {
		ID: "23", Name: "Get Person Info Basic (by personIds)",
		Path:     "/api/s1m/v3/person/basic/personids/search",
		Required: []string{"ids"}, Optional: []string{"is_deleted"},
		MaxIDsPerCall: MaxBatchSize, Timeout: TimeoutBase, Complexity: ComplexityLow,
	},
	"24": {
		ID: "24", Name: "Get Person Info Basic (by email)",
		Path:     "/api/s1m/v3/person/basic/email/search",
		Required: []string{"primary_email"}, Optional: []string{"is_deleted"},
		Timeout: TimeoutBase, Complexity: ComplexityLow,
	},
	"25": {
		ID: "25", Name: "Get Person Info Full (by email)",
		Path:     "/api/s1m/v7/person/full/email/search",
		Required: []string{"primary_email"}, Optional: []string{"is_deleted"},
		Timeout: TimeoutExtended, Complexity: ComplexityHigh,
	},
	"26": {
		ID: "26", Name: "Get External Document IDs (Full)",
		Path:     "/api/s1m/v2/submissions/full/externaldocids",
		Required: []string{"integration_key", "from_time", "to_time"},
		Timeout:  TimeoutExtended, Complexity: ComplexityMedium,
		DateParams:   []string{"from_time", "to_time"},
		MaxRangeDays: ExternalDocIDsMaxRangeDays,
	},
}

// Get looks up an endpoint by id.
func Get(id string) (Endpoint, error) {
	ep, ok := endpoints[id]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown endpoint id: %s", id)
	}
	return ep, nil
}

// All returns every registered endpoint sorted by numeric id.
func All() []Endpoint {
	out := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].ID) != len(out[j].ID) {
			return len(out[i].ID) < len(out[j].ID)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DateRangeEndpoints returns the endpoints eligible for adaptive chunking.
func DateRangeEndpoints() []Endpoint {
	var out []Endpoint
	for _, ep := range All() {
		if ep.IsDateRange() {
			out = append(out, ep)
		}
	}
	return out
}
