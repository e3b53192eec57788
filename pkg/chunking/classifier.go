package chunking

import (
	"strings"

	"github.com/tidwall/gjson"
)

// TooManyResultsCode is the ScholarOne error code signalling that a query
// would exceed the server-side result cap (S1-705).
const TooManyResultsCode = 705

// errorsPath is where ScholarOne nests the structured error block inside an
// error response body.
const errorsPath = "Response.errorDetails.moreInfo.errors"

// IsTooManyResults reports whether an API error payload carries the S1-705
// "too many results" signal, either by error code or by message text.
//
// The payload is treated as fully opaque and untrusted: it may be empty, not
// JSON, not an object, or missing any level of the expected nesting. All such
// cases classify as false. The function never panics and has no side effects.
func IsTooManyResults(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}

	errs := gjson.GetBytes(payload, errorsPath)
	if !errs.Exists() {
		return false
	}

	// Code match requires an actual JSON number; a quoted "705" is matched
	// through the message check only, mirroring the upstream contract.
	code := errs.Get("errorCode")
	if code.Type == gjson.Number && code.Int() == TooManyResultsCode {
		return true
	}

	msg := strings.ToLower(errs.Get("errorMessage").String())
	return strings.Contains(msg, "too many results")
}
