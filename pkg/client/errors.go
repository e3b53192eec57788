package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of API errors.
type ErrorClass string

const (
	// ErrorClassThrottle is the API's request throttle, HTTP 400 with
	// error code 500 or plain HTTP 429.
	ErrorClassThrottle ErrorClass = "throttle"

	// ErrorClassMaintenance covers platform, stack and site maintenance
	// windows, HTTP 500 with codes 600/601/602 or plain HTTP 503.
	ErrorClassMaintenance ErrorClass = "maintenance"

	// ErrorClassAuth covers HTTP 401/403. Never retried.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer covers transient HTTP 500/502/504 errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassBadRequest is HTTP 400 without a throttle code. Never
	// retried.
	ErrorClassBadRequest ErrorClass = "bad_request"

	// ErrorClassTooManyResults is the result set size limit. Never
	// retried here; the chunking layer splits the range instead.
	ErrorClassTooManyResults ErrorClass = "too_many_results"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassUnknown is everything else. Never retried.
	ErrorClassUnknown ErrorClass = "unknown"
)

// APIError represents a ScholarOne API error with the classification and the
// raw response body attached.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Body       []byte

	// CallbackTime is the throttle release time the API announced, zero
	// when none was given.
	CallbackTime time.Time

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scholarone %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("scholarone %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Payload returns the raw response body carried with the error.
func (e *APIError) Payload() []byte {
	return e.Body
}

// errorCodePath is where ScholarOne reports its own error code, as a string,
// independent of the HTTP status.
const errorCodePath = "Response.errorDetails.errorCode"

// callbackTimePath announces when a throttled caller may try again.
const callbackTimePath = "Response.errorDetails.callBackTime"

// Classify maps an HTTP status and response body to an error class.
func Classify(statusCode int, body []byte) ErrorClass {
	code := gjson.GetBytes(body, errorCodePath).String()

	switch {
	case chunking.IsTooManyResults(body):
		return ErrorClassTooManyResults
	case statusCode == 400 && code == "500":
		return ErrorClassThrottle
	case statusCode == 429:
		return ErrorClassThrottle
	case statusCode == 500 && (code == "600" || code == "601" || code == "602"):
		return ErrorClassMaintenance
	case statusCode == 503:
		return ErrorClassMaintenance
	case statusCode == 401 || statusCode == 403:
		return ErrorClassAuth
	case statusCode == 500 || statusCode == 502 || statusCode == 504:
		return ErrorClassServer
	case statusCode == 400:
		return ErrorClassBadRequest
	default:
		return ErrorClassUnknown
	}
}

// CallbackTime extracts the throttle release time from an error body. The
// zero time is returned when the field is absent or unparseable.
func CallbackTime(body []byte) time.Time {
	raw := gjson.GetBytes(body, callbackTimePath).String()
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassThrottle, ErrorClassMaintenance, ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// auth, bad_request, too_many_results and unknown errors are
		// final; retrying them only burns quota.
		return false
	}
}
