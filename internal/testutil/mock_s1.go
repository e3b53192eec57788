// Package testutil provides testing utilities for the ScholarOne client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockS1Response defines the behavior for a mock endpoint response.
type MockS1Response struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockS1 is a configurable mock ScholarOne server for testing.
type MockS1 struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastQuery    map[string][]string
}

// NewMockS1 creates a new mock ScholarOne server.
func NewMockS1() *MockS1 {
	mock := &MockS1{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockS1) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockS1) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockS1) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockS1) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockS1) SetResponse(path string, resp MockS1Response) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockS1) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query parameters of the most recent request.
func (m *MockS1) GetLastQuery() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// defaultHandler answers with an empty successful result.
func (m *MockS1) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"Response": {"Status": "SUCCESS", "result": []}}`))
}

// SubmissionsBody builds a successful response with n submission records.
func SubmissionsBody(n int) string {
	body := `{"Response": {"Status": "SUCCESS", "result": {"submission": [`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"submissionId": "%d", "title": "Paper %d"}`, 100+i, i)
	}
	return body + `]}}}`
}

// NewSubmissionsResponse creates a 200 response with n submission records.
func NewSubmissionsResponse(n int) MockS1Response {
	return MockS1Response{
		StatusCode: http.StatusOK,
		Body:       SubmissionsBody(n),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// TooManyResultsBody is the result set overflow error, delivered inside a
// 200 response the way the API does it.
const TooManyResultsBody = `{"Response": {"errorDetails": {"moreInfo": {"errors": {"errorCode": 705, "errorMessage": "Too many results returned, please narrow your search criteria"}}}}}`

// NewTooManyResultsResponse creates the result set overflow response.
func NewTooManyResultsResponse() MockS1Response {
	return MockS1Response{
		StatusCode: http.StatusOK,
		Body:       TooManyResultsBody,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewThrottleResponse creates the request throttle error with a callback time.
func NewThrottleResponse(callBack time.Time) MockS1Response {
	return MockS1Response{
		StatusCode: http.StatusBadRequest,
		Body: fmt.Sprintf(`{"Response": {"errorDetails": {"errorCode": "500", "callBackTime": "%s"}}}`,
			callBack.UTC().Format(time.RFC3339)),
		Headers: map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMaintenanceResponse creates a platform maintenance error.
func NewMaintenanceResponse() MockS1Response {
	return MockS1Response{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"Response": {"errorDetails": {"errorCode": "600", "errorMessage": "Platform maintenance in progress"}}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewAuthFailureResponse creates a 401 authentication failure.
func NewAuthFailureResponse() MockS1Response {
	return MockS1Response{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"Response": {"errorDetails": {"errorMessage": "Authentication failed"}}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// RangeHandler answers a date range endpoint, failing with the result set
// overflow error whenever the requested span exceeds maxDays and returning
// one record per day otherwise.
func RangeHandler(maxDays int) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err1 := time.Parse("2006-01-02T15:04:05Z", q.Get("from_time"))
		to, err2 := time.Parse("2006-01-02T15:04:05Z", q.Get("to_time"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if err1 != nil || err2 != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"Response": {"errorDetails": {"errorMessage": "invalid date"}}}`))
			return
		}

		days := int(to.Sub(from)/(24*time.Hour)) + 1
		if days > maxDays {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(TooManyResultsBody))
			return
		}

		body := `{"Response": {"Status": "SUCCESS", "result": {"submission": [`
		for i := 0; i < days; i++ {
			if i > 0 {
				body += ","
			}
			day := from.AddDate(0, 0, i)
			body += fmt.Sprintf(`{"submissionId": "%s", "submissionDate": "%s"}`,
				day.Format("20060102"), day.Format("2006-01-02"))
		}
		body += `]}}}`
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}
