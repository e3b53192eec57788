// Package client provides the ScholarOne Web Services HTTP client with
// digest authentication, request pacing, retry and error classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icholy/digest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sparda104/scholarone-api-v5/pkg/catalog"
	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
	"github.com/Sparda104/scholarone-api-v5/pkg/ratelimit"
)

// DefaultBaseURL is the production ScholarOne Web Services host.
const DefaultBaseURL = "https://mc-api.manuscriptcentral.com"

// Request timeouts per endpoint timeout class.
const (
	baseTimeout     = 60 * time.Second
	extendedTimeout = 120 * time.Second
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 256 << 20

// Prometheus metrics for client operations.
var (
	s1RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_requests_total",
		Help: "Total ScholarOne requests by endpoint and status",
	}, []string{"endpoint", "status"})

	s1RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "s1_request_duration_seconds",
		Help:    "ScholarOne request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})

	s1ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "s1_errors_total",
		Help: "Total ScholarOne errors by class",
	}, []string{"class"})
)

// Client is the ScholarOne Web Services client.
type Client struct {
	httpClient *http.Client
	pacer      *ratelimit.Pacer
	throttle   *ratelimit.SharedThrottle
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API host, DefaultBaseURL when empty.
	BaseURL string

	// Username and APIKey for HTTP digest authentication (REQUIRED).
	Username string
	APIKey   string

	// Redis client for throttle state shared across processes. Optional;
	// without it throttle windows are only honored per process.
	Redis *redis.Client

	// RateLimitDelay is the minimum pause between requests.
	RateLimitDelay time.Duration
}

// DefaultConfig returns a configuration with the API's documented limits.
func DefaultConfig(username, apiKey string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Username:       username,
		APIKey:         apiKey,
		RateLimitDelay: 1500 * time.Millisecond,
	}
}

// New creates a new ScholarOne client.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = 1500 * time.Millisecond
	}

	logger := log.With().Str("component", "s1-client").Logger()

	var throttle *ratelimit.SharedThrottle
	if cfg.Redis != nil {
		throttle = ratelimit.NewSharedThrottle(cfg.Redis, logger)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &digest.Transport{
				Username: cfg.Username,
				Password: cfg.APIKey,
			},
		},
		pacer:    ratelimit.NewPacer(cfg.RateLimitDelay, logger),
		throttle: throttle,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Call executes one API call against an endpoint and returns the raw
// response body. Pacing, the shared throttle window and retries are applied
// here; the body still needs ExtractRows.
func (c *Client) Call(ctx context.Context, ep catalog.Endpoint, site string, params url.Values) ([]byte, error) {
	if err := catalog.ValidateSiteName(site); err != nil {
		return nil, err
	}

	startTime := time.Now()
	defer func() {
		s1RequestDuration.WithLabelValues(ep.Path).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.pacer.Wait(ctx, pacerProfile(ep)); err != nil {
		return nil, err
	}

	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("shared throttle: %w", err)
		}
	}

	q := url.Values{}
	for key, vals := range params {
		q[key] = vals
	}
	q.Set("site_name", site)
	q.Set("_type", "json")

	c.logger.Info().
		Str("endpoint", ep.Path).
		Str("site", site).
		Str("params", redactParams(q)).
		Msg("API request")

	var body []byte
	retryErr := retryWithBackoff(ctx, func() error {
		var err error
		body, err = c.doOnce(ctx, ep, q)
		return err
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return body, nil
}

// doOnce performs a single HTTP round trip and classifies the outcome.
func (c *Client) doOnce(ctx context.Context, ep catalog.Endpoint, q url.Values) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeoutFor(ep))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.config.BaseURL+ep.Path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		s1ErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		s1RequestsTotal.WithLabelValues(ep.Path, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", ep.Path).Msg("HTTP request failed")
		return nil, &APIError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		s1ErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		s1RequestsTotal.WithLabelValues(ep.Path, "read_error").Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	s1RequestsTotal.WithLabelValues(ep.Path, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// The API reports some failures, result set overflow included, inside
	// a 200 response.
	if resp.StatusCode < 400 && !chunking.IsTooManyResults(body) {
		return body, nil
	}

	class := Classify(resp.StatusCode, body)
	s1ErrorsTotal.WithLabelValues(string(class)).Inc()

	apiErr := &APIError{
		StatusCode:   resp.StatusCode,
		Class:        class,
		Message:      resp.Status,
		Body:         body,
		CallbackTime: CallbackTime(body),
	}

	c.logger.Warn().
		Str("endpoint", ep.Path).
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("API request error")

	// Publish the announced throttle window so sibling processes back off
	// before the API has to tell them too.
	if class == ErrorClassThrottle && c.throttle != nil && !apiErr.CallbackTime.IsZero() {
		if err := c.throttle.SetUntil(ctx, apiErr.CallbackTime); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to publish throttle window")
		}
	}

	return nil, apiErr
}

// FetchByIDs runs an id-based endpoint over an arbitrary id list, batching
// to the endpoint's per-call limit and concatenating the extracted rows.
func (c *Client) FetchByIDs(ctx context.Context, ep catalog.Endpoint, site string, ids []string, params url.Values) ([]chunking.Record, error) {
	ids = catalog.SanitizeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("endpoint %s (%s) requires at least one id", ep.ID, ep.Name)
	}

	var rows []chunking.Record
	for _, batch := range catalog.Batches(ep, ids) {
		if err := catalog.ValidateBatch(ep, batch); err != nil {
			return nil, err
		}

		q := url.Values{}
		for key, vals := range params {
			q[key] = vals
		}
		q.Set("ids", quoteIDs(batch))

		body, err := c.Call(ctx, ep, site, q)
		if err != nil {
			return rows, err
		}

		batchRows := ExtractRows(body, c.logger)
		StampJournal(batchRows, site)
		rows = append(rows, batchRows...)
	}

	c.logger.Info().
		Str("endpoint", ep.Path).
		Int("ids", len(ids)).
		Int("records", len(rows)).
		Msg("ID fetch complete")
	return rows, nil
}

// FetchConfig runs a configuration endpoint, which takes no ids.
func (c *Client) FetchConfig(ctx context.Context, ep catalog.Endpoint, site string, params url.Values) ([]chunking.Record, error) {
	body, err := c.Call(ctx, ep, site, params)
	if err != nil {
		return nil, err
	}
	rows := ExtractRows(body, c.logger)
	StampJournal(rows, site)
	return rows, nil
}

// RangeCaller adapts the client to a date range endpoint so the chunking
// fetcher can drive it.
type RangeCaller struct {
	client *Client
	ep     catalog.Endpoint
	params url.Values
}

// NewRangeCaller builds a caller for a date range endpoint. Extra params
// beyond the from/to pair are passed through on every call.
func (c *Client) NewRangeCaller(ep catalog.Endpoint, params url.Values) (*RangeCaller, error) {
	if !ep.IsDateRange() {
		return nil, fmt.Errorf("endpoint %s (%s) is not a date range endpoint", ep.ID, ep.Name)
	}
	return &RangeCaller{client: c, ep: ep, params: params}, nil
}

// FetchRange implements chunking.Caller.
func (rc *RangeCaller) FetchRange(ctx context.Context, site string, start, end time.Time) ([]chunking.Record, error) {
	q := url.Values{}
	for key, vals := range rc.params {
		q[key] = vals
	}
	q.Set(rc.ep.DateParams[0], start.UTC().Format("2006-01-02T15:04:05Z"))
	q.Set(rc.ep.DateParams[1], end.UTC().Format("2006-01-02T15:04:05Z"))

	body, err := rc.client.Call(ctx, rc.ep, site, q)
	if err != nil {
		return nil, err
	}

	rows := ExtractRows(body, rc.client.logger)
	StampJournal(rows, site)
	return rows, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// timeoutFor picks the request timeout for an endpoint.
func timeoutFor(ep catalog.Endpoint) time.Duration {
	if ep.Timeout == catalog.TimeoutExtended || ep.Complexity == catalog.ComplexityHigh {
		return extendedTimeout
	}
	return baseTimeout
}

// pacerProfile maps endpoint characteristics to pacing multipliers.
func pacerProfile(ep catalog.Endpoint) ratelimit.Profile {
	return ratelimit.Profile{
		RateSensitive:  ep.RateSensitive,
		HighComplexity: ep.Complexity == catalog.ComplexityHigh,
	}
}

// quoteIDs renders an id batch as the quoted comma list the API expects.
func quoteIDs(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + id + "'"
	}
	return strings.Join(quoted, ",")
}

// redactParams renders query parameters for logging with credentials masked.
func redactParams(q url.Values) string {
	safe := url.Values{}
	for key, vals := range q {
		switch key {
		case "username", "api_key", "password":
			safe.Set(key, "***REDACTED***")
		default:
			safe[key] = vals
		}
	}
	return safe.Encode()
}
