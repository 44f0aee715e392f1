// Package client provides the authenticated HTTP client for the
// upstream pricing API. It normalizes success and error responses into
// (payload, status) pairs, augments successful payloads with rate-limit
// telemetry, and never caches or retries: both are the caller's call.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pokepulse/pokepulse-backend/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokepulse_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokepulse_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokepulse_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the production pricing API base.
	DefaultBaseURL = "https://www.pokemonpricetracker.com/api/v2"

	// DefaultUserAgent identifies this client to the upstream API.
	DefaultUserAgent = "PokePulse/2.0"

	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 25 * time.Second
)

// CredentialProvider supplies the bearer token for upstream requests.
// An empty return value means no credential is configured.
type CredentialProvider func() string

// Config holds the client configuration.
type Config struct {
	// BaseURL is the upstream API base (no trailing slash required).
	BaseURL string

	// Credentials supplies the bearer token per request.
	Credentials CredentialProvider

	// UserAgent sent with every request.
	UserAgent string

	// Timeout bounds each upstream call.
	Timeout time.Duration

	// Tracker receives credit telemetry from response headers (optional).
	Tracker *ratelimit.Tracker
}

// DefaultConfig returns the production configuration for the given
// credential provider.
func DefaultConfig(credentials CredentialProvider) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Credentials: credentials,
		UserAgent:   DefaultUserAgent,
		Timeout:     DefaultTimeout,
	}
}

// Client is the upstream pricing API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := log.With().Str("component", "upstream-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Fetch performs one authenticated GET against the upstream API.
//
// The return value is always a (payload, status) pair the dispatch layer
// can hand to a client verbatim:
//   - 2xx: the decoded body augmented with a "_rateLimit" field built
//     from the X-RateLimit-Limit/Remaining/Reset response headers.
//   - upstream 4xx/5xx: the decoded error body (or {"error": raw text}
//     when the body isn't JSON) with the original status code.
//   - missing credential, transport failure, undecodable success body:
//     {"error": ...} with status 500. A missing credential short-circuits
//     before any network I/O.
//
// No retries are attempted at any layer.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (map[string]any, int) {
	start := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	payload, status := c.fetch(ctx, endpoint, params)
	upstreamRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", status)).Inc()
	return payload, status
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) (map[string]any, int) {
	token := c.config.Credentials()
	if token == "" {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassCredential)).Inc()
		c.logger.Error().Str("endpoint", endpoint).Msg("No API credential configured")
		return errorPayload(ErrMissingCredential.Error()), http.StatusInternalServerError
	}

	reqURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return errorPayload(err.Error()), http.StatusInternalServerError
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Msg("Fetching from upstream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
		return errorPayload(err.Error()), http.StatusInternalServerError
	}
	defer resp.Body.Close()

	if c.config.Tracker != nil {
		if err := c.config.Tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record credit telemetry")
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to read upstream body")
		return errorPayload(err.Error()), http.StatusInternalServerError
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream returned an error")
		return decodeErrorBody(body), resp.StatusCode
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		uerr := &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode upstream response",
			Err:        err,
		}
		c.logger.Error().Err(uerr).Str("endpoint", endpoint).Msg("Undecodable upstream body")
		return errorPayload(uerr.Error()), http.StatusInternalServerError
	}

	payload["_rateLimit"] = rateLimitField(resp.Header)

	return payload, resp.StatusCode
}

// decodeErrorBody decodes an upstream error body, falling back to
// wrapping the raw text when it isn't a JSON object.
func decodeErrorBody(body []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return errorPayload(string(body))
	}
	return payload
}

// rateLimitField builds the _rateLimit sub-structure from response
// headers. Absent headers map to nil, not empty strings.
func rateLimitField(headers http.Header) map[string]any {
	field := map[string]any{
		"limit":     nil,
		"remaining": nil,
		"reset":     nil,
	}
	if v := headers.Get("X-RateLimit-Limit"); v != "" {
		field["limit"] = v
	}
	if v := headers.Get("X-RateLimit-Remaining"); v != "" {
		field["remaining"] = v
	}
	if v := headers.Get("X-RateLimit-Reset"); v != "" {
		field["reset"] = v
	}
	return field
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
