// Package bigkinds implements news.Provider over the BigKinds OpenAPI. Every
// call runs under a per-call timeout, a per-endpoint circuit breaker, and a
// jittered retry that only repeats transient failures.
package bigkinds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/related-questions/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/resilience"
)

const (
	endpointSearch  = "search"
	endpointRelated = "related"
	endpointTopN    = "topn"
	endpointRank    = "query_rank"
)

var endpointPaths = map[string]string{
	endpointSearch:  "/search/news",
	endpointRelated: "/word/related",
	endpointTopN:    "/word/topn",
	endpointRank:    "/query_rank",
}

// DefaultFields are the document fields requested from the search endpoint.
var DefaultFields = []string{
	"news_id", "title", "content", "published_at", "dateline", "category",
	"images", "provider_link_page", "provider_code", "provider_name", "byline",
}

// StatusError is a non-2xx HTTP response from BigKinds.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bigkinds %s: http %d: %s", e.Endpoint, e.Code, e.Body)
}

// APIError is a 200 response whose envelope reports a non-zero result code.
type APIError struct {
	Endpoint string
	Result   int
	Reason   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bigkinds %s: result=%d reason=%q", e.Endpoint, e.Result, e.Reason)
}

var _ news.Provider = (*Client)(nil)

// Client talks to the BigKinds API.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	lookback   int
	retry      resilience.RetryConfig
	httpClient *http.Client
	breakers   map[string]*resilience.CircuitBreaker
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces time.Now for date defaults.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a Client from config. m may be nil.
func New(cfg config.BigKindsConfig, m *metrics.Metrics, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		lookback: cfg.LookbackDay,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Retryable:    isTransient,
		},
		httpClient: &http.Client{},
		breakers:   make(map[string]*resilience.CircuitBreaker, len(endpointPaths)),
		metrics:    m,
		now:        time.Now,
		logger:     slog.Default().With("component", "bigkinds-client"),
	}
	if c.lookback <= 0 {
		c.lookback = 30
	}
	for endpoint := range endpointPaths {
		c.breakers[endpoint] = resilience.NewCircuitBreaker("bigkinds-"+endpoint, resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			ResetTimeout:     cfg.Breaker.ResetTimeout,
			IsFailure:        isTransient,
			OnStateChange:    c.recordBreakerState,
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breakers returns the per-endpoint circuit breakers for health reporting.
func (c *Client) Breakers() []*resilience.CircuitBreaker {
	out := make([]*resilience.CircuitBreaker, 0, len(c.breakers))
	for _, endpoint := range []string{endpointSearch, endpointRelated, endpointTopN, endpointRank} {
		out = append(out, c.breakers[endpoint])
	}
	return out
}

func (c *Client) recordBreakerState(name string, _, to resilience.State) {
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
}

// call runs fn through retry, breaker and timeout, and translates the final
// error into an AppError the HTTP edge can map.
func (c *Client) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	start := time.Now()
	breaker := c.breakers[endpoint]
	op := "bigkinds." + endpoint
	err := resilience.Retry(ctx, op, c.retry, func() error {
		return breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, c.timeout, op, fn)
		})
	})

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = "open"
	default:
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
		c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return nil
	}

	c.logger.Warn("bigkinds call failed", "endpoint", endpoint, "status", status, "error", err)
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case errors.Is(err, resilience.ErrCircuitOpen):
		return pkgerrors.Newf(pkgerrors.ErrUnavailable, http.StatusServiceUnavailable, "%s: %v", op, err)
	case errors.Is(err, resilience.ErrTimeout):
		return pkgerrors.Newf(pkgerrors.ErrTimeout, http.StatusGatewayTimeout, "%s: %v", op, err)
	default:
		return pkgerrors.Upstreamf("%s: %v", op, err)
	}
}

// isTransient reports whether err is worth retrying and counts against the
// breaker: transport failures, timeouts and 5xx responses.
func isTransient(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, resilience.ErrTimeout) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, argument any, out any) error {
	body, err := json.Marshal(map[string]any{
		"access_key": c.apiKey,
		"argument":   argument,
	})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointPaths[endpoint], bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, endpoint, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("access_key", c.apiKey)
	u := c.baseURL + endpointPaths[endpoint] + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", endpoint, err)
	}
	return c.send(req, endpoint, out)
}

func (c *Client) send(req *http.Request, endpoint string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) resolveRange(r news.DateRange) news.DateRange {
	if r.IsZero() {
		return news.LastDays(c.now(), c.lookback)
	}
	def := news.LastDays(c.now(), c.lookback)
	if r.From.IsZero() {
		r.From = def.From
	}
	if r.To.IsZero() {
		r.To = def.To
	}
	return r
}

func itoa(n int) string { return strconv.Itoa(n) }
