package donki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/audit"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the public DONKI API root.
const DefaultBaseURL = "https://api.nasa.gov/DONKI"

// Feed paths relative to the base URL.
const (
	PathFlares = "/FLR"
	PathStorms = "/GST"
)

// Auditor records the outcome of each outbound request.
type Auditor interface {
	Record(ctx context.Context, endpoint string, status int, content string)
}

// Client performs audited GET requests against the DONKI API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *retryablehttp.Client
	auditor    Auditor
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a DONKI client. timeout bounds each attempt; retryMax is the
// number of extra attempts for connection errors, 429 and 5xx responses.
func NewClient(apiKey, baseURL string, timeout time.Duration, retryMax int, auditor Auditor, logger *slog.Logger, metrics *observability.Metrics) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = logger
	// Hand back the last response instead of a "giving up" error so its
	// status and body can be audited.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: rc,
		auditor:    auditor,
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch GETs path with params (plus the API key) and returns the JSON body.
// It reports false for any non-200 status, a body that is not JSON, or a
// transport failure. Every call is audited exactly once, whatever the outcome.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, bool) {
	endpoint := c.baseURL + path
	feed := strings.TrimPrefix(path, "/")

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}

	start := time.Now()
	status, body, err := c.get(ctx, endpoint+"?"+query.Encode())
	c.metrics.FetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())

	// The audit row is written even when the caller's context has expired.
	auditCtx := context.WithoutCancel(ctx)

	if err != nil {
		msg := c.redact(err.Error())
		c.auditor.Record(auditCtx, endpoint, status, msg)
		c.metrics.FetchRequests.WithLabelValues(feed, "network_error").Inc()
		c.logger.Warn("donki request failed", "feed", feed, "error", msg)
		return nil, false
	}

	c.auditor.Record(auditCtx, endpoint, status, string(body))

	if status != http.StatusOK {
		c.metrics.FetchRequests.WithLabelValues(feed, "http_error").Inc()
		c.logger.Warn("donki returned non-200 status", "feed", feed, "status", status)
		return nil, false
	}
	if !json.Valid(body) {
		c.metrics.FetchRequests.WithLabelValues(feed, "decode_error").Inc()
		c.logger.Warn("donki returned a body that is not JSON", "feed", feed, "bytes", len(body))
		return nil, false
	}

	c.metrics.FetchRequests.WithLabelValues(feed, "success").Inc()
	return json.RawMessage(body), true
}

func (c *Client) get(ctx context.Context, fullURL string) (int, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return audit.StatusNetworkError, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return audit.StatusNetworkError, nil, fmt.Errorf("donki request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// redact strips the API key from transport errors, which embed the full URL.
func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, "REDACTED")
}
