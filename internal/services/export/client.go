// -----------------------------------------------------------------------
// Export API Client - single-record JSON pushes to external endpoints
// -----------------------------------------------------------------------

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the HTTP timeout for record pushes.
	DefaultTimeout = 30 * time.Second

	// connectionTestTimeout bounds the TestConnection probe.
	connectionTestTimeout = 10 * time.Second

	// maxResponseBody caps how much of an endpoint reply is kept for
	// the run logs.
	maxResponseBody = 512
)

// Client pushes individual business records to an export endpoint.
type Client struct {
	endpointURL string
	method      string
	authToken   string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithMethod sets the HTTP method used for record pushes.
func WithMethod(method string) ClientOption {
	return func(c *Client) {
		if method != "" {
			c.method = strings.ToUpper(method)
		}
	}
}

// WithAuthToken sets the bearer token sent with each request.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimitDelay spaces requests at least the given number of
// seconds apart. Zero or negative leaves the client unthrottled.
func WithRateLimitDelay(seconds float64) ClientOption {
	return func(c *Client) {
		if seconds > 0 {
			interval := time.Duration(seconds * float64(time.Second))
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// NewClient creates an export client for one endpoint.
func NewClient(endpointURL string, opts ...ClientOption) *Client {
	c := &Client{
		endpointURL: endpointURL,
		method:      http.MethodPost,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SendResult captures the endpoint's reply to a single record.
type SendResult struct {
	StatusCode int
	Body       string
}

// Success reports whether the endpoint accepted the record.
func (r *SendResult) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// SendRecord pushes one record as a JSON document. A non-nil error
// means the request never produced a response; HTTP failures come back
// in the result with the (truncated) reply body.
func (c *Client) SendRecord(ctx context.Context, record map[string]interface{}) (*SendResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if c.logger != nil {
		c.logger.Debug().
			Str("endpoint", c.endpointURL).
			Int("status", resp.StatusCode).
			Msg("Export record pushed")
	}

	return &SendResult{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}, nil
}

// TestEndpoint probes an export endpoint with an authenticated GET and
// reports reachability, status and latency.
func TestEndpoint(ctx context.Context, endpointURL, authToken string) *interfaces.TestConnectionResult {
	result := &interfaces.TestConnectionResult{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: connectionTestTimeout}
	start := time.Now()
	resp, err := client.Do(req)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	result.Reachable = true
	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result
}
