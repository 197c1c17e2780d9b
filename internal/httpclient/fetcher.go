package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"golang.org/x/time/rate"
)

// userAgents is the rotation pool used when user_agent_rotation is
// enabled. Directory sites throttle repeated identical agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// Fetcher retrieves directory pages and parses them into goquery
// documents. An optional global limiter caps the request rate across
// every job; per-job politeness delays live in the scrape loop.
type Fetcher struct {
	client    *http.Client
	userAgent string
	rotate    bool
	limiter   *rate.Limiter
	logger    arbor.ILogger
	requests  atomic.Uint64
}

// NewFetcher creates a Fetcher from the scraper configuration
func NewFetcher(config *common.ScraperConfig, logger arbor.ILogger) *Fetcher {
	var limiter *rate.Limiter
	if config.MaxRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.MaxRequestsPerSecond), config.MaxRequestsPerSecond)
	}

	timeout := common.ParseDurationOr(config.RequestTimeout, 30*time.Second)

	return &Fetcher{
		client:    NewCrawlClient(timeout),
		userAgent: config.UserAgent,
		rotate:    config.UserAgentRotation,
		limiter:   limiter,
		logger:    logger,
	}
}

// Fetch retrieves a page and parses it into a goquery document.
// Non-2xx responses are errors; the caller decides whether they pause
// or fail the owning job.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed for %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	return doc, nil
}

// RequestCount returns the number of requests issued since startup
func (f *Fetcher) RequestCount() uint64 {
	return f.requests.Load()
}

func (f *Fetcher) nextUserAgent() string {
	n := f.requests.Add(1)
	if !f.rotate {
		if f.userAgent != "" {
			return f.userAgent
		}
		return userAgents[0]
	}
	return userAgents[int(n)%len(userAgents)]
}
