// -----------------------------------------------------------------------
// Directory Adapter - Page fetching and parsing for yello-style sites
// -----------------------------------------------------------------------

package directory

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/httpclient"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/registry"
)

// Adapter walks one business directory site. The yello family shares a
// common page layout (location index, paged city listings, company
// profile pages), so a single adapter covers every catalog domain.
// The adapter is pure I/O: it holds no job state and persists nothing.
type Adapter struct {
	baseURL    string
	domainName string
	canonical  string
	fetcher    *httpclient.Fetcher
	cityLimit  int
	logger     arbor.ILogger
}

// NewAdapter creates an adapter for a directory domain. The domain may
// be given with or without a scheme; https is assumed when absent.
func NewAdapter(domain string, fetcher *httpclient.Fetcher, cityLimit int, logger arbor.ILogger) *Adapter {
	baseURL := strings.TrimSpace(domain)
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	domainName := strings.TrimPrefix(baseURL, "https://")
	domainName = strings.TrimPrefix(domainName, "http://")

	if cityLimit <= 0 {
		cityLimit = 50
	}

	return &Adapter{
		baseURL:    baseURL,
		domainName: domainName,
		canonical:  registry.CanonicalDomain(baseURL),
		fetcher:    fetcher,
		cityLimit:  cityLimit,
		logger:     logger,
	}
}

// Domain returns the canonical domain used as the identity half of the
// (domain, page_url) business key.
func (a *Adapter) Domain() string {
	return a.canonical
}

// absoluteURL resolves a scraped href against the site base URL.
func (a *Adapter) absoluteURL(href string) string {
	resolved, err := common.ResolveURL(a.baseURL, href)
	if err != nil {
		return ""
	}
	return resolved
}

// Factory builds one adapter per supervisor so each job owns its own
// HTTP client and connection pool.
type Factory struct {
	config *common.ScraperConfig
	logger arbor.ILogger
}

// NewFactory creates an adapter factory from the scraper configuration
func NewFactory(config *common.ScraperConfig, logger arbor.ILogger) interfaces.AdapterFactory {
	return &Factory{
		config: config,
		logger: logger,
	}
}

// ForDomain creates a SiteAdapter for a directory base URL
func (f *Factory) ForDomain(baseURL string) (interfaces.SiteAdapter, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("domain is required")
	}

	fetcher := httpclient.NewFetcher(f.config, f.logger)
	return NewAdapter(baseURL, fetcher, f.config.CityDiscoveryLimit, f.logger), nil
}
