package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// SiteAdapter walks one directory site: city discovery, listing pages
// and business profile pages.
type SiteAdapter interface {
	// Domain returns the canonical domain stamped on every Business
	// this adapter produces. Dedup lookups must use the same value.
	Domain() string

	// Cities discovers the location pages for the site, in site order.
	Cities(ctx context.Context) ([]models.City, error)

	// Listings returns the business profile URLs on one listing page
	// and whether a further page exists. Pages are 1-based.
	Listings(ctx context.Context, city models.City, page int) (urls []string, hasNext bool, err error)

	// Details fetches and parses a single business profile page.
	// Missing fields are zero values; an error means the whole page
	// could not be fetched or parsed.
	Details(ctx context.Context, pageURL string) (*models.Business, error)
}

// AdapterFactory builds a SiteAdapter for a directory base URL.
type AdapterFactory interface {
	ForDomain(baseURL string) (SiteAdapter, error)
}
