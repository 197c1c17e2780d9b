// -----------------------------------------------------------------------
// Listing Pages - Business URL extraction from paged city listings
// -----------------------------------------------------------------------

package directory

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
)

// listingSelectors are tried in order until one yields company links.
// The first matches the standard layout; the rest widen the net for
// regional variants that drop the h3 wrapper or the company container.
var listingSelectors = []string{
	`div.company h3 a[href^="/company/"]`,
	`div.company a[href^="/company/"]`,
	`h3 a[href*="/company/"]`,
	`a[href*="/company/"]`,
}

// Listings returns the absolute business profile URLs on one page of a
// city listing and whether a further page exists. Pages are 1-based;
// page N>1 maps to the /{N} path suffix. Fetch failures propagate so
// the caller can classify them.
func (a *Adapter) Listings(ctx context.Context, city models.City, page int) ([]string, bool, error) {
	pageURL := common.PageURL(city.URL, page)

	doc, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, false, fmt.Errorf("fetch listing page %d of %s: %w", page, city.Name, err)
	}

	var urls []string
	seen := make(map[string]bool)
	for _, selector := range listingSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			full := a.absoluteURL(href)
			if full == "" || seen[full] {
				return
			}
			seen[full] = true
			urls = append(urls, full)
		})
		if len(urls) > 0 {
			break
		}
	}

	hasNext := doc.Find(`a.pages_arrow[rel="next"]`).Length() > 0

	a.logger.Debug().
		Str("city", city.Name).
		Int("page", page).
		Int("businesses", len(urls)).
		Bool("has_next", hasNext).
		Msg("Listing page parsed")

	return urls, hasNext, nil
}
