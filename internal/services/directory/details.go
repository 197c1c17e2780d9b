// -----------------------------------------------------------------------
// Profile Pages - Business field extraction with per-field fallbacks
// -----------------------------------------------------------------------

package directory

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/indago/internal/models"
)

var (
	// daddrPattern pulls lat/lng from the destination parameter of a
	// Google Maps directions link.
	daddrPattern = regexp.MustCompile(`daddr=([0-9.\-]+),([0-9.\-]+)`)

	reviewsPattern = regexp.MustCompile(`(\d+)\s+Reviews?`)
	yearPattern    = regexp.MustCompile(`(\d{4})`)

	// streetPattern is the last-ditch address match when no structured
	// address element exists.
	streetPattern = regexp.MustCompile(`(?i)\w+\s+(St|Street|Rd|Road|Ave|Avenue|Blvd|Boulevard|Al\s+\w+)`)
)

// nameSelectors locate the business name ahead of the page title.
var nameSelectors = []string{
	`div.text#company_name`,
	`.company_header h3`,
}

// addressSelectors are ordered most to least specific. The catch-all
// entries at the end pick up regional layouts that drop the id.
var addressSelectors = []string{
	`#company_address`,
	`div.text.location #company_address`,
	`div.info div.text.location #company_address`,
	`.address`,
	`div[id*="address"]`,
	`.location_links`,
	`div.text.location div`,
}

var descriptionSelectors = []string{
	`div.text.desc`,
	`.company_description`,
}

// Details fetches one business profile page and extracts every field
// the layout exposes. A missing or malformed field stays at its zero
// value; only a failed fetch or unparseable page is an error. The
// caller assigns identity and scrape bookkeeping.
func (a *Adapter) Details(ctx context.Context, pageURL string) (*models.Business, error) {
	doc, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch business page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())

	// Breadcrumb carries country, city and category in that order.
	crumbs := doc.Find(`ul[itemtype*="BreadcrumbList"] li span[itemprop="name"]`)
	country := strings.TrimSpace(crumbs.Eq(0).Text())
	city := strings.TrimSpace(crumbs.Eq(1).Text())
	category := strings.TrimSpace(crumbs.Eq(2).Text())

	name := firstText(doc, nameSelectors)
	if name == "" {
		name = title
		if idx := strings.Index(title, " - "); idx >= 0 {
			name = title[:idx]
		}
	}

	business := &models.Business{
		Title:        title,
		Name:         name,
		Country:      country,
		City:         city,
		Category:     category,
		Coords:       a.extractCoordinates(doc),
		Phone:        telLink(doc, "Phone"),
		Mobile:       telLink(doc, "Mobile phone"),
		Fax:          labeledText(doc, "Fax"),
		Website:      strings.TrimSpace(doc.Find(`div.weblinks a[href*="/redir/"]`).First().Text()),
		Address:      extractAddress(doc),
		WorkingHours: extractWorkingHours(doc),
		Description:  firstText(doc, descriptionSelectors),
		Tags:         extractTags(doc),
		Employees:    labeledText(doc, "Employees"),
		PageURL:      pageURL,
		Domain:       a.canonical,
	}

	business.ReviewsCount, business.Rating = extractReviews(doc)

	if established := labeledText(doc, "Established"); established != "" {
		if m := yearPattern.FindStringSubmatch(established); m != nil {
			if year, err := strconv.Atoi(m[1]); err == nil {
				business.EstablishedYear = year
			}
		}
	}

	a.logger.Debug().
		Str("name", business.Name).
		Str("url", pageURL).
		Msg("Business profile parsed")

	return business, nil
}

// extractCoordinates reads lat/lng from the directions link. Profiles
// without a map block simply have no coordinates.
func (a *Adapter) extractCoordinates(doc *goquery.Document) *models.Coordinates {
	link := doc.Find(`a[href*="maps.google.com"][href*="daddr="]`).First()
	if link.Length() == 0 {
		link = doc.Find(`.location_links a[href*="maps.google.com"]`).First()
	}

	href, ok := link.Attr("href")
	if !ok {
		return nil
	}

	m := daddrPattern.FindStringSubmatch(href)
	if m == nil {
		return nil
	}

	lat, latErr := strconv.ParseFloat(m[1], 64)
	lng, lngErr := strconv.ParseFloat(m[2], 64)
	if latErr != nil || lngErr != nil {
		return nil
	}

	return &models.Coordinates{Lat: lat, Lng: lng}
}

// extractAddress walks the selector cascade and keeps the first value
// that looks like an actual address rather than map chrome.
func extractAddress(doc *goquery.Document) string {
	for _, selector := range addressSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		text := collapseWhitespace(sel.Text())
		lower := strings.ToLower(text)
		if len(text) > 5 && lower != "view map" && lower != "get directions" {
			return text
		}
	}

	// Fallback: any leaf div whose text resembles a street address.
	var address string
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(s.Text())
		if text != "" && streetPattern.MatchString(text) {
			address = text
			return false
		}
		return true
	})
	return address
}

// extractWorkingHours parses the open-hours list into day/hours pairs.
func extractWorkingHours(doc *goquery.Document) map[string]string {
	hours := make(map[string]string)
	doc.Find("#open_hours ul li").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		parts := strings.SplitN(text, ":", 2)
		if len(parts) != 2 {
			return
		}
		day := strings.TrimSpace(parts[0])
		span := strings.TrimSpace(parts[1])
		if day != "" && span != "" {
			hours[day] = span
		}
	})

	if len(hours) == 0 {
		return nil
	}
	return hours
}

// extractTags collects the category tags linked from the profile.
func extractTags(doc *goquery.Document) []string {
	var tags []string
	doc.Find(`div.tags a[href^="/category/"]`).Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})
	return tags
}

// extractReviews reads the review count and average rating.
func extractReviews(doc *goquery.Document) (int, float64) {
	block := doc.Find(".company_reviews").First()
	if block.Length() == 0 {
		return 0, 0
	}

	var rating float64
	if text := strings.TrimSpace(block.Find(".rate").First().Text()); text != "" {
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			rating = v
		}
	}

	count := 0
	if m := reviewsPattern.FindStringSubmatch(block.Text()); m != nil {
		count, _ = strconv.Atoi(m[1])
	}

	return count, rating
}
