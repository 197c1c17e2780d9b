// -----------------------------------------------------------------------
// City Discovery - Location index parsing with layered fallbacks
// -----------------------------------------------------------------------

package directory

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/indago/internal/models"
)

// cityLabelPattern splits the "Karachi 68,340" anchor text on the
// browse-business-cities index into name and business count.
var cityLabelPattern = regexp.MustCompile(`^([^0-9]+)\s*(\d[\d,]*)?$`)

// homepageCitySelectors are tried in order on the site homepage when no
// browse-business-cities index exists.
var homepageCitySelectors = []string{
	`a[href*="/location/"]`,
	`select[name="location"] option`,
	`.location-link`,
}

// Cities discovers the location pages for the site. Resolution order:
// the browse-business-cities index, then homepage navigation, then the
// hard-coded list for the domain. The first source that yields anything
// wins, so a site outage degrades to the static list instead of an
// empty job.
func (a *Adapter) Cities(ctx context.Context) ([]models.City, error) {
	cities, err := a.citiesFromBrowsePage(ctx)
	if err == nil && len(cities) > 0 {
		a.logger.Info().
			Str("domain", a.domainName).
			Int("cities", len(cities)).
			Msg("Cities discovered from browse index")
		return cities, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cities, err = a.citiesFromHomepage(ctx)
	if err == nil && len(cities) > 0 {
		a.logger.Info().
			Str("domain", a.domainName).
			Int("cities", len(cities)).
			Msg("Cities discovered from homepage navigation")
		return cities, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return a.fallbackCities(), nil
}

// citiesFromBrowsePage reads the dedicated city index most yello sites
// expose, which includes per-city business counts.
func (a *Adapter) citiesFromBrowsePage(ctx context.Context) ([]models.City, error) {
	doc, err := a.fetcher.Fetch(ctx, a.baseURL+"/browse-business-cities")
	if err != nil {
		a.logger.Debug().
			Str("domain", a.domainName).
			Err(err).
			Msg("Browse cities index not available")
		return nil, err
	}

	var cities []models.City
	doc.Find(`a[href*="/location/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if href == "" || text == "" {
			return
		}

		name, count, ok := parseCityLabel(text)
		if !ok {
			return
		}

		url := a.absoluteURL(href)
		if url == "" {
			return
		}

		cities = append(cities, models.City{
			Name:          name,
			URL:           url,
			BusinessCount: count,
			Domain:        a.domainName,
		})
	})

	return cities, nil
}

// citiesFromHomepage scans the homepage for location links or a
// location dropdown. Discovery is capped so a site with thousands of
// suburb links does not flood the job.
func (a *Adapter) citiesFromHomepage(ctx context.Context) ([]models.City, error) {
	doc, err := a.fetcher.Fetch(ctx, a.baseURL)
	if err != nil {
		a.logger.Warn().
			Str("domain", a.domainName).
			Err(err).
			Msg("Failed to fetch homepage for city discovery")
		return nil, err
	}

	for _, selector := range homepageCitySelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}

		var cities []models.City
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if len(cities) >= a.cityLimit {
				return false
			}

			var name, href string
			if goquery.NodeName(s) == "option" {
				name = strings.TrimSpace(s.Text())
				lower := strings.ToLower(name)
				if name == "" || lower == "all" || lower == "select" || lower == "choose" {
					return true
				}
				href = "/location/" + citySlug(name)
			} else {
				href, _ = s.Attr("href")
				name = strings.TrimSpace(s.Text())
			}

			if name == "" || !strings.Contains(href, "/location/") {
				return true
			}

			url := a.absoluteURL(href)
			if url == "" {
				return true
			}

			cities = append(cities, models.City{
				Name:   name,
				URL:    url,
				Domain: a.domainName,
			})
			return true
		})

		// Stop at the first selector that finds cities.
		if len(cities) > 0 {
			return cities, nil
		}
	}

	return nil, nil
}

// parseCityLabel extracts the city name and optional business count
// from index anchor text like "Karachi 68,340".
func parseCityLabel(text string) (string, int, bool) {
	m := cityLabelPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}

	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", 0, false
	}

	count := 0
	if m[2] != "" {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", "")); err == nil {
			count = n
		}
	}

	return name, count, true
}
