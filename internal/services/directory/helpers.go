// -----------------------------------------------------------------------
// Parse Helpers - Selector cascades and label walks for profile pages
// -----------------------------------------------------------------------

package directory

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// firstText tries selectors in priority order and returns trimmed text
// from the first one that matches anything.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// labeledText walks the label/value pairs the profile pages use:
// a div.label holding the field name followed by a sibling div.text
// holding the value.
func labeledText(doc *goquery.Document, label string) string {
	var value string
	doc.Find("div.label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != label {
			return true
		}
		value = strings.TrimSpace(s.NextAllFiltered("div.text").First().Text())
		return false
	})
	return value
}

// telLink returns the text of a tel: link under the given label, falling
// back to the first tel: link anywhere on the page.
func telLink(doc *goquery.Document, label string) string {
	var value string
	doc.Find("div.label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != label {
			return true
		}
		link := s.NextAllFiltered("div.text").First().Find(`a[href^="tel:"]`).First()
		value = strings.TrimSpace(link.Text())
		return false
	})
	if value != "" {
		return value
	}
	return strings.TrimSpace(doc.Find(`a[href^="tel:"]`).First().Text())
}

// collapseWhitespace folds runs of whitespace (including newlines) into
// single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// citySlug converts a city name to the /location/ path segment the
// directory sites use.
func citySlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
