package common

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL converts a scraped href into an absolute URL against the page
// it was found on. Directory sites mix absolute, root-relative and
// page-relative links; net/url handles all three.
func ResolveURL(pageURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse page URL %s: %w", pageURL, err)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("failed to parse href %s: %w", href, err)
	}

	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}

// PageURL appends a page number to a city listing URL. Page 1 is the bare
// city URL; later pages use the /{n} path convention the directory sites
// share.
func PageURL(cityURL string, page int) string {
	if page <= 1 {
		return cityURL
	}
	return fmt.Sprintf("%s/%d", strings.TrimRight(cityURL, "/"), page)
}

// JoinPath safely joins path segments, preventing duplicate slashes
func JoinPath(segments ...string) string {
	result := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if result == "" {
			result = seg
		} else if result[len(result)-1] == '/' {
			if seg[0] == '/' {
				result += seg[1:]
			} else {
				result += seg
			}
		} else {
			if seg[0] == '/' {
				result += seg
			} else {
				result += "/" + seg
			}
		}
	}
	return result
}
