package registry

import (
	"strings"
)

// CatalogSite is one supported directory site
type CatalogSite struct {
	Domain  string `json:"domain"`
	Country string `json:"country"`
	Region  string `json:"region"`
}

// CanonicalDomain reduces a raw domain or URL to the form used for all
// domain comparisons: scheme and leading www. stripped, path dropped,
// lowercased. Hosts on the legacy yellowpages. prefix map to their
// yello. successor so both spellings count as the same site.
func CanonicalDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if strings.HasPrefix(s, "yellowpages.") {
		s = "yello." + strings.TrimPrefix(s, "yellowpages.")
	}
	return s
}

// SameDomain reports whether two raw domain strings refer to the same
// site under canonicalization.
func SameDomain(a, b string) bool {
	return CanonicalDomain(a) == CanonicalDomain(b)
}

// DefaultCatalog returns the built-in list of supported directory
// sites. The network shares one HTML schema, so every site here works
// with the standard adapter.
func DefaultCatalog() []CatalogSite {
	return []CatalogSite{
		// Asia
		{Domain: "https://armeniayp.com", Country: "Armenia", Region: "Asia"},
		{Domain: "https://azerbaijanyp.com", Country: "Azerbaijan", Region: "Asia"},
		{Domain: "https://bangladeshyp.com", Country: "Bangladesh", Region: "Asia"},
		{Domain: "https://bruneiyp.com", Country: "Brunei", Region: "Asia"},
		{Domain: "https://cambodiayp.com", Country: "Cambodia", Region: "Asia"},
		{Domain: "https://chinayello.com", Country: "China", Region: "Asia"},
		{Domain: "https://georgiayp.com", Country: "Georgia", Region: "Asia"},
		{Domain: "https://yelo.hk", Country: "Hong Kong", Region: "Asia"},
		{Domain: "https://indiayp.com", Country: "India", Region: "Asia"},
		{Domain: "https://indonesiayp.com", Country: "Indonesia", Region: "Asia"},
		{Domain: "https://japanyp.com", Country: "Japan", Region: "Asia"},
		{Domain: "https://kazakhstanyp.com", Country: "Kazakhstan", Region: "Asia"},
		{Domain: "https://kyrgyzstanyp.com", Country: "Kyrgyzstan", Region: "Asia"},
		{Domain: "https://laosyp.com", Country: "Laos", Region: "Asia"},
		{Domain: "https://malaysiayp.com", Country: "Malaysia", Region: "Asia"},
		{Domain: "https://maldivesyp.com", Country: "Maldives", Region: "Asia"},
		{Domain: "https://mongoliayp.com", Country: "Mongolia", Region: "Asia"},
		{Domain: "https://myanmaryp.com", Country: "Myanmar", Region: "Asia"},
		{Domain: "https://nepalyp.com", Country: "Nepal", Region: "Asia"},
		{Domain: "https://businesslist.pk", Country: "Pakistan", Region: "Asia"},
		{Domain: "https://philippinesyp.com", Country: "Philippines", Region: "Asia"},
		{Domain: "https://singaporeyp.com", Country: "Singapore", Region: "Asia"},
		{Domain: "https://southkoreayp.com", Country: "South Korea", Region: "Asia"},
		{Domain: "https://srilankayp.com", Country: "Sri Lanka", Region: "Asia"},
		{Domain: "https://taiwanyp.com", Country: "Taiwan", Region: "Asia"},
		{Domain: "https://tajikistanyp.com", Country: "Tajikistan", Region: "Asia"},
		{Domain: "https://thailandyp.com", Country: "Thailand", Region: "Asia"},
		{Domain: "https://turkmenistanyp.com", Country: "Turkmenistan", Region: "Asia"},
		{Domain: "https://uzbekistanyp.com", Country: "Uzbekistan", Region: "Asia"},
		{Domain: "https://vietnamyp.com", Country: "Vietnam", Region: "Asia"},

		// Middle East
		{Domain: "https://www.yello.ae", Country: "UAE", Region: "Middle East"},
		{Domain: "https://www.yello.sa", Country: "Saudi Arabia", Region: "Middle East"},
		{Domain: "https://www.yello.qa", Country: "Qatar", Region: "Middle East"},
		{Domain: "https://www.yello.om", Country: "Oman", Region: "Middle East"},
		{Domain: "https://www.yello.kw", Country: "Kuwait", Region: "Middle East"},
		{Domain: "https://www.yello.bh", Country: "Bahrain", Region: "Middle East"},
		{Domain: "https://bahrainyellow.com", Country: "Bahrain", Region: "Middle East"},
		{Domain: "https://iraqyp.com", Country: "Iraq", Region: "Middle East"},
		{Domain: "https://jordanyp.com", Country: "Jordan", Region: "Middle East"},
		{Domain: "https://lebanonyp.com", Country: "Lebanon", Region: "Middle East"},

		// Africa
		{Domain: "https://algeriayp.com", Country: "Algeria", Region: "Africa"},
		{Domain: "https://angolayp.com", Country: "Angola", Region: "Africa"},
		{Domain: "https://egyptyp.com", Country: "Egypt", Region: "Africa"},
		{Domain: "https://ethiopiayp.com", Country: "Ethiopia", Region: "Africa"},
		{Domain: "https://ghanayp.com", Country: "Ghana", Region: "Africa"},
		{Domain: "https://kenyayp.com", Country: "Kenya", Region: "Africa"},
		{Domain: "https://libyayp.com", Country: "Libya", Region: "Africa"},
		{Domain: "https://moroccoyp.com", Country: "Morocco", Region: "Africa"},
		{Domain: "https://www.businesslist.com.ng/", Country: "Nigeria", Region: "Africa"},
		{Domain: "https://southafricayp.com", Country: "South Africa", Region: "Africa"},
		{Domain: "https://sudanyp.com", Country: "Sudan", Region: "Africa"},
		{Domain: "https://tunisiayp.com", Country: "Tunisia", Region: "Africa"},
		{Domain: "https://ugandayp.com", Country: "Uganda", Region: "Africa"},
	}
}
