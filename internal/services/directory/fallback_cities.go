// -----------------------------------------------------------------------
// Fallback Cities - Static city lists used when discovery fails
// -----------------------------------------------------------------------

package directory

import (
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/registry"
)

// fallbackCityNames maps canonical domains to the major cities of the
// country they cover. Used only when neither the browse index nor the
// homepage yields location links.
var fallbackCityNames = map[string][]string{
	"yello.ae": {
		"Dubai", "Abu Dhabi", "Sharjah", "Ajman", "Ras Al Khaimah", "Fujairah", "Umm Al Quwain",
	},
	"yelu.in": {
		"Mumbai", "Delhi", "Bangalore", "Chennai", "Kolkata", "Hyderabad", "Pune", "Ahmedabad",
	},
	"ghanayellow.com": {
		"Accra", "Kumasi", "Tamale", "Cape Coast", "Sekondi-Takoradi", "Sunyani", "Ho",
	},
	// Full list from the businesslist.pk city index.
	"businesslist.pk": {
		"Karachi", "Lahore", "Faisalabad", "Islamabad", "Rawalpindi", "Gujranwala", "Sialkot",
		"Multan", "Peshawar", "Hyderabad", "Quetta", "Bahawalpur", "Gujrat", "Abbottabad",
		"Rawalpini", "Sargodha", "Kasur", "Sukkur", "Sahiwal", "Larkana", "Jhelum", "Daska",
		"Okara", "Wazirabad", "Jhang", "Mardan", "Chiniot", "Rahim Yar Khan", "Chakwal",
		"Hafizabad", "Mandi Bahauddin", "Taxila", "Swabi", "Vehari", "Wah Cantonment",
		"Nowshera", "Nawabshah", "Khairpur", "Burewala", "Kamoke", "Kohat", "Dera Ghazi Khan",
		"Muridke", "Toba Tek Singh", "Dadu", "Chishtian", "Timergara", "Kamalia", "Khanewal",
		"Mingora", "Mirpur Khas", "Gojra", "Khushab", "Pakpattan", "Bahawalnagar", "Shekhupura",
		"Sadiqabad", "Dera Ismail Khan", "Muzaffargarh", "Ahmadpur East", "Chakdara", "Chaman",
		"Jaranwala", "Khanpur", "Kot Adu", "Shikarpur", "Tando Allahyar", "Jacobabad", "Khuzdar",
	},
	"businesslist.com.ng": {
		"Lagos", "Abuja", "Kano", "Ibadan", "Port Harcourt", "Benin City", "Maiduguri",
	},
	"businesslist.co.ke": {
		"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret", "Thika", "Malindi",
	},
	"yellosa.co.za": {
		"Johannesburg", "Cape Town", "Durban", "Pretoria", "Port Elizabeth", "Bloemfontein",
	},
	"yelu.uk": {
		"London", "Manchester", "Birmingham", "Liverpool", "Leeds", "Sheffield", "Bristol",
	},
	"yelu.sg": {
		"Central Singapore", "North Singapore", "South Singapore", "East Singapore", "West Singapore",
	},
	"australiayp.com": {
		"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide", "Canberra", "Darwin",
	},
}

// defaultFallbackCities covers domains with no curated list.
var defaultFallbackCities = []string{"Capital", "Main City", "Central"}

// fallbackCities synthesizes location URLs from the static list for
// this domain. Business counts are unknown here and stay zero.
func (a *Adapter) fallbackCities() []models.City {
	names, ok := fallbackCityNames[registry.CanonicalDomain(a.baseURL)]
	if !ok {
		names = defaultFallbackCities
	}

	cities := make([]models.City, 0, len(names))
	for _, name := range names {
		cities = append(cities, models.City{
			Name:   name,
			URL:    a.baseURL + "/location/" + citySlug(name),
			Domain: a.domainName,
		})
	}

	a.logger.Info().
		Str("domain", a.domainName).
		Int("cities", len(cities)).
		Msg("Using fallback city list")

	return cities
}
