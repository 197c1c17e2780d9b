package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilePage = `<!DOCTYPE html>
<html>
<head><title>Acme Trading LLC - Dubai</title></head>
<body>
<h1>Acme Trading LLC - Dubai</h1>
<ul itemtype="https://schema.org/BreadcrumbList">
	<li><span itemprop="name">United Arab Emirates</span></li>
	<li><span itemprop="name">Dubai</span></li>
	<li><span itemprop="name">Trading Companies</span></li>
</ul>
<div class="company_header"><h3>Acme Trading LLC</h3></div>
<div class="info">
	<div class="label">Phone</div>
	<div class="text"><a href="tel:+97143334444">+971 4 333 4444</a></div>
	<div class="label">Mobile phone</div>
	<div class="text"><a href="tel:+971501234567">+971 50 123 4567</a></div>
	<div class="label">Fax</div>
	<div class="text">+971 4 333 4445</div>
	<div class="label">Established</div>
	<div class="text">Established in 1998</div>
	<div class="label">Employees</div>
	<div class="text">11-50</div>
	<div class="text location"><div id="company_address">Office 301, Al Maktoum Road,
		Deira, Dubai</div></div>
</div>
<div class="location_links"><a href="https://maps.google.com/maps?daddr=25.2655,55.3089&amp;saddr=">Get Directions</a></div>
<div class="weblinks"><a href="/redir/12345">www.acmetrading.ae</a></div>
<div id="open_hours"><ul>
	<li>Monday: 09:00 - 18:00</li>
	<li>Friday: Closed</li>
</ul></div>
<div class="text desc">Leading import and export company in Dubai.</div>
<div class="tags">
	<a href="/category/trading">Trading</a>
	<a href="/category/import-export">Import &amp; Export</a>
</div>
<div class="company_reviews"><span class="rate">4.5</span> based on 12 Reviews</div>
</body>
</html>`

func TestDetailsExtractsFullProfile(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/company/acme-trading": profilePage,
	})

	a := newTestAdapter(t, server.URL)
	pageURL := server.URL + "/company/acme-trading"

	b, err := a.Details(context.Background(), pageURL)
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, "Acme Trading LLC - Dubai", b.Title)
	assert.Equal(t, "Acme Trading LLC", b.Name)
	assert.Equal(t, "United Arab Emirates", b.Country)
	assert.Equal(t, "Dubai", b.City)
	assert.Equal(t, "Trading Companies", b.Category)

	require.NotNil(t, b.Coords)
	assert.InDelta(t, 25.2655, b.Coords.Lat, 0.0001)
	assert.InDelta(t, 55.3089, b.Coords.Lng, 0.0001)

	assert.Equal(t, "+971 4 333 4444", b.Phone)
	assert.Equal(t, "+971 50 123 4567", b.Mobile)
	assert.Equal(t, "+971 4 333 4445", b.Fax)
	assert.Equal(t, "www.acmetrading.ae", b.Website)

	// Newlines inside the address element collapse to single spaces.
	assert.Equal(t, "Office 301, Al Maktoum Road, Deira, Dubai", b.Address)

	require.NotNil(t, b.WorkingHours)
	assert.Equal(t, "09:00 - 18:00", b.WorkingHours["Monday"])
	assert.Equal(t, "Closed", b.WorkingHours["Friday"])

	assert.Equal(t, "Leading import and export company in Dubai.", b.Description)
	assert.Equal(t, []string{"Trading", "Import & Export"}, b.Tags)

	assert.Equal(t, 12, b.ReviewsCount)
	assert.InDelta(t, 4.5, b.Rating, 0.0001)
	assert.Equal(t, 1998, b.EstablishedYear)
	assert.Equal(t, "11-50", b.Employees)

	assert.Equal(t, pageURL, b.PageURL)

	// Identity and scrape bookkeeping belong to the caller.
	assert.Empty(t, b.ID)
	assert.True(t, b.ScrapedAt.IsZero())
}

func TestDetailsSparsePage(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/company/lonely-shop": `<html><body><h1>Lonely Shop</h1></body></html>`,
	})

	a := newTestAdapter(t, server.URL)
	b, err := a.Details(context.Background(), server.URL+"/company/lonely-shop")
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, "Lonely Shop", b.Title)
	assert.Equal(t, "Lonely Shop", b.Name)
	assert.Empty(t, b.Country)
	assert.Empty(t, b.Phone)
	assert.Empty(t, b.Address)
	assert.Nil(t, b.Coords)
	assert.Nil(t, b.WorkingHours)
	assert.Nil(t, b.Tags)
	assert.Zero(t, b.ReviewsCount)
	assert.Zero(t, b.Rating)
}

func TestDetailsNameFallsBackToTitle(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/company/bobs-bakery": `<html><body><h1>Bobs Bakery - Accra Business Directory</h1></body></html>`,
	})

	a := newTestAdapter(t, server.URL)
	b, err := a.Details(context.Background(), server.URL+"/company/bobs-bakery")
	require.NoError(t, err)

	assert.Equal(t, "Bobs Bakery", b.Name)
}

func TestDetailsAddressSkipsMapChrome(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/company/corner-store": `<html><body>
			<h1>Corner Store</h1>
			<div class="location_links">View Map</div>
			<div>12 Baker Street</div>
		</body></html>`,
	})

	a := newTestAdapter(t, server.URL)
	b, err := a.Details(context.Background(), server.URL+"/company/corner-store")
	require.NoError(t, err)

	assert.Equal(t, "12 Baker Street", b.Address)
}

func TestDetailsFetchErrorPropagates(t *testing.T) {
	server := newTestServer(t, map[string]string{})

	a := newTestAdapter(t, server.URL)
	b, err := a.Details(context.Background(), server.URL+"/company/missing")
	require.Error(t, err)
	assert.Nil(t, b)
}
