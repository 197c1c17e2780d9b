package seeding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalogJSON(t *testing.T) {
	path := writeCatalogFile(t, "countries.json", `{
  "countries": [
    {
      "region": "Middle East",
      "countries": [
        {"name": "United Arab Emirates", "domain": "yello.ae", "url": "https://www.yello.ae", "latitude": 23.424076, "longitude": 53.847818},
        {"name": "Qatar", "domain": "qataryello.com", "url": "https://www.qataryello.com", "latitude": 25.354826, "longitude": 51.183884}
      ]
    },
    {
      "region": "Africa",
      "countries": [
        {"name": "Kenya", "domain": "businesslist.co.ke", "url": "https://www.businesslist.co.ke", "latitude": -0.023559, "longitude": 37.906193}
      ]
    }
  ]
}`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Countries, 2)
	assert.Equal(t, "Middle East", catalog.Countries[0].Region)
	require.Len(t, catalog.Countries[0].Countries, 2)
	assert.Equal(t, "yello.ae", catalog.Countries[0].Countries[0].Domain)
	assert.InDelta(t, 23.424076, catalog.Countries[0].Countries[0].Latitude, 0.0001)
	assert.Equal(t, 3, catalog.TotalCountries())
}

func TestLoadCatalogYAML(t *testing.T) {
	path := writeCatalogFile(t, "countries.yaml", `countries:
  - region: Asia
    countries:
      - name: Pakistan
        domain: businesslist.pk
        url: https://www.businesslist.pk
        latitude: 30.375321
        longitude: 69.345116
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Countries, 1)
	assert.Equal(t, "Asia", catalog.Countries[0].Region)
	require.Len(t, catalog.Countries[0].Countries, 1)
	assert.Equal(t, "businesslist.pk", catalog.Countries[0].Countries[0].Domain)
	assert.InDelta(t, 30.375321, catalog.Countries[0].Countries[0].Latitude, 0.0001)
}

func TestLoadCatalogUnsupportedFormat(t *testing.T) {
	path := writeCatalogFile(t, "countries.txt", "not a catalog")

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported catalog format")
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadCatalogMalformedJSON(t *testing.T) {
	path := writeCatalogFile(t, "countries.json", `{"countries": [`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse catalog JSON")
}

func TestLoadCatalogNoRegions(t *testing.T) {
	path := writeCatalogFile(t, "countries.json", `{"countries": []}`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no regions")
}
