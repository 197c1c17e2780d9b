package seeding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogCountry is one directory site in the seeding catalog.
type CatalogCountry struct {
	Name      string  `json:"name" yaml:"name"`
	Domain    string  `json:"domain" yaml:"domain"`
	URL       string  `json:"url" yaml:"url"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// CatalogRegion groups catalog countries by geographic region.
type CatalogRegion struct {
	Region    string           `json:"region" yaml:"region"`
	Countries []CatalogCountry `json:"countries" yaml:"countries"`
}

// Catalog is the seeding source: every country directory the network
// operates, grouped by region.
type Catalog struct {
	Countries []CatalogRegion `json:"countries" yaml:"countries"`
}

// TotalCountries counts catalog entries across all regions.
func (c *Catalog) TotalCountries() int {
	total := 0
	for _, region := range c.Countries {
		total += len(region.Countries)
	}
	return total
}

// LoadCatalog reads a catalog file. The format follows the extension:
// .json, .yaml or .yml.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", filepath.Ext(path))
	}

	if len(catalog.Countries) == 0 {
		return nil, fmt.Errorf("catalog %s contains no regions", path)
	}
	return &catalog, nil
}
