package models

import (
	"fmt"
	"time"
)

// Coordinates holds a geographic point extracted from a profile page
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Business is a scraped business profile. Records are unique on
// (Domain, PageURL); the badgerhold key is the composite BusinessKey so
// a second insert of the same profile fails instead of overwriting.
type Business struct {
	ID string `json:"id" badgerhold:"index"`

	Title    string       `json:"title,omitempty"`
	Name     string       `json:"name,omitempty"`
	Country  string       `json:"country,omitempty"`
	City     string       `json:"city,omitempty" badgerhold:"index"`
	Category string       `json:"category,omitempty" badgerhold:"index"`
	Coords   *Coordinates `json:"coordinates,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	Fax     string `json:"fax,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`

	WorkingHours map[string]string `json:"working_hours,omitempty"`
	Description  string            `json:"description,omitempty"`
	Tags         []string          `json:"tags,omitempty"`

	ReviewsCount    int     `json:"reviews_count,omitempty"`
	Rating          float64 `json:"rating,omitempty"`
	EstablishedYear int     `json:"established_year,omitempty"`
	Employees       string  `json:"employees,omitempty"`

	PageURL string `json:"page_url"`
	Domain  string `json:"domain" badgerhold:"index"`
	JobID   string `json:"job_id,omitempty" badgerhold:"index"`

	ScrapedAt  time.Time  `json:"scraped_at"`
	ExportedAt *time.Time `json:"exported_at,omitempty"`
	ExportMode string     `json:"export_mode,omitempty"`
}

// Key returns the composite storage key enforcing (domain, page_url)
// uniqueness.
func (b *Business) Key() string {
	return BusinessKey(b.Domain, b.PageURL)
}

// BusinessKey builds the composite storage key for a business record.
func BusinessKey(domain, pageURL string) string {
	return fmt.Sprintf("%s|%s", domain, pageURL)
}
