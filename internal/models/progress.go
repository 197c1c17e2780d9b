package models

import "time"

// ProgressRecord is the per-page checkpoint written after every listing
// page completes. It is inserted before the owning job's cursor is
// updated, so on resume the newest record may be ahead of the job.
type ProgressRecord struct {
	ID    string `json:"id" badgerhold:"key"`
	JobID string `json:"job_id" badgerhold:"index"`

	Domain string `json:"domain"`
	City   string `json:"city"`
	Page   int    `json:"page"`

	// BusinessesFound counts every listing URL on the page,
	// NewBusinesses the subset not yet stored, BusinessesScraped the
	// profiles actually saved for the page.
	BusinessesFound   int `json:"businesses_found"`
	NewBusinesses     int `json:"new_businesses"`
	BusinessesScraped int `json:"businesses_scraped"`

	Timestamp time.Time `json:"timestamp"`
}
