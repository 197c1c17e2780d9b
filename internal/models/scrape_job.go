package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a scrape job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PauseReason records why a job entered the paused state
type PauseReason string

const (
	PauseReasonNone          PauseReason = ""
	PauseReasonManual        PauseReason = "manual"
	PauseReasonNetworkError  PauseReason = "network_error"
	PauseReasonServerRestart PauseReason = "server_restart"
)

// ScrapeJob represents a directory scraping job with its resume cursor.
// BusinessesScraped counts successful unique saves only; duplicate hits
// never increment it. TotalBusinesses counts listing URLs before dedup.
type ScrapeJob struct {
	ID      string   `json:"id" badgerhold:"key"`
	Name    string   `json:"name"`
	Domains []string `json:"domains"`

	Status JobStatus `json:"status" badgerhold:"index"`

	// Scrape settings, range-validated at the control surface
	ConcurrentRequests int     `json:"concurrent_requests" validate:"min=1,max=20"`
	RequestDelay       float64 `json:"request_delay" validate:"min=0.1,max=10"`

	// Counters
	TotalCities       int `json:"total_cities"`
	CitiesCompleted   int `json:"cities_completed"`
	TotalBusinesses   int `json:"total_businesses"`
	BusinessesScraped int `json:"businesses_scraped"`

	// Resume cursor. CurrentPage is the next page to visit, not the
	// last page visited.
	CurrentDomain         string     `json:"current_domain"`
	CurrentCity           string     `json:"current_city"`
	CurrentPage           int        `json:"current_page"`
	LastProgressTimestamp *time.Time `json:"last_progress_timestamp,omitempty"`

	PauseReason PauseReason `json:"pause_reason,omitempty"`
	Errors      []string    `json:"errors"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	ResumedAt   *time.Time `json:"resumed_at,omitempty"`

	// Seeding metadata
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	BaseURL   string  `json:"base_url,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	IsSeeded  bool    `json:"is_seeded"`
}

// IsActive reports whether the job holds its domains for admission
// purposes. Paused jobs keep their hold.
func (j *ScrapeJob) IsActive() bool {
	switch j.Status {
	case JobStatusPending, JobStatusRunning, JobStatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether the job has finished and released its domains.
func (j *ScrapeJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanStart reports whether a plain start is legal from the current
// state. Terminal jobs need a force start.
func (j *ScrapeJob) CanStart() bool {
	switch j.Status {
	case JobStatusPending, JobStatusPaused:
		return true
	}
	return false
}

// ProgressText renders the "cities_completed/total_cities" summary used
// in status listings.
func (j *ScrapeJob) ProgressText() string {
	return fmt.Sprintf("%d/%d", j.CitiesCompleted, j.TotalCities)
}

// ToJSON serializes the job to JSON
func (j *ScrapeJob) ToJSON() (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ScrapeJobFromJSON deserializes a job from JSON
func ScrapeJobFromJSON(data string) (*ScrapeJob, error) {
	var job ScrapeJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

