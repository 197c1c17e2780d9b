package models

// CreateJobRequest is the payload for creating a scrape job. Exactly
// one domain per job; the settings fall back to configured defaults
// when omitted.
type CreateJobRequest struct {
	Name               string   `json:"name" validate:"required"`
	Domains            []string `json:"domains" validate:"required,len=1,dive,required"`
	ConcurrentRequests int      `json:"concurrent_requests" validate:"omitempty,min=1,max=20"`
	RequestDelay       float64  `json:"request_delay" validate:"omitempty,min=0.1,max=10"`
}

// JobSettingsUpdate changes the politeness settings of an existing
// job. Nil fields are left untouched; at least one must be set.
type JobSettingsUpdate struct {
	ConcurrentRequests *int     `json:"concurrent_requests,omitempty" validate:"omitempty,min=1,max=20"`
	RequestDelay       *float64 `json:"request_delay,omitempty" validate:"omitempty,min=0.1,max=10"`
}

// IsEmpty reports whether the update carries no changes.
func (u *JobSettingsUpdate) IsEmpty() bool {
	return u.ConcurrentRequests == nil && u.RequestDelay == nil
}

// CreateExportRequest is the payload for creating an export job.
// RequestMethod defaults to POST and BatchSize to 100 when omitted.
type CreateExportRequest struct {
	Name           string        `json:"name" validate:"required"`
	EndpointURL    string        `json:"endpoint_url" validate:"required,url"`
	AuthToken      string        `json:"auth_token,omitempty"`
	RequestMethod  string        `json:"request_method,omitempty" validate:"omitempty,oneof=POST PUT"`
	BatchSize      int           `json:"batch_size,omitempty" validate:"omitempty,min=1,max=1000"`
	RateLimitDelay float64       `json:"rate_limit_delay,omitempty" validate:"min=0,max=60"`
	Fields         []string      `json:"fields,omitempty"`
	Filters        ExportFilters `json:"filters"`
	AutoStart      bool          `json:"auto_start"`
}
