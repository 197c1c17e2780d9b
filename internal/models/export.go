package models

import "time"

// ExportStatus represents the lifecycle state of an export job
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
	ExportStatusCancelled ExportStatus = "cancelled"
)

// ExportFilters narrows the business records an export job streams.
// City and Category match case-insensitive substrings; the date range
// applies to ScrapedAt.
type ExportFilters struct {
	City     string     `json:"city,omitempty"`
	Category string     `json:"category,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}

// ExportJob pushes stored businesses one record at a time to an
// external HTTP endpoint.
type ExportJob struct {
	ID   string `json:"id" badgerhold:"key"`
	Name string `json:"name"`

	EndpointURL   string  `json:"endpoint_url" validate:"required,url"`
	AuthToken     string  `json:"auth_token,omitempty"`
	RequestMethod string  `json:"request_method" validate:"oneof=POST PUT"`
	BatchSize     int     `json:"batch_size" validate:"min=1,max=1000"`
	RateLimitDelay float64 `json:"rate_limit_delay" validate:"min=0,max=60"`

	// Fields projects the exported record; empty means the full record.
	Fields  []string      `json:"fields,omitempty"`
	Filters ExportFilters `json:"filters"`

	AutoStart bool `json:"auto_start"`

	Status ExportStatus `json:"status" badgerhold:"index"`

	TotalRecords    int    `json:"total_records"`
	ExportedRecords int    `json:"exported_records"`
	FailedRecords   int    `json:"failed_records"`
	ErrorMessage    string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExportLog is one progress or failure entry for an export job run.
type ExportLog struct {
	ID    string `json:"id" badgerhold:"key"`
	JobID string `json:"job_id" badgerhold:"index"`

	BatchNumber     int    `json:"batch_number"`
	RecordsCount    int    `json:"records_count"`
	Success         bool   `json:"success"`
	ResponseStatus  int    `json:"response_status,omitempty"`
	ResponseMessage string `json:"response_message,omitempty"`
	ErrorDetails    string `json:"error_details,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
