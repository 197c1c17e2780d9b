package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique scrape job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewExportJobID generates a unique export job ID with the "export_" prefix
// Format: export_<uuid>
func NewExportJobID() string {
	return "export_" + uuid.New().String()
}

// NewBusinessID generates a unique business record ID with the "biz_" prefix
// Format: biz_<uuid>
func NewBusinessID() string {
	return "biz_" + uuid.New().String()
}

// NewProgressID generates a unique progress record ID with the "prog_" prefix
// Format: prog_<uuid>
func NewProgressID() string {
	return "prog_" + uuid.New().String()
}

// NewExportLogID generates a unique export log entry ID with the "explog_" prefix
// Format: explog_<uuid>
func NewExportLogID() string {
	return "explog_" + uuid.New().String()
}
