package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// TestConnectionResult reports a probe of an export endpoint
type TestConnectionResult struct {
	Reachable  bool   `json:"reachable"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// ExportService streams stored businesses to external HTTP endpoints,
// one JSON record per request. Each running export is driven by a
// single goroutine that checks a stop flag between records.
type ExportService interface {
	CreateExportJob(ctx context.Context, req *models.CreateExportRequest) (*models.ExportJob, error)

	// StartExport moves a pending job to running and spawns its
	// runner. Starting from any other status fails.
	StartExport(ctx context.Context, jobID string) error

	// StopExport flags the runner to stop after the in-flight record
	// and marks the job cancelled.
	StopExport(ctx context.Context, jobID string) error

	// DeleteExport stops any live runner and removes the job together
	// with its run logs.
	DeleteExport(ctx context.Context, jobID string) error

	GetExport(ctx context.Context, jobID string) (*models.ExportJob, error)
	ListExports(ctx context.Context, skip, limit int) ([]*models.ExportJob, error)
	GetLogs(ctx context.Context, jobID string, skip, limit int) ([]*models.ExportLog, error)

	// TestConnection probes the endpoint with an authenticated GET.
	TestConnection(ctx context.Context, endpointURL, authToken string) (*TestConnectionResult, error)

	// WaitForExport blocks until the job's runner exits. Returns
	// immediately when no runner is live.
	WaitForExport(ctx context.Context, jobID string) error

	// Shutdown stops all runners and waits for them to exit.
	Shutdown(ctx context.Context) error
}
