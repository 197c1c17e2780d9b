package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// RecentJob is the compact job view used in status summaries
type RecentJob struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Status            models.JobStatus   `json:"status"`
	Progress          string             `json:"progress"`
	BusinessesScraped int                `json:"businesses_scraped"`
	CreatedAt         time.Time          `json:"created_at"`
	PauseReason       models.PauseReason `json:"pause_reason,omitempty"`
}

// StatusSummary aggregates job states for the operations view
type StatusSummary struct {
	StatusCounts       map[models.JobStatus]int `json:"status_counts"`
	NetworkPausedCount int                      `json:"network_paused_count"`
	RecentJobs         []RecentJob              `json:"recent_jobs"`
	TotalJobs          int                      `json:"total_jobs"`
}

// DashboardStats is the headline figures for the dashboard
type DashboardStats struct {
	TotalJobs         int        `json:"total_jobs"`
	ActiveJobs        int        `json:"active_jobs"`
	TotalBusinesses   int        `json:"total_businesses"`
	BusinessesToday   int        `json:"businesses_today"`
	DomainsConfigured int        `json:"domains_configured"`
	LastScrape        *time.Time `json:"last_scrape,omitempty"`
}

// ScraperService is the scheduler control surface. Jobs run as
// in-process supervisors; all authoritative state lives in the store
// so the process can restart without losing resume points.
type ScraperService interface {
	CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.ScrapeJob, error)
	StartJob(ctx context.Context, jobID string) error

	// ForceStartJob stops any in-process supervisor for the job, waits
	// for it to exit, then starts fresh from the persisted cursor.
	ForceStartJob(ctx context.Context, jobID string) error

	PauseJob(ctx context.Context, jobID string) error
	ResumeJob(ctx context.Context, jobID string) error
	CancelJob(ctx context.Context, jobID string) error

	// DeleteJob removes the job and its progress records. Refused
	// while a supervisor is running.
	DeleteJob(ctx context.Context, jobID string) error

	JobStatus(ctx context.Context, jobID string) (*models.ScrapeJob, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.ScrapeJob, error)
	SearchJobs(ctx context.Context, opts *JobSearchOptions) (*JobSearchResult, error)
	UpdateSettings(ctx context.Context, jobID string, update *models.JobSettingsUpdate) (*models.ScrapeJob, error)

	PauseAll(ctx context.Context) (int, error)
	ResumeAll(ctx context.Context) (int, error)
	ResumeNetworkPaused(ctx context.Context) (int, error)
	RestartZeroExtraction(ctx context.Context) (int, error)

	StatusSummary(ctx context.Context) (*StatusSummary, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)

	// ActiveJobIDs lists jobs with an in-process supervisor.
	ActiveJobIDs() []string

	// WaitForJob blocks until no supervisor runs for the job.
	WaitForJob(ctx context.Context, jobID string) error

	// Shutdown pauses every running supervisor with reason
	// server_restart and waits for them to exit.
	Shutdown(ctx context.Context) error
}
