package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// JobListOptions - pagination for plain job listings
type JobListOptions struct {
	Status string
	Skip   int
	Limit  int
}

// JobSearchOptions - filtered job search with sorting
type JobSearchOptions struct {
	Domain    string // substring match against any job domain
	Status    string
	Region    string
	Country   string
	SortBy    string // created_at, name, status, businesses_scraped
	SortOrder string // asc or desc
	Skip      int
	Limit     int
}

// JobSearchResult - one page of search hits plus total count
type JobSearchResult struct {
	Jobs       []*models.ScrapeJob
	TotalCount int
	HasMore    bool
}

// JobStore - persistence for scrape jobs
type JobStore interface {
	Save(ctx context.Context, job *models.ScrapeJob) error
	Get(ctx context.Context, jobID string) (*models.ScrapeJob, error)

	// Update applies mutate to the stored job inside one store
	// transaction. Counter increments and status flips from different
	// goroutines must go through here so they cannot clobber each
	// other the way read-modify-Save does.
	Update(ctx context.Context, jobID string, mutate func(*models.ScrapeJob)) error

	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context, opts *JobListOptions) ([]*models.ScrapeJob, error)
	ListByStatuses(ctx context.Context, statuses ...models.JobStatus) ([]*models.ScrapeJob, error)
	ListSeeded(ctx context.Context) ([]*models.ScrapeJob, error)
	Search(ctx context.Context, opts *JobSearchOptions) (*JobSearchResult, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)

	// MarkRunningPaused flips every running job to paused with the
	// given reason. Used for crash recovery on startup; jobs are never
	// restarted automatically.
	MarkRunningPaused(ctx context.Context, reason models.PauseReason) (int, error)
}

// BusinessFilter - filters for business listings and counts
type BusinessFilter struct {
	Domain   string // exact canonical domain
	City     string // case-insensitive substring
	Category string // case-insensitive substring
	Search   string // case-insensitive substring over name/title/description
	DateFrom *time.Time
	DateTo   *time.Time
	Skip     int
	Limit    int
}

// BusinessStats - aggregate counts over stored businesses
type BusinessStats struct {
	TotalBusinesses  int      `json:"total_businesses"`
	UniqueCities     []string `json:"unique_cities"`
	UniqueCategories []string `json:"unique_categories"`
	UniqueDomains    []string `json:"unique_domains"`
}

// CityStat - per-city business totals for one domain
type CityStat struct {
	City     string `json:"city"`
	Total    int    `json:"total"`
	Exported int    `json:"exported"`
}

// BusinessStore - persistence for scraped business profiles
type BusinessStore interface {
	// Insert fails when a record with the same (domain, page_url)
	// already exists; the existing record is never overwritten.
	Insert(ctx context.Context, b *models.Business) error
	Exists(ctx context.Context, domain, pageURL string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Business, error)
	List(ctx context.Context, filter *BusinessFilter) ([]*models.Business, error)
	// ListForExport returns matches oldest first so a long-running export
	// can page through them with stable skip/limit offsets while new
	// records keep appending at the end.
	ListForExport(ctx context.Context, filter *BusinessFilter) ([]*models.Business, error)
	Count(ctx context.Context, filter *BusinessFilter) (int, error)
	Stats(ctx context.Context) (*BusinessStats, error)
	CountByCity(ctx context.Context) (map[string]int, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
	CityStats(ctx context.Context, domain string) ([]CityStat, error)
	MarkExported(ctx context.Context, filter *BusinessFilter, mode string, at time.Time) (int, error)
	CountScrapedSince(ctx context.Context, since time.Time) (int, error)
	LastScrapedAt(ctx context.Context) (*time.Time, error)
	CountDomainsWithData(ctx context.Context) (int, error)
}

// ProgressStore - persistence for per-page scrape checkpoints
type ProgressStore interface {
	Insert(ctx context.Context, rec *models.ProgressRecord) error
	LatestForJob(ctx context.Context, jobID string) (*models.ProgressRecord, error)
	ListForJob(ctx context.Context, jobID string, limit int) ([]*models.ProgressRecord, error)
	DeleteForJob(ctx context.Context, jobID string) error
}

// ExportStore - persistence for export jobs and their run logs
type ExportStore interface {
	SaveJob(ctx context.Context, job *models.ExportJob) error
	GetJob(ctx context.Context, jobID string) (*models.ExportJob, error)
	// UpdateJob applies mutate inside a single transaction so runner
	// counter flushes and control-plane status writes never overwrite
	// each other.
	UpdateJob(ctx context.Context, jobID string, mutate func(*models.ExportJob)) error
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, skip, limit int) ([]*models.ExportJob, error)

	AppendLog(ctx context.Context, log *models.ExportLog) error
	ListLogs(ctx context.Context, jobID string, skip, limit int) ([]*models.ExportLog, error)
	DeleteLogs(ctx context.Context, jobID string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	Jobs() JobStore
	Businesses() BusinessStore
	Progress() ProgressStore
	Exports() ExportStore
	RunGC(discardRatio float64) error
	Close() error
}
