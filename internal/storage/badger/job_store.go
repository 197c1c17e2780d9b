package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStore implements the JobStore interface for Badger
type JobStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStore creates a new JobStore instance
func NewJobStore(db *BadgerDB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{
		db:     db,
		logger: logger,
	}
}

func (s *JobStore) Save(ctx context.Context, job *models.ScrapeJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// Update mutates a job inside a single BadgerHold transaction so that
// concurrent counter increments and status flips serialize at the
// record instead of overwriting whole documents.
func (s *JobStore) Update(ctx context.Context, jobID string, mutate func(*models.ScrapeJob)) error {
	found := false
	err := s.db.Store().UpdateMatching(&models.ScrapeJob{},
		badgerhold.Where(badgerhold.Key).Eq(jobID),
		func(record interface{}) error {
			job, ok := record.(*models.ScrapeJob)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			mutate(job)
			found = true
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s", interfaces.ErrJobNotFound, jobID)
	}
	return nil
}

func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.ScrapeJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: %s", interfaces.ErrJobNotFound, jobID)
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.ScrapeJob, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()

	if opts != nil {
		if opts.Status != "" {
			query = badgerhold.Where("Status").Eq(models.JobStatus(opts.Status)).SortBy("CreatedAt").Reverse()
		}
		if opts.Skip > 0 {
			query = query.Skip(opts.Skip)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var jobs []models.ScrapeJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.ScrapeJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStore) ListByStatuses(ctx context.Context, statuses ...models.JobStatus) ([]*models.ScrapeJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	in := make([]interface{}, len(statuses))
	for i, st := range statuses {
		in[i] = st
	}

	var jobs []models.ScrapeJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").In(in...).SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}

	result := make([]*models.ScrapeJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStore) ListSeeded(ctx context.Context) ([]*models.ScrapeJob, error) {
	var jobs []models.ScrapeJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsSeeded").Eq(true).SortBy("Region", "Country")); err != nil {
		return nil, fmt.Errorf("failed to list seeded jobs: %w", err)
	}

	result := make([]*models.ScrapeJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// Search filters jobs by exact status/region/country and a substring
// match on domains. The domain match runs in memory; BadgerHold has no
// substring operator and the job set stays small.
func (s *JobStore) Search(ctx context.Context, opts *interfaces.JobSearchOptions) (*interfaces.JobSearchResult, error) {
	query := badgerhold.Where("ID").Ne("")
	if opts.Status != "" {
		query = query.And("Status").Eq(models.JobStatus(opts.Status))
	}
	if opts.Region != "" {
		query = query.And("Region").Eq(opts.Region)
	}
	if opts.Country != "" {
		query = query.And("Country").Eq(opts.Country)
	}

	var jobs []models.ScrapeJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}

	matched := make([]*models.ScrapeJob, 0, len(jobs))
	needle := strings.ToLower(strings.TrimSpace(opts.Domain))
	for i := range jobs {
		if needle != "" && !jobMatchesDomain(&jobs[i], needle) {
			continue
		}
		matched = append(matched, &jobs[i])
	}

	sortJobs(matched, opts.SortBy, opts.SortOrder)

	total := len(matched)
	skip := opts.Skip
	if skip > total {
		skip = total
	}
	end := total
	if opts.Limit > 0 && skip+opts.Limit < total {
		end = skip + opts.Limit
	}

	return &interfaces.JobSearchResult{
		Jobs:       matched[skip:end],
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

func jobMatchesDomain(job *models.ScrapeJob, needle string) bool {
	for _, d := range job.Domains {
		if strings.Contains(strings.ToLower(d), needle) {
			return true
		}
	}
	return false
}

func sortJobs(jobs []*models.ScrapeJob, sortBy, sortOrder string) {
	desc := strings.EqualFold(sortOrder, "desc") || sortOrder == ""

	less := func(a, b *models.ScrapeJob) bool {
		switch sortBy {
		case "name":
			return a.Name < b.Name
		case "status":
			return a.Status < b.Status
		case "businesses_scraped":
			return a.BusinessesScraped < b.BusinessesScraped
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if desc {
			return less(jobs[j], jobs[i])
		}
		return less(jobs[i], jobs[j])
	})
}

func (s *JobStore) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ScrapeJob{}, nil)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *JobStore) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	statuses := []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusPaused,
		models.JobStatusCancelled,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	}

	counts := make(map[models.JobStatus]int, len(statuses))
	for _, st := range statuses {
		count, err := s.db.Store().Count(&models.ScrapeJob{}, badgerhold.Where("Status").Eq(st))
		if err != nil {
			return nil, fmt.Errorf("failed to count jobs with status %s: %w", st, err)
		}
		counts[st] = int(count)
	}
	return counts, nil
}

func (s *JobStore) MarkRunningPaused(ctx context.Context, reason models.PauseReason) (int, error) {
	var jobs []models.ScrapeJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusRunning)); err != nil {
		return 0, fmt.Errorf("failed to find running jobs: %w", err)
	}

	now := time.Now()
	count := 0
	for i := range jobs {
		jobs[i].Status = models.JobStatusPaused
		jobs[i].PauseReason = reason
		jobs[i].PausedAt = &now
		if err := s.Save(ctx, &jobs[i]); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobs[i].ID).Msg("Failed to pause running job")
			continue
		}
		count++
	}
	return count, nil
}
