package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ExportStore implements the ExportStore interface for Badger
type ExportStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewExportStore creates a new ExportStore instance
func NewExportStore(db *BadgerDB, logger arbor.ILogger) interfaces.ExportStore {
	return &ExportStore{
		db:     db,
		logger: logger,
	}
}

func (s *ExportStore) SaveJob(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		return fmt.Errorf("export job ID is required")
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save export job: %w", err)
	}
	return nil
}

func (s *ExportStore) GetJob(ctx context.Context, jobID string) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrExportJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}
	return &job, nil
}

// UpdateJob mutates an export job inside a single BadgerHold
// transaction. Runner counter flushes and control-plane status writes
// both go through here so neither can overwrite the other.
func (s *ExportStore) UpdateJob(ctx context.Context, jobID string, mutate func(*models.ExportJob)) error {
	found := false
	err := s.db.Store().UpdateMatching(&models.ExportJob{},
		badgerhold.Where(badgerhold.Key).Eq(jobID),
		func(record interface{}) error {
			job, ok := record.(*models.ExportJob)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			mutate(job)
			found = true
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to update export job: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s", interfaces.ErrExportJobNotFound, jobID)
	}
	return nil
}

func (s *ExportStore) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.ExportJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: %s", interfaces.ErrExportJobNotFound, jobID)
		}
		return fmt.Errorf("failed to delete export job: %w", err)
	}
	return nil
}

func (s *ExportStore) ListJobs(ctx context.Context, skip, limit int) ([]*models.ExportJob, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if skip > 0 {
		query = query.Skip(skip)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.ExportJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}

	result := make([]*models.ExportJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *ExportStore) AppendLog(ctx context.Context, log *models.ExportLog) error {
	if log.ID == "" {
		return fmt.Errorf("export log ID is required")
	}
	if log.JobID == "" {
		return fmt.Errorf("export log job ID is required")
	}

	if err := s.db.Store().Insert(log.ID, log); err != nil {
		return fmt.Errorf("failed to append export log: %w", err)
	}
	return nil
}

func (s *ExportStore) ListLogs(ctx context.Context, jobID string, skip, limit int) ([]*models.ExportLog, error) {
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Timestamp").Reverse()
	if skip > 0 {
		query = query.Skip(skip)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var logs []models.ExportLog
	if err := s.db.Store().Find(&logs, query); err != nil {
		return nil, fmt.Errorf("failed to list export logs: %w", err)
	}

	result := make([]*models.ExportLog, len(logs))
	for i := range logs {
		result[i] = &logs[i]
	}
	return result, nil
}

func (s *ExportStore) DeleteLogs(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.ExportLog{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete export logs: %w", err)
	}
	return nil
}
