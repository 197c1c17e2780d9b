package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ProgressStore implements the ProgressStore interface for Badger
type ProgressStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProgressStore creates a new ProgressStore instance
func NewProgressStore(db *BadgerDB, logger arbor.ILogger) interfaces.ProgressStore {
	return &ProgressStore{
		db:     db,
		logger: logger,
	}
}

func (s *ProgressStore) Insert(ctx context.Context, rec *models.ProgressRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("progress record ID is required")
	}
	if rec.JobID == "" {
		return fmt.Errorf("progress record job ID is required")
	}

	if err := s.db.Store().Insert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to insert progress record: %w", err)
	}
	return nil
}

func (s *ProgressStore) LatestForJob(ctx context.Context, jobID string) (*models.ProgressRecord, error) {
	var records []models.ProgressRecord
	err := s.db.Store().Find(&records, badgerhold.Where("JobID").Eq(jobID).SortBy("Timestamp").Reverse().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest progress: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (s *ProgressStore) ListForJob(ctx context.Context, jobID string, limit int) ([]*models.ProgressRecord, error) {
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Timestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.ProgressRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}

	result := make([]*models.ProgressRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *ProgressStore) DeleteForJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.ProgressRecord{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete progress records: %w", err)
	}
	return nil
}
