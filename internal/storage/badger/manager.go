package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	jobs       interfaces.JobStore
	businesses interfaces.BusinessStore
	progress   interfaces.ProgressStore
	exports    interfaces.ExportStore
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		jobs:       NewJobStore(db, logger),
		businesses: NewBusinessStore(db, logger),
		progress:   NewProgressStore(db, logger),
		exports:    NewExportStore(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Jobs returns the scrape job store
func (m *Manager) Jobs() interfaces.JobStore {
	return m.jobs
}

// Businesses returns the business store
func (m *Manager) Businesses() interfaces.BusinessStore {
	return m.businesses
}

// Progress returns the progress checkpoint store
func (m *Manager) Progress() interfaces.ProgressStore {
	return m.progress
}

// Exports returns the export job store
func (m *Manager) Exports() interfaces.ExportStore {
	return m.exports
}

// RunGC runs a value-log garbage collection pass
func (m *Manager) RunGC(discardRatio float64) error {
	if m.db == nil {
		return nil
	}
	return m.db.RunValueLogGC(discardRatio)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
