// -----------------------------------------------------------------------
// Export Service - export job lifecycle and runner management
// -----------------------------------------------------------------------

package export

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// defaultBatchSize is applied when a create request omits the batch size.
const defaultBatchSize = 100

// runnerHandle tracks the goroutine streaming one export job. The stop
// flag is checked between records; stopCh wakes the runner out of a
// rate-limit sleep.
type runnerHandle struct {
	jobID  string
	stop   atomic.Bool
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// signalStop flags the runner to exit after the in-flight record.
func (h *runnerHandle) signalStop() {
	h.stop.Store(true)
	h.once.Do(func() { close(h.stopCh) })
}

// Service owns the export job lifecycle. One runner goroutine streams
// each running export; all state lives in the store.
type Service struct {
	exports    interfaces.ExportStore
	businesses interfaces.BusinessStore
	events     interfaces.EventService
	logger     arbor.ILogger
	validate   *validator.Validate

	mu      sync.RWMutex
	running map[string]*runnerHandle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the export service
func NewService(store interfaces.StorageManager, events interfaces.EventService, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		exports:    store.Exports(),
		businesses: store.Businesses(),
		events:     events,
		logger:     logger,
		validate:   validator.New(),
		running:    make(map[string]*runnerHandle),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// CreateExportJob validates and persists a new export job. AutoStart
// jobs begin streaming immediately.
func (s *Service) CreateExportJob(ctx context.Context, req *models.CreateExportRequest) (*models.ExportJob, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: no export request provided", interfaces.ErrInvalidRequest)
	}
	req.RequestMethod = strings.ToUpper(strings.TrimSpace(req.RequestMethod))
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}

	method := req.RequestMethod
	if method == "" {
		method = http.MethodPost
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}

	job := &models.ExportJob{
		ID:             common.NewExportJobID(),
		Name:           req.Name,
		EndpointURL:    req.EndpointURL,
		AuthToken:      req.AuthToken,
		RequestMethod:  method,
		BatchSize:      batchSize,
		RateLimitDelay: req.RateLimitDelay,
		Fields:         req.Fields,
		Filters:        req.Filters,
		AutoStart:      req.AutoStart,
		Status:         models.ExportStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := s.exports.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("export_id", job.ID).
		Str("name", job.Name).
		Str("endpoint", job.EndpointURL).
		Bool("auto_start", job.AutoStart).
		Msg("Export job created")

	if job.AutoStart {
		if err := s.StartExport(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("export_id", job.ID).Msg("Auto-start failed")
			return job, nil
		}
		return s.exports.GetJob(ctx, job.ID)
	}
	return job, nil
}

// StartExport moves a pending job to running and spawns its runner.
func (s *Service) StartExport(ctx context.Context, jobID string) error {
	job, err := s.exports.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.ExportStatusPending {
		return fmt.Errorf("export job %s cannot start from status %s: %w", jobID, job.Status, interfaces.ErrInvalidTransition)
	}

	s.mu.Lock()
	if _, exists := s.running[jobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("export job %s already has a live runner: %w", jobID, interfaces.ErrInvalidTransition)
	}

	now := time.Now()
	err = s.exports.UpdateJob(ctx, jobID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusRunning
		j.StartedAt = &now
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}

	handle := &runnerHandle{
		jobID:  jobID,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.running[jobID] = handle
	s.wg.Add(1)
	go s.runExport(handle)
	s.mu.Unlock()

	s.logger.Info().Str("export_id", jobID).Str("name", job.Name).Msg("Export started")
	s.emitSnapshot(interfaces.EventExportStarted, jobID)
	return nil
}

// StopExport flags the runner to stop and marks the job cancelled. The
// runner exits after the in-flight record.
func (s *Service) StopExport(ctx context.Context, jobID string) error {
	job, err := s.exports.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.ExportStatusRunning {
		return fmt.Errorf("export job %s is not running (status %s): %w", jobID, job.Status, interfaces.ErrInvalidTransition)
	}

	s.mu.RLock()
	handle := s.running[jobID]
	s.mu.RUnlock()
	if handle != nil {
		handle.signalStop()
	}

	now := time.Now()
	err = s.exports.UpdateJob(ctx, jobID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusCancelled
		j.CompletedAt = &now
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("export_id", jobID).Msg("Export stopped")
	return nil
}

// DeleteExport stops any live runner and removes the job with its logs.
func (s *Service) DeleteExport(ctx context.Context, jobID string) error {
	if _, err := s.exports.GetJob(ctx, jobID); err != nil {
		return err
	}

	s.mu.RLock()
	handle := s.running[jobID]
	s.mu.RUnlock()
	if handle != nil {
		handle.signalStop()
	}

	if err := s.exports.DeleteLogs(ctx, jobID); err != nil {
		s.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to delete export logs")
	}
	if err := s.exports.DeleteJob(ctx, jobID); err != nil {
		return err
	}

	s.logger.Info().Str("export_id", jobID).Msg("Export job deleted")
	return nil
}

// GetExport returns one export job.
func (s *Service) GetExport(ctx context.Context, jobID string) (*models.ExportJob, error) {
	return s.exports.GetJob(ctx, jobID)
}

// ListExports returns export jobs, newest first.
func (s *Service) ListExports(ctx context.Context, skip, limit int) ([]*models.ExportJob, error) {
	return s.exports.ListJobs(ctx, skip, limit)
}

// GetLogs returns a job's run logs, newest first.
func (s *Service) GetLogs(ctx context.Context, jobID string, skip, limit int) ([]*models.ExportLog, error) {
	return s.exports.ListLogs(ctx, jobID, skip, limit)
}

// TestConnection probes an endpoint with an authenticated GET.
func (s *Service) TestConnection(ctx context.Context, endpointURL, authToken string) (*interfaces.TestConnectionResult, error) {
	u, err := url.Parse(endpointURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid endpoint URL %q", interfaces.ErrInvalidRequest, endpointURL)
	}

	result := TestEndpoint(ctx, endpointURL, authToken)

	s.logger.Info().
		Str("endpoint", endpointURL).
		Bool("reachable", result.Reachable).
		Int("status", result.StatusCode).
		Int64("latency_ms", result.LatencyMS).
		Msg("Export endpoint probed")
	return result, nil
}

// WaitForExport blocks until the job's runner exits.
func (s *Service) WaitForExport(ctx context.Context, jobID string) error {
	s.mu.RLock()
	handle := s.running[jobID]
	s.mu.RUnlock()

	if handle == nil {
		return nil
	}
	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops all runners and waits for them to exit. In-flight
// requests are aborted; interrupted jobs end up cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	handles := make([]*runnerHandle, 0, len(s.running))
	for _, h := range s.running {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	for _, h := range handles {
		h.signalStop()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Int("exports", len(handles)).Msg("Shutdown timed out waiting for export runners")
		return ctx.Err()
	}

	s.logger.Info().Msg("Export service stopped")
	return nil
}

// emitExportEvent publishes an event carrying the job snapshot
func (s *Service) emitExportEvent(eventType interfaces.EventType, job *models.ExportJob) {
	payload := map[string]interface{}{
		"export_id":        job.ID,
		"name":             job.Name,
		"status":           string(job.Status),
		"total_records":    job.TotalRecords,
		"exported_records": job.ExportedRecords,
		"failed_records":   job.FailedRecords,
	}
	if job.ErrorMessage != "" {
		payload["error_message"] = job.ErrorMessage
	}

	event := interfaces.Event{Type: eventType, Payload: payload}
	if err := s.events.Publish(s.ctx, event); err != nil {
		s.logger.Debug().Err(err).Str("export_id", job.ID).Msg("Failed to publish export event")
	}
}

// emitSnapshot re-reads the job and publishes an event with the
// persisted state.
func (s *Service) emitSnapshot(eventType interfaces.EventType, jobID string) {
	job, err := s.exports.GetJob(context.Background(), jobID)
	if err != nil {
		s.logger.Debug().Err(err).Str("export_id", jobID).Msg("Failed to load export job for event")
		return
	}
	s.emitExportEvent(eventType, job)
}
