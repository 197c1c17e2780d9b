// -----------------------------------------------------------------------
// Scraper Service - Job lifecycle, admission and supervisor management
// -----------------------------------------------------------------------

package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/registry"
)

// Defaults applied when a create request leaves settings unset
const (
	defaultConcurrentRequests = 5
	defaultRequestDelay       = 1.0
)

// supervisor tracks the goroutine driving one running job
type supervisor struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Service owns the scrape job lifecycle: admission, the status state
// machine and one supervisor goroutine per running job. All
// authoritative state lives in the store so supervisors can be
// recreated after a restart.
type Service struct {
	jobs       interfaces.JobStore
	businesses interfaces.BusinessStore
	progress   interfaces.ProgressStore
	registry   *registry.Service
	adapters   interfaces.AdapterFactory
	events     interfaces.EventService
	logger     arbor.ILogger
	validate   *validator.Validate

	mu          sync.RWMutex
	supervisors map[string]*supervisor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the scraper service
func NewService(store interfaces.StorageManager, reg *registry.Service, adapters interfaces.AdapterFactory, events interfaces.EventService, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		jobs:        store.Jobs(),
		businesses:  store.Businesses(),
		progress:    store.Progress(),
		registry:    reg,
		adapters:    adapters,
		events:      events,
		logger:      logger,
		validate:    validator.New(),
		supervisors: make(map[string]*supervisor),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// CreateJob validates the request, checks domain admission and stores
// a pending job. The job does not start until StartJob is called.
func (s *Service) CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.ScrapeJob, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}

	if err := s.registry.CheckAdmission(ctx, req.Domains); err != nil {
		return nil, err
	}

	concurrent := req.ConcurrentRequests
	if concurrent == 0 {
		concurrent = defaultConcurrentRequests
	}
	delay := req.RequestDelay
	if delay == 0 {
		delay = defaultRequestDelay
	}

	job := &models.ScrapeJob{
		ID:                 common.NewJobID(),
		Name:               req.Name,
		Domains:            req.Domains,
		Status:             models.JobStatusPending,
		ConcurrentRequests: concurrent,
		RequestDelay:       delay,
		CurrentPage:        1,
		Errors:             []string{},
		CreatedAt:          time.Now(),
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("name", job.Name).
		Str("domain", job.Domains[0]).
		Msg("Scrape job created")

	s.emitJobEvent(interfaces.EventJobCreated, job)
	return job, nil
}

// StartJob moves a pending or paused job to running and spawns its
// supervisor. Terminal jobs are refused; use ForceStartJob for those.
func (s *Service) StartJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.CanStart() {
		return fmt.Errorf("job %s cannot start from status %s: %w", jobID, job.Status, interfaces.ErrInvalidTransition)
	}

	s.mu.Lock()
	if _, exists := s.supervisors[jobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s already has a running supervisor: %w", jobID, interfaces.ErrInvalidTransition)
	}

	now := time.Now()
	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.Status = models.JobStatusRunning
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
		j.PauseReason = models.PauseReasonNone
		j.PausedAt = nil
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.spawnLocked(jobID)
	s.mu.Unlock()

	s.logger.Info().Str("job_id", jobID).Str("name", job.Name).Msg("Scrape job started")
	s.emitSnapshot(interfaces.EventJobStarted, jobID)
	return nil
}

// ForceStartJob displaces any live supervisor for the job, waits for
// it to unwind, then starts fresh from the persisted cursor. Works
// from any status, including terminal ones.
func (s *Service) ForceStartJob(ctx context.Context, jobID string) error {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.supervisors[jobID]
	s.mu.Unlock()

	if old != nil {
		old.cancel()
		select {
		case <-old.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	now := time.Now()
	err := s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.Status = models.JobStatusRunning
		j.StartedAt = &now
		j.CompletedAt = nil
		j.PauseReason = models.PauseReasonNone
		j.PausedAt = nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.supervisors[jobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s was restarted concurrently", jobID)
	}
	s.spawnLocked(jobID)
	s.mu.Unlock()

	s.logger.Info().Str("job_id", jobID).Msg("Scrape job force started")
	s.emitSnapshot(interfaces.EventJobStarted, jobID)
	return nil
}

// PauseJob stops a running job after its in-flight page work unwinds.
// The paused status is persisted before the supervisor is signalled so
// the cancellation handler leaves it in place.
func (s *Service) PauseJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusRunning {
		return fmt.Errorf("job %s is not running (status %s): %w", jobID, job.Status, interfaces.ErrInvalidTransition)
	}

	now := time.Now()
	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.Status = models.JobStatusPaused
		j.PauseReason = models.PauseReasonManual
		j.PausedAt = &now
	})
	if err != nil {
		return err
	}

	s.signalSupervisor(jobID)

	s.logger.Info().Str("job_id", jobID).Msg("Scrape job paused")
	s.emitSnapshot(interfaces.EventJobPaused, jobID)
	return nil
}

// ResumeJob restarts a paused job from its persisted cursor
func (s *Service) ResumeJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPaused {
		return fmt.Errorf("job %s is not paused (status %s): %w", jobID, job.Status, interfaces.ErrInvalidTransition)
	}

	s.mu.Lock()
	if _, exists := s.supervisors[jobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s supervisor is still unwinding, retry shortly: %w", jobID, interfaces.ErrInvalidTransition)
	}

	now := time.Now()
	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.Status = models.JobStatusRunning
		j.ResumedAt = &now
		j.PauseReason = models.PauseReasonNone
		j.PausedAt = nil
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.spawnLocked(jobID)
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", jobID).
		Str("city", job.CurrentCity).
		Int("page", job.CurrentPage).
		Msg("Scrape job resumed")
	s.emitSnapshot(interfaces.EventJobResumed, jobID)
	return nil
}

// CancelJob terminates a running or paused job. The cancelled status
// is persisted before the supervisor is signalled.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusRunning && job.Status != models.JobStatusPaused {
		return fmt.Errorf("job %s cannot be cancelled from status %s: %w", jobID, job.Status, interfaces.ErrInvalidTransition)
	}

	now := time.Now()
	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.Status = models.JobStatusCancelled
		j.CompletedAt = &now
	})
	if err != nil {
		return err
	}

	s.signalSupervisor(jobID)

	s.logger.Info().Str("job_id", jobID).Msg("Scrape job cancelled")
	s.emitSnapshot(interfaces.EventJobCancelled, jobID)
	return nil
}

// DeleteJob removes the job and its progress records. Scraped
// businesses are kept. Refused while a supervisor is running.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.RLock()
	_, live := s.supervisors[jobID]
	s.mu.RUnlock()
	if live {
		return fmt.Errorf("job %s is running, pause or cancel it first: %w", jobID, interfaces.ErrInvalidTransition)
	}

	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return err
	}

	if err := s.progress.DeleteForJob(ctx, jobID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete progress records")
	}
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return err
	}

	s.logger.Info().Str("job_id", jobID).Msg("Scrape job deleted")
	return nil
}

// JobStatus returns the stored job
func (s *Service) JobStatus(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// ListJobs returns stored jobs, newest first
func (s *Service) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.ScrapeJob, error) {
	return s.jobs.List(ctx, opts)
}

// SearchJobs returns one page of filtered jobs
func (s *Service) SearchJobs(ctx context.Context, opts *interfaces.JobSearchOptions) (*interfaces.JobSearchResult, error) {
	return s.jobs.Search(ctx, opts)
}

// UpdateSettings changes the politeness settings of a job. A running
// supervisor picks the new values up at the next page boundary.
func (s *Service) UpdateSettings(ctx context.Context, jobID string, update *models.JobSettingsUpdate) (*models.ScrapeJob, error) {
	if update == nil || update.IsEmpty() {
		return nil, fmt.Errorf("%w: no settings provided", interfaces.ErrInvalidRequest)
	}
	if err := s.validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}

	err := s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		if update.ConcurrentRequests != nil {
			j.ConcurrentRequests = *update.ConcurrentRequests
		}
		if update.RequestDelay != nil {
			j.RequestDelay = *update.RequestDelay
		}
	})
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", jobID).
		Int("concurrent_requests", job.ConcurrentRequests).
		Float64("request_delay", job.RequestDelay).
		Msg("Job settings updated")
	return job, nil
}

// ActiveJobIDs lists jobs with an in-process supervisor
func (s *Service) ActiveJobIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.supervisors))
	for id := range s.supervisors {
		ids = append(ids, id)
	}
	return ids
}

// WaitForJob blocks until no supervisor runs for the job
func (s *Service) WaitForJob(ctx context.Context, jobID string) error {
	s.mu.RLock()
	sup := s.supervisors[jobID]
	s.mu.RUnlock()

	if sup == nil {
		return nil
	}

	select {
	case <-sup.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown pauses every running supervisor with reason server_restart
// and waits for them to exit. Paused jobs keep their cursors and are
// resumed manually after the restart.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.supervisors))
	for id := range s.supervisors {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, id := range ids {
		err := s.jobs.Update(ctx, id, func(j *models.ScrapeJob) {
			if j.Status == models.JobStatusRunning {
				j.Status = models.JobStatusPaused
				j.PauseReason = models.PauseReasonServerRestart
				j.PausedAt = &now
			}
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to pause job during shutdown")
		}
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
		s.logger.Warn().Int("jobs", len(ids)).Msg("Shutdown timed out waiting for supervisors")
		return ctx.Err()
	}

	s.logger.Info().Int("jobs_paused", len(ids)).Msg("Scraper service stopped")
	return nil
}

// spawnLocked registers and starts the supervisor goroutine for a job.
// Caller holds s.mu.
func (s *Service) spawnLocked(jobID string) {
	ctx, cancel := context.WithCancel(s.ctx)
	sup := &supervisor{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.supervisors[jobID] = sup

	s.wg.Add(1)
	go s.runSupervisor(ctx, sup)
}

// signalSupervisor cancels the job's supervisor context if one is live
func (s *Service) signalSupervisor(jobID string) {
	s.mu.RLock()
	sup := s.supervisors[jobID]
	s.mu.RUnlock()

	if sup != nil {
		sup.cancel()
	}
}

// emitJobEvent publishes a lifecycle event carrying the job snapshot
func (s *Service) emitJobEvent(eventType interfaces.EventType, job *models.ScrapeJob) {
	payload := map[string]interface{}{
		"job_id":             job.ID,
		"name":               job.Name,
		"status":             string(job.Status),
		"domains":            job.Domains,
		"cities_completed":   job.CitiesCompleted,
		"total_cities":       job.TotalCities,
		"businesses_scraped": job.BusinessesScraped,
		"total_businesses":   job.TotalBusinesses,
	}
	if job.PauseReason != models.PauseReasonNone {
		payload["pause_reason"] = string(job.PauseReason)
	}

	event := interfaces.Event{Type: eventType, Payload: payload}
	if err := s.events.Publish(s.ctx, event); err != nil {
		s.logger.Debug().Err(err).Str("job_id", job.ID).Msg("Failed to publish job event")
	}
}

// emitSnapshot re-reads the job and publishes a lifecycle event with
// the persisted state.
func (s *Service) emitSnapshot(eventType interfaces.EventType, jobID string) {
	job, err := s.jobs.Get(context.Background(), jobID)
	if err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Failed to load job for event")
		return
	}
	s.emitJobEvent(eventType, job)
}
