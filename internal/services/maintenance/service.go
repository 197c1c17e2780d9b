// -----------------------------------------------------------------------
// Maintenance Service - scheduled store GC, stale detection, heartbeat
// -----------------------------------------------------------------------

package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Stale detection runs on its own fixed cadence; only the threshold is
// configurable.
const staleCheckSchedule = "*/5 * * * *"

// FleetStatus is the slice of the scraper service the heartbeat reads.
type FleetStatus interface {
	StatusSummary(ctx context.Context) (*interfaces.StatusSummary, error)
	ActiveJobIDs() []string
}

// Service runs background housekeeping on cron schedules: Badger
// value-log garbage collection, warnings for running jobs that have
// gone silent, and a periodic status heartbeat log.
type Service struct {
	store   interfaces.StorageManager
	scraper FleetStatus
	cron    *cron.Cron
	logger  arbor.ILogger

	gcSchedule        string
	gcDiscardRatio    float64
	staleAfter        time.Duration
	heartbeatSchedule string

	running bool
}

// NewService creates the maintenance service
func NewService(store interfaces.StorageManager, scraper FleetStatus, cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		store:             store,
		scraper:           scraper,
		cron:              cron.New(),
		logger:            logger,
		gcSchedule:        cfg.Maintenance.GCSchedule,
		gcDiscardRatio:    cfg.Maintenance.GCDiscardRatio,
		staleAfter:        cfg.StaleAfter(),
		heartbeatSchedule: cfg.Maintenance.HeartbeatSchedule,
	}
}

// Start registers the cron entries and begins the schedules.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("maintenance service already running")
	}

	if _, err := s.cron.AddFunc(s.gcSchedule, s.runGC); err != nil {
		return fmt.Errorf("failed to schedule value-log GC: %w", err)
	}
	if _, err := s.cron.AddFunc(staleCheckSchedule, s.checkStaleJobs); err != nil {
		return fmt.Errorf("failed to schedule stale job check: %w", err)
	}
	if _, err := s.cron.AddFunc(s.heartbeatSchedule, s.logHeartbeat); err != nil {
		return fmt.Errorf("failed to schedule status heartbeat: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("gc_schedule", s.gcSchedule).
		Str("stale_check", staleCheckSchedule).
		Str("heartbeat", s.heartbeatSchedule).
		Str("stale_after", s.staleAfter.String()).
		Msg("Maintenance service started")
	return nil
}

// Stop halts the schedules and waits for any in-flight run.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Maintenance service stopped")
}

// runGC reclaims value-log space. A pass that finds nothing to rewrite
// is silent.
func (s *Service) runGC() {
	defer s.recoverPanic("value-log GC")

	start := time.Now()
	if err := s.store.RunGC(s.gcDiscardRatio); err != nil {
		s.logger.Error().Err(err).Msg("Value-log GC failed")
		return
	}
	s.logger.Debug().
		Dur("duration", time.Since(start)).
		Msg("Value-log GC pass completed")
}

// checkStaleJobs warns about running jobs that have not checkpointed
// within the stale threshold. Jobs are never paused or failed from
// here; the warning points an operator at a wedged supervisor.
func (s *Service) checkStaleJobs() {
	defer s.recoverPanic("stale job check")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobs, err := s.store.Jobs().ListByStatuses(ctx, models.JobStatusRunning)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale job check failed to list running jobs")
		return
	}

	cutoff := time.Now().Add(-s.staleAfter)
	stale := 0
	for _, job := range jobs {
		last := job.LastProgressTimestamp
		if last == nil {
			last = job.StartedAt
		}
		if last == nil || last.After(cutoff) {
			continue
		}
		stale++
		s.logger.Warn().
			Str("job_id", job.ID).
			Str("name", job.Name).
			Str("last_progress", last.Format(time.RFC3339)).
			Msg("Running job has not reported progress within the stale threshold")
	}

	if stale > 0 {
		s.logger.Warn().
			Int("stale", stale).
			Int("running", len(jobs)).
			Msg("Stale running jobs detected")
	}
}

// logHeartbeat writes a one-line fleet summary.
func (s *Service) logHeartbeat() {
	defer s.recoverPanic("status heartbeat")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := s.scraper.StatusSummary(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Status heartbeat failed")
		return
	}

	s.logger.Info().
		Int("total_jobs", summary.TotalJobs).
		Int("running", summary.StatusCounts[models.JobStatusRunning]).
		Int("pending", summary.StatusCounts[models.JobStatusPending]).
		Int("paused", summary.StatusCounts[models.JobStatusPaused]).
		Int("completed", summary.StatusCounts[models.JobStatusCompleted]).
		Int("failed", summary.StatusCounts[models.JobStatusFailed]).
		Int("network_paused", summary.NetworkPausedCount).
		Int("active_supervisors", len(s.scraper.ActiveJobIDs())).
		Msg("Status heartbeat")
}

func (s *Service) recoverPanic(task string) {
	if r := recover(); r != nil {
		s.logger.Error().
			Str("task", task).
			Str("panic", fmt.Sprintf("%v", r)).
			Msg("PANIC RECOVERED in maintenance task")
	}
}
