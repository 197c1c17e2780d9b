// -----------------------------------------------------------------------
// Bulk job operations and aggregate views
// -----------------------------------------------------------------------

package scraper

import (
	"context"
	"time"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// PauseAll pauses every running job. Returns how many were paused.
func (s *Service) PauseAll(ctx context.Context) (int, error) {
	running, err := s.jobs.ListByStatuses(ctx, models.JobStatusRunning)
	if err != nil {
		return 0, err
	}

	paused := 0
	for _, job := range running {
		if err := s.PauseJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to pause job")
			continue
		}
		paused++
	}

	s.logger.Info().Int("paused", paused).Msg("Pause all done")
	return paused, nil
}

// ResumeAll resumes every paused job regardless of pause reason.
// Returns how many were resumed.
func (s *Service) ResumeAll(ctx context.Context) (int, error) {
	pausedJobs, err := s.jobs.ListByStatuses(ctx, models.JobStatusPaused)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, job := range pausedJobs {
		if err := s.ResumeJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to resume job")
			continue
		}
		resumed++
	}

	s.logger.Info().Int("resumed", resumed).Msg("Resume all done")
	return resumed, nil
}

// ResumeNetworkPaused resumes only the jobs that auto-paused on a
// network error. Manually paused jobs stay paused.
func (s *Service) ResumeNetworkPaused(ctx context.Context) (int, error) {
	pausedJobs, err := s.jobs.ListByStatuses(ctx, models.JobStatusPaused)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, job := range pausedJobs {
		if job.PauseReason != models.PauseReasonNetworkError {
			continue
		}
		if err := s.ResumeJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to resume network-paused job")
			continue
		}
		resumed++
	}

	s.logger.Info().Int("resumed", resumed).Msg("Network-paused jobs resumed")
	return resumed, nil
}

// RestartZeroExtraction resets finished jobs that never scraped a
// single business back to pending. Cursors and error lists are
// cleared; the jobs are not started.
func (s *Service) RestartZeroExtraction(ctx context.Context) (int, error) {
	finished, err := s.jobs.ListByStatuses(ctx,
		models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, job := range finished {
		if job.BusinessesScraped != 0 {
			continue
		}

		err := s.jobs.Update(ctx, job.ID, func(j *models.ScrapeJob) {
			j.Status = models.JobStatusPending
			j.StartedAt = nil
			j.CompletedAt = nil
			j.CitiesCompleted = 0
			j.BusinessesScraped = 0
			j.CurrentDomain = ""
			j.CurrentCity = ""
			j.CurrentPage = 1
			j.Errors = []string{}
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reset job")
			continue
		}
		reset++

		s.logger.Info().
			Str("job_id", job.ID).
			Str("name", job.Name).
			Str("was", string(job.Status)).
			Msg("Zero-extraction job reset to pending")
	}

	return reset, nil
}

// StatusSummary aggregates job states for the operations view
func (s *Service) StatusSummary(ctx context.Context) (*interfaces.StatusSummary, error) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	pausedJobs, err := s.jobs.ListByStatuses(ctx, models.JobStatusPaused)
	if err != nil {
		return nil, err
	}
	networkPaused := 0
	for _, job := range pausedJobs {
		if job.PauseReason == models.PauseReasonNetworkError {
			networkPaused++
		}
	}

	recent, err := s.jobs.List(ctx, &interfaces.JobListOptions{Limit: 5})
	if err != nil {
		return nil, err
	}
	recentJobs := make([]interfaces.RecentJob, 0, len(recent))
	for _, job := range recent {
		recentJobs = append(recentJobs, interfaces.RecentJob{
			ID:                job.ID,
			Name:              job.Name,
			Status:            job.Status,
			Progress:          job.ProgressText(),
			BusinessesScraped: job.BusinessesScraped,
			CreatedAt:         job.CreatedAt,
			PauseReason:       job.PauseReason,
		})
	}

	total := 0
	for _, count := range counts {
		total += count
	}

	return &interfaces.StatusSummary{
		StatusCounts:       counts,
		NetworkPausedCount: networkPaused,
		RecentJobs:         recentJobs,
		TotalJobs:          total,
	}, nil
}

// DashboardStats computes the headline figures for the dashboard
func (s *Service) DashboardStats(ctx context.Context) (*interfaces.DashboardStats, error) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	active := counts[models.JobStatusRunning] + counts[models.JobStatusPending]

	totalBusinesses, err := s.businesses.Count(ctx, nil)
	if err != nil {
		return nil, err
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	businessesToday, err := s.businesses.CountScrapedSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	domains, err := s.businesses.CountDomainsWithData(ctx)
	if err != nil {
		return nil, err
	}

	lastScrape, err := s.businesses.LastScrapedAt(ctx)
	if err != nil {
		return nil, err
	}

	return &interfaces.DashboardStats{
		TotalJobs:         total,
		ActiveJobs:        active,
		TotalBusinesses:   totalBusinesses,
		BusinessesToday:   businessesToday,
		DomainsConfigured: domains,
		LastScrape:        lastScrape,
	}, nil
}
