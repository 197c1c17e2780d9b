package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/workers"
)

// errJobStopped signals a cooperative stop where the operation that
// requested it already persisted the final status. The supervisor
// exits without writing anything.
var errJobStopped = errors.New("job stopped")

// runSupervisor drives one job to a settled state and cleans the
// handle up afterwards.
func (s *Service) runSupervisor(ctx context.Context, sup *supervisor) {
	defer func() {
		s.mu.Lock()
		// a force start may have replaced the handle already
		if s.supervisors[sup.jobID] == sup {
			delete(s.supervisors, sup.jobID)
		}
		s.mu.Unlock()
		close(sup.done)
		s.wg.Done()
	}()

	err := s.runJob(ctx, sup.jobID)
	s.finishJob(ctx, sup.jobID, err)
}

// runJob walks every domain of the job
func (s *Service) runJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("name", job.Name).
		Strs("domains", job.Domains).
		Msg("Scrape started")

	for _, domain := range job.Domains {
		base := domain
		if job.BaseURL != "" {
			base = job.BaseURL
		}
		if err := s.scrapeDomain(ctx, jobID, base); err != nil {
			return err
		}
	}
	return nil
}

// scrapeDomain discovers cities for the domain and walks them from the
// job's resume point onward.
func (s *Service) scrapeDomain(ctx context.Context, jobID, baseURL string) error {
	adapter, err := s.adapters.ForDomain(baseURL)
	if err != nil {
		return fmt.Errorf("failed to build adapter for %s: %w", baseURL, err)
	}

	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.CurrentDomain = adapter.Domain()
	})
	if err != nil {
		return err
	}

	cities, err := adapter.Cities(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover cities for %s: %w", adapter.Domain(), err)
	}
	if len(cities) == 0 {
		s.logger.Warn().
			Str("job_id", jobID).
			Str("domain", adapter.Domain()).
			Msg("No cities discovered, nothing to scrape")
		return nil
	}

	// total_cities is set once; resumes and restarts keep the first count
	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		if j.TotalCities == 0 {
			j.TotalCities = len(cities)
		}
	})
	if err != nil {
		return err
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	startIndex, startPage := s.resumeCursor(ctx, job, cities)

	s.logger.Info().
		Str("job_id", jobID).
		Str("domain", adapter.Domain()).
		Int("cities", len(cities)).
		Str("start_city", cities[startIndex].Name).
		Int("start_page", startPage).
		Msg("City walk starting")

	for i := startIndex; i < len(cities); i++ {
		city := cities[i]
		page := 1
		if i == startIndex {
			page = startPage
		}

		if err := s.scrapeCity(ctx, jobID, adapter, city, page); err != nil {
			return err
		}

		err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
			j.CitiesCompleted++
		})
		if err != nil {
			return err
		}
		s.emitCityCompleted(jobID, city)
	}
	return nil
}

// resumeCursor resolves where scraping continues: the newest progress
// record when it is fresher than the job cursor, the job cursor
// otherwise. A remembered city missing from discovery restarts the
// domain from the first city.
func (s *Service) resumeCursor(ctx context.Context, job *models.ScrapeJob, cities []models.City) (int, int) {
	cityName := job.CurrentCity
	page := job.CurrentPage
	if page < 1 {
		page = 1
	}

	rec, err := s.progress.LatestForJob(ctx, job.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to load latest progress record")
	} else if rec != nil {
		if job.LastProgressTimestamp == nil || rec.Timestamp.After(*job.LastProgressTimestamp) {
			cityName = rec.City
			page = rec.Page + 1
		}
	}

	if cityName == "" {
		return 0, 1
	}
	for i, c := range cities {
		if c.Name == cityName {
			return i, page
		}
	}

	s.logger.Warn().
		Str("job_id", job.ID).
		Str("city", cityName).
		Msg("Resume city no longer discovered, restarting from the first city")
	return 0, 1
}

// scrapeCity walks listing pages for one city until the site reports
// no further page or the page comes back empty.
func (s *Service) scrapeCity(ctx context.Context, jobID string, adapter interfaces.SiteAdapter, city models.City, startPage int) error {
	page := startPage
	if page < 1 {
		page = 1
	}

	for {
		// fresh read per page: picks up setting changes and acts as
		// the pause/cancel gate
		job, err := s.jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusRunning {
			return errJobStopped
		}

		urls, hasNext, err := adapter.Listings(ctx, city, page)
		if err != nil {
			return fmt.Errorf("fetch listings for %s page %d: %w", city.Name, page, err)
		}
		if len(urls) == 0 {
			return nil
		}

		// total_businesses counts listing URLs before dedup
		err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
			j.TotalBusinesses += len(urls)
		})
		if err != nil {
			return err
		}

		newURLs := make([]string, 0, len(urls))
		for _, u := range urls {
			exists, err := s.businesses.Exists(ctx, adapter.Domain(), u)
			if err != nil {
				return fmt.Errorf("dedup lookup for %s: %w", u, err)
			}
			if !exists {
				newURLs = append(newURLs, u)
			}
		}

		delay := time.Duration(job.RequestDelay * float64(time.Second))
		saved := s.fetchProfiles(ctx, jobID, adapter, newURLs, job.ConcurrentRequests, delay)

		if saved > 0 {
			err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
				j.BusinessesScraped += saved
			})
			if err != nil {
				return err
			}
		}

		// a cancelled fan-out means the page is incomplete; leave the
		// cursor at the last full checkpoint so the page is revisited
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.checkpoint(ctx, jobID, adapter.Domain(), city, page, len(urls), len(newURLs), saved); err != nil {
			return err
		}

		s.logger.Debug().
			Str("job_id", jobID).
			Str("city", city.Name).
			Int("page", page).
			Int("found", len(urls)).
			Int("new", len(newURLs)).
			Int("saved", saved).
			Bool("has_next", hasNext).
			Msg("Listing page done")

		if !hasNext {
			return nil
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		page++
	}
}

// fetchProfiles fans the profile URLs out over a bounded worker pool.
// Fetch and parse failures are skipped; they never stop the job.
// Returns the number of profiles actually saved.
func (s *Service) fetchProfiles(ctx context.Context, jobID string, adapter interfaces.SiteAdapter, urls []string, concurrent int, delay time.Duration) int {
	if len(urls) == 0 {
		return 0
	}

	pool := workers.NewPool(ctx, concurrent, s.logger)
	pool.Start()

	var saved atomic.Int64
	for _, pageURL := range urls {
		pageURL := pageURL
		_ = pool.Submit(func(taskCtx context.Context) error {
			select {
			case <-time.After(delay):
			case <-taskCtx.Done():
				return taskCtx.Err()
			}

			business, err := adapter.Details(taskCtx, pageURL)
			if err != nil {
				return fmt.Errorf("fetch profile %s: %w", pageURL, err)
			}

			business.ID = common.NewBusinessID()
			business.JobID = jobID
			business.ScrapedAt = time.Now()

			if err := s.businesses.Insert(taskCtx, business); err != nil {
				if errors.Is(err, interfaces.ErrBusinessExists) {
					return nil
				}
				return fmt.Errorf("save profile %s: %w", pageURL, err)
			}

			saved.Add(1)
			return nil
		})
	}
	pool.Wait()

	if ctx.Err() == nil {
		for _, err := range pool.Errors() {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Profile skipped")
		}
	}
	return int(saved.Load())
}

// checkpoint records the completed page. The progress record is
// inserted before the job cursor moves, so a crash between the two
// leaves the record as the fresher source on resume.
func (s *Service) checkpoint(ctx context.Context, jobID, domain string, city models.City, page, found, fresh, saved int) error {
	rec := &models.ProgressRecord{
		ID:                common.NewProgressID(),
		JobID:             jobID,
		Domain:            domain,
		City:              city.Name,
		Page:              page,
		BusinessesFound:   found,
		NewBusinesses:     fresh,
		BusinessesScraped: saved,
		Timestamp:         time.Now(),
	}
	if err := s.progress.Insert(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert progress record: %w", err)
	}

	now := time.Now()
	err := s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.CurrentCity = city.Name
		j.CurrentPage = page + 1
		j.LastProgressTimestamp = &now
	})
	if err != nil {
		return fmt.Errorf("failed to advance job cursor: %w", err)
	}

	s.emitScrapeProgress(jobID, rec)
	return nil
}

// finishJob resolves the persisted status after the supervisor's work
// function returns. Terminal writes use a background context so they
// survive the supervisor's own cancellation.
func (s *Service) finishJob(ctx context.Context, jobID string, err error) {
	bg := context.Background()

	switch {
	case ctx.Err() != nil:
		s.handleCancellation(bg, jobID)

	case errors.Is(err, errJobStopped):
		// the stopping operation persisted the final status already

	case err == nil:
		now := time.Now()
		uerr := s.jobs.Update(bg, jobID, func(j *models.ScrapeJob) {
			j.Status = models.JobStatusCompleted
			j.CompletedAt = &now
		})
		if uerr != nil {
			s.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to mark job completed")
			return
		}
		s.logger.Info().Str("job_id", jobID).Msg("Scrape job completed")
		s.emitSnapshot(interfaces.EventJobCompleted, jobID)

	case isNetworkError(err):
		now := time.Now()
		uerr := s.jobs.Update(bg, jobID, func(j *models.ScrapeJob) {
			j.Status = models.JobStatusPaused
			j.PauseReason = models.PauseReasonNetworkError
			j.PausedAt = &now
			j.Errors = append(j.Errors, fmt.Sprintf("Network error (auto-paused): %v", err))
		})
		if uerr != nil {
			s.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to mark job network-paused")
			return
		}
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Scrape job auto-paused on network error")
		s.emitSnapshot(interfaces.EventJobPaused, jobID)

	default:
		now := time.Now()
		uerr := s.jobs.Update(bg, jobID, func(j *models.ScrapeJob) {
			j.Status = models.JobStatusFailed
			j.CompletedAt = &now
			j.Errors = append(j.Errors, err.Error())
		})
		if uerr != nil {
			s.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to mark job failed")
			return
		}
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Scrape job failed")
		s.emitSnapshot(interfaces.EventJobFailed, jobID)
	}
}

// handleCancellation resolves the status after the supervisor context
// died. Pause, cancel and shutdown persist their status before
// signalling, so those are left alone. Anything else was displaced by
// a force start and is marked cancelled.
func (s *Service) handleCancellation(ctx context.Context, jobID string) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to load job after cancellation")
		return
	}
	if job.Status == models.JobStatusPaused || job.IsTerminal() {
		return
	}

	now := time.Now()
	err = s.jobs.Update(ctx, jobID, func(j *models.ScrapeJob) {
		j.Status = models.JobStatusCancelled
		j.CompletedAt = &now
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job cancelled")
		return
	}
	s.logger.Info().Str("job_id", jobID).Msg("Scrape job cancelled by displacement")
	s.emitSnapshot(interfaces.EventJobCancelled, jobID)
}

// emitScrapeProgress publishes the per-page progress event
func (s *Service) emitScrapeProgress(jobID string, rec *models.ProgressRecord) {
	job, err := s.jobs.Get(context.Background(), jobID)
	if err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Failed to load job for progress event")
		return
	}

	payload := map[string]interface{}{
		"job_id":             jobID,
		"domain":             rec.Domain,
		"city":               rec.City,
		"page":               rec.Page,
		"businesses_found":   rec.BusinessesFound,
		"new_businesses":     rec.NewBusinesses,
		"businesses_scraped": rec.BusinessesScraped,
		"total_scraped":      job.BusinessesScraped,
		"cities_completed":   job.CitiesCompleted,
		"total_cities":       job.TotalCities,
	}

	event := interfaces.Event{Type: interfaces.EventScrapeProgress, Payload: payload}
	if err := s.events.Publish(s.ctx, event); err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Failed to publish progress event")
	}
}

// emitCityCompleted publishes the city completion event
func (s *Service) emitCityCompleted(jobID string, city models.City) {
	job, err := s.jobs.Get(context.Background(), jobID)
	if err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Failed to load job for city event")
		return
	}

	payload := map[string]interface{}{
		"job_id":           jobID,
		"city":             city.Name,
		"cities_completed": job.CitiesCompleted,
		"total_cities":     job.TotalCities,
	}

	event := interfaces.Event{Type: interfaces.EventCityCompleted, Payload: payload}
	if err := s.events.Publish(s.ctx, event); err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Failed to publish city event")
	}
}
