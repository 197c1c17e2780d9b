// -----------------------------------------------------------------------
// Seeding Service - catalog-driven scrape job creation
// -----------------------------------------------------------------------

package seeding

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Seeded jobs always start with the standard politeness settings; an
// operator tunes individual jobs afterwards.
const (
	seededConcurrentRequests = 5
	seededRequestDelay       = 1.0
)

// SeedResult reports one seeding pass.
type SeedResult struct {
	TotalCountries int      `json:"total_countries"`
	JobsCreated    int      `json:"jobs_created"`
	JobsSkipped    int      `json:"jobs_skipped"`
	JobsUpdated    int      `json:"jobs_updated"`
	Errors         []string `json:"errors"`
}

// CountrySummary is one catalog entry in the countries overview.
type CountrySummary struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// RegionSummary groups catalog countries for the overview.
type RegionSummary struct {
	Name         string           `json:"name"`
	CountryCount int              `json:"country_count"`
	Countries    []CountrySummary `json:"countries"`
}

// CountriesSummary is the catalog overview.
type CountriesSummary struct {
	Regions        []RegionSummary `json:"regions"`
	TotalCountries int             `json:"total_countries"`
}

// RegionJobsStatus aggregates seeded jobs for one region.
type RegionJobsStatus struct {
	Name         string                   `json:"name"`
	TotalJobs    int                      `json:"total_jobs"`
	StatusCounts map[models.JobStatus]int `json:"status_counts"`
	Jobs         []*models.ScrapeJob      `json:"jobs"`
}

// SeededJobsStatus is the per-region view of all seeded jobs.
type SeededJobsStatus struct {
	Regions         []RegionJobsStatus  `json:"regions"`
	TotalSeededJobs int                 `json:"total_seeded_jobs"`
	Jobs            []*models.ScrapeJob `json:"jobs"`
}

// Service creates scrape jobs from the country catalog and reports on
// the seeded fleet.
type Service struct {
	jobs     interfaces.JobStore
	progress interfaces.ProgressStore
	catalog  *Catalog
	logger   arbor.ILogger
}

// NewService creates the seeding service
func NewService(store interfaces.StorageManager, catalog *Catalog, logger arbor.ILogger) *Service {
	return &Service{
		jobs:     store.Jobs(),
		progress: store.Progress(),
		catalog:  catalog,
		logger:   logger,
	}
}

// SeedJobs creates one pending job per catalog country. With overwrite
// all existing jobs are removed first; otherwise countries whose
// domain already appears on any job are skipped.
func (s *Service) SeedJobs(ctx context.Context, overwrite bool) (*SeedResult, error) {
	if s.catalog == nil || len(s.catalog.Countries) == 0 {
		return nil, fmt.Errorf("no seeding catalog loaded")
	}

	result := &SeedResult{Errors: []string{}}

	if overwrite {
		deleted, err := s.deleteAllJobs(ctx)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Int("deleted", deleted).Msg("Removed existing jobs before seeding")
	}

	existing := map[string]struct{}{}
	if !overwrite {
		jobs, err := s.jobs.List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list existing jobs: %w", err)
		}
		for _, job := range jobs {
			for _, domain := range job.Domains {
				existing[domain] = struct{}{}
			}
		}
	}

	for _, region := range s.catalog.Countries {
		for _, country := range region.Countries {
			result.TotalCountries++

			if country.Domain == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("no domain for %s", country.Name))
				continue
			}
			if _, ok := existing[country.Domain]; ok {
				result.JobsSkipped++
				continue
			}

			if err := s.createCountryJob(ctx, region.Region, country); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("failed to create job for %s: %v", country.Name, err))
				continue
			}
			result.JobsCreated++
		}
	}

	s.logger.Info().
		Int("total_countries", result.TotalCountries).
		Int("created", result.JobsCreated).
		Int("skipped", result.JobsSkipped).
		Int("errors", len(result.Errors)).
		Msg("Job seeding completed")
	return result, nil
}

func (s *Service) createCountryJob(ctx context.Context, region string, country CatalogCountry) error {
	job := &models.ScrapeJob{
		ID:                 common.NewJobID(),
		Name:               fmt.Sprintf("%s Business Directory", country.Name),
		Domains:            []string{country.Domain},
		Status:             models.JobStatusPending,
		ConcurrentRequests: seededConcurrentRequests,
		RequestDelay:       seededRequestDelay,
		CurrentPage:        1,
		Errors:             []string{},
		CreatedAt:          time.Now(),
		Country:            country.Name,
		Region:             region,
		BaseURL:            country.URL,
		Latitude:           country.Latitude,
		Longitude:          country.Longitude,
		IsSeeded:           true,
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return err
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("country", country.Name).
		Str("domain", country.Domain).
		Msg("Seeded country job")
	return nil
}

// deleteAllJobs removes every job and its progress records.
func (s *Service) deleteAllJobs(ctx context.Context) (int, error) {
	jobs, err := s.jobs.List(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs for overwrite: %w", err)
	}

	deleted := 0
	for _, job := range jobs {
		if err := s.progress.DeleteForJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delete progress records")
		}
		if err := s.jobs.Delete(ctx, job.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete job %s: %w", job.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// CountriesSummary lists the catalog grouped by region.
func (s *Service) CountriesSummary() *CountriesSummary {
	summary := &CountriesSummary{Regions: []RegionSummary{}}
	if s.catalog == nil {
		return summary
	}

	for _, region := range s.catalog.Countries {
		rs := RegionSummary{
			Name:         region.Region,
			CountryCount: len(region.Countries),
			Countries:    make([]CountrySummary, 0, len(region.Countries)),
		}
		for _, c := range region.Countries {
			rs.Countries = append(rs.Countries, CountrySummary{
				Name:   c.Name,
				Domain: c.Domain,
				URL:    c.URL,
			})
		}
		summary.Regions = append(summary.Regions, rs)
		summary.TotalCountries += len(region.Countries)
	}
	return summary
}

// SeededJobsStatus groups the seeded fleet by region with per-status
// counts.
func (s *Service) SeededJobsStatus(ctx context.Context) (*SeededJobsStatus, error) {
	jobs, err := s.jobs.ListSeeded(ctx)
	if err != nil {
		return nil, err
	}

	byRegion := map[string]*RegionJobsStatus{}
	for _, job := range jobs {
		region := job.Region
		if region == "" {
			region = "Unknown"
		}
		rs, ok := byRegion[region]
		if !ok {
			rs = &RegionJobsStatus{
				Name:         region,
				StatusCounts: map[models.JobStatus]int{},
			}
			byRegion[region] = rs
		}
		rs.TotalJobs++
		rs.StatusCounts[job.Status]++
		rs.Jobs = append(rs.Jobs, job)
	}

	names := make([]string, 0, len(byRegion))
	for name := range byRegion {
		names = append(names, name)
	}
	sort.Strings(names)

	status := &SeededJobsStatus{
		Regions:         make([]RegionJobsStatus, 0, len(names)),
		TotalSeededJobs: len(jobs),
		Jobs:            jobs,
	}
	for _, name := range names {
		status.Regions = append(status.Regions, *byRegion[name])
	}
	return status, nil
}
