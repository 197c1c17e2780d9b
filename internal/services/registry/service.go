package registry

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// DomainBusyError reports an admission conflict: the requested domain
// is already held by a pending, running or paused job.
type DomainBusyError struct {
	Domain         string `json:"domain"`
	ExistingDomain string `json:"existing_domain"`
	ExistingJobID  string `json:"existing_job_id"`
}

func (e *DomainBusyError) Error() string {
	return fmt.Sprintf("domain %s is already held by job %s (%s)", e.Domain, e.ExistingJobID, e.ExistingDomain)
}

// Availability is the catalog with busy domains subtracted
type Availability struct {
	AvailableDomains []CatalogSite `json:"available_domains"`
	TotalDomains     int           `json:"total_domains"`
	AvailableCount   int           `json:"available_count"`
	ActiveCount      int           `json:"active_count"`
}

// Service enforces single ownership of a canonical domain across jobs
type Service struct {
	jobs    interfaces.JobStore
	catalog []CatalogSite
	logger  arbor.ILogger
}

// NewService creates a domain registry over the job store
func NewService(jobs interfaces.JobStore, logger arbor.ILogger) *Service {
	return &Service{
		jobs:    jobs,
		catalog: DefaultCatalog(),
		logger:  logger,
	}
}

// activeDomains returns the canonical domains held by jobs in
// pending, running or paused state, mapped to their job IDs.
func (s *Service) activeDomains(ctx context.Context) (map[string]*models.ScrapeJob, error) {
	jobs, err := s.jobs.ListByStatuses(ctx,
		models.JobStatusPending, models.JobStatusRunning, models.JobStatusPaused)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}

	held := make(map[string]*models.ScrapeJob)
	for _, job := range jobs {
		for _, d := range job.Domains {
			held[CanonicalDomain(d)] = job
		}
	}
	return held, nil
}

// CheckAdmission rejects a job request whose canonical domain is held
// by any active job. Domains must contain exactly one entry.
func (s *Service) CheckAdmission(ctx context.Context, domains []string) error {
	if len(domains) != 1 {
		return fmt.Errorf("%w: exactly one domain is required, got %d", interfaces.ErrInvalidRequest, len(domains))
	}

	held, err := s.activeDomains(ctx)
	if err != nil {
		return err
	}

	canonical := CanonicalDomain(domains[0])
	if existing, ok := held[canonical]; ok {
		existingDomain := ""
		if len(existing.Domains) > 0 {
			existingDomain = existing.Domains[0]
		}
		return &DomainBusyError{
			Domain:         domains[0],
			ExistingDomain: existingDomain,
			ExistingJobID:  existing.ID,
		}
	}
	return nil
}

// Available subtracts busy domains from the built-in catalog
func (s *Service) Available(ctx context.Context) (*Availability, error) {
	held, err := s.activeDomains(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]CatalogSite, 0, len(s.catalog))
	for _, site := range s.catalog {
		if _, busy := held[CanonicalDomain(site.Domain)]; !busy {
			available = append(available, site)
		}
	}

	return &Availability{
		AvailableDomains: available,
		TotalDomains:     len(s.catalog),
		AvailableCount:   len(available),
		ActiveCount:      len(held),
	}, nil
}

// Catalog returns the built-in site list
func (s *Service) Catalog() []CatalogSite {
	return s.catalog
}
