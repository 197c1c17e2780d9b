package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// fakeJobStore implements just enough of the JobStore interface for
// admission tests.
type fakeJobStore struct {
	interfaces.JobStore
	jobs []*models.ScrapeJob
}

func (f *fakeJobStore) ListByStatuses(ctx context.Context, statuses ...models.JobStatus) ([]*models.ScrapeJob, error) {
	var out []*models.ScrapeJob
	for _, j := range f.jobs {
		for _, st := range statuses {
			if j.Status == st {
				out = append(out, j)
				break
			}
		}
	}
	return out, nil
}

func TestCheckAdmissionConflict(t *testing.T) {
	store := &fakeJobStore{jobs: []*models.ScrapeJob{
		{ID: "job-a", Domains: []string{"https://www.yello.ae"}, Status: models.JobStatusRunning, CreatedAt: time.Now()},
	}}
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	// The yellowpages spelling collides with the yello job
	err := svc.CheckAdmission(ctx, []string{"http://yellowpages.ae/"})
	if err == nil {
		t.Fatal("Expected admission conflict")
	}

	var busy *DomainBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("Expected DomainBusyError, got %T: %v", err, err)
	}
	if busy.ExistingJobID != "job-a" {
		t.Errorf("Expected conflict with job-a, got %s", busy.ExistingJobID)
	}
	if busy.ExistingDomain != "https://www.yello.ae" {
		t.Errorf("Expected existing domain reported, got %s", busy.ExistingDomain)
	}
}

func TestCheckAdmissionAllowsFreeDomain(t *testing.T) {
	store := &fakeJobStore{jobs: []*models.ScrapeJob{
		{ID: "job-a", Domains: []string{"https://www.yello.ae"}, Status: models.JobStatusCompleted, CreatedAt: time.Now()},
	}}
	svc := NewService(store, arbor.NewLogger())

	// Terminal jobs release their domain
	if err := svc.CheckAdmission(context.Background(), []string{"https://yello.ae"}); err != nil {
		t.Errorf("Expected admission to pass for completed job's domain: %v", err)
	}
}

func TestCheckAdmissionRejectsMultiDomain(t *testing.T) {
	svc := NewService(&fakeJobStore{}, arbor.NewLogger())

	if err := svc.CheckAdmission(context.Background(), []string{"a.com", "b.com"}); err == nil {
		t.Error("Expected multi-domain request to be rejected")
	}
	if err := svc.CheckAdmission(context.Background(), nil); err == nil {
		t.Error("Expected empty domain request to be rejected")
	}
}

func TestAvailableSubtractsBusyDomains(t *testing.T) {
	store := &fakeJobStore{jobs: []*models.ScrapeJob{
		{ID: "j1", Domains: []string{"https://www.yello.ae"}, Status: models.JobStatusRunning},
		{ID: "j2", Domains: []string{"businesslist.pk"}, Status: models.JobStatusPaused},
		{ID: "j3", Domains: []string{"https://egyptyp.com"}, Status: models.JobStatusCompleted},
	}}
	svc := NewService(store, arbor.NewLogger())

	avail, err := svc.Available(context.Background())
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}

	if avail.TotalDomains != 53 {
		t.Errorf("Expected 53 total, got %d", avail.TotalDomains)
	}
	if avail.ActiveCount != 2 {
		t.Errorf("Expected 2 active, got %d", avail.ActiveCount)
	}
	if avail.AvailableCount != 51 {
		t.Errorf("Expected 51 available, got %d", avail.AvailableCount)
	}

	for _, site := range avail.AvailableDomains {
		c := CanonicalDomain(site.Domain)
		if c == "yello.ae" || c == "businesslist.pk" {
			t.Errorf("Busy domain %s leaked into availability", site.Domain)
		}
	}
}
