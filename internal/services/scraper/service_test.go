package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/registry"
)

func TestJobRunsToCompletion(t *testing.T) {
	adapter := &fakeAdapter{
		domain: "fake-a.test",
		cities: []models.City{
			{Name: "Dubai", URL: "https://fake-a.test/location/dubai"},
			{Name: "Abu Dhabi", URL: "https://fake-a.test/location/abu-dhabi"},
		},
		pages: map[string][][]string{
			"Dubai":     listingPages("fake-a.test", "Dubai", 2, 5),
			"Abu Dhabi": listingPages("fake-a.test", "Abu Dhabi", 1, 5),
		},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "UAE Directory",
		Domains:      []string{"fake-a.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 5, job.ConcurrentRequests)

	require.NoError(t, svc.StartJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.TotalCities)
	assert.Equal(t, 2, got.CitiesCompleted)
	assert.Equal(t, 15, got.TotalBusinesses)
	assert.Equal(t, 15, got.BusinessesScraped)
	assert.Equal(t, "fake-a.test", got.CurrentDomain)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Errors)

	count, err := store.Businesses().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, count)

	// one checkpoint per listing page
	records, err := store.Progress().ListForJob(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPauseResumeContinuesFromCheckpoint(t *testing.T) {
	gate := make(chan struct{})
	adapter := &fakeAdapter{
		domain:  "fake-b.test",
		cities:  []models.City{{Name: "Karachi", URL: "https://fake-b.test/location/karachi"}},
		pages:   map[string][][]string{"Karachi": listingPages("fake-b.test", "Karachi", 3, 10)},
		blockOn: map[string]chan struct{}{"Karachi/3": gate},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:               "Pakistan Directory",
		Domains:            []string{"fake-b.test"},
		ConcurrentRequests: 10,
		RequestDelay:       0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))

	// pages 1 and 2 are checkpointed; page 3 is held at the gate
	adapter.waitForFetch(t, "Karachi/3")
	require.NoError(t, svc.PauseJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)
	close(gate)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonManual, got.PauseReason)
	require.NotNil(t, got.PausedAt)
	assert.Equal(t, "Karachi", got.CurrentCity)
	assert.Equal(t, 3, got.CurrentPage)
	assert.Equal(t, 20, got.BusinessesScraped)

	require.NoError(t, svc.ResumeJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err = store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, models.PauseReasonNone, got.PauseReason)
	require.NotNil(t, got.ResumedAt)
	assert.Equal(t, 30, got.TotalBusinesses)
	assert.Equal(t, 30, got.BusinessesScraped)
	assert.Equal(t, 1, got.CitiesCompleted)

	// earlier pages are not refetched after the resume
	assert.Equal(t, 1, adapter.fetchCount("Karachi/1"))
	assert.Equal(t, 1, adapter.fetchCount("Karachi/2"))
	assert.Equal(t, 2, adapter.fetchCount("Karachi/3"))

	count, err := store.Businesses().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, count)
}

func TestDedupSkipsAlreadyStoredProfiles(t *testing.T) {
	pages := listingPages("fake-c.test", "Lagos", 3, 10)
	adapter := &fakeAdapter{
		domain: "fake-c.test",
		cities: []models.City{{Name: "Lagos", URL: "https://fake-c.test/location/lagos"}},
		pages:  map[string][][]string{"Lagos": pages},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	// page 1 profiles are already stored from an earlier run
	for _, u := range pages[0] {
		require.NoError(t, store.Businesses().Insert(ctx, &models.Business{
			ID:        common.NewBusinessID(),
			Name:      "Stored earlier",
			PageURL:   u,
			Domain:    "fake-c.test",
			ScrapedAt: time.Now(),
		}))
	}

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:               "Nigeria Directory",
		Domains:            []string{"fake-c.test"},
		ConcurrentRequests: 10,
		RequestDelay:       0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 30, got.TotalBusinesses, "found counts listing URLs before dedup")
	assert.Equal(t, 20, got.BusinessesScraped, "scraped counts fresh saves only")
	assert.Equal(t, 20, adapter.detailCount(), "stored profiles are never refetched")

	count, err := store.Businesses().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, count)
}

func TestNetworkErrorAutoPausesJob(t *testing.T) {
	adapter := &fakeAdapter{
		domain: "fake-d.test",
		cities: []models.City{{Name: "Nairobi", URL: "https://fake-d.test/location/nairobi"}},
		pages:  map[string][][]string{"Nairobi": listingPages("fake-d.test", "Nairobi", 2, 10)},
	}
	adapter.setListingsErr("Nairobi/2", errors.New("connection timed out"))

	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:               "Kenya Directory",
		Domains:            []string{"fake-d.test"},
		ConcurrentRequests: 10,
		RequestDelay:       0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonNetworkError, got.PauseReason)
	require.NotNil(t, got.PausedAt)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "Network error (auto-paused)")
	assert.Equal(t, 10, got.BusinessesScraped)

	// the site recovers; only network-paused jobs resume
	adapter.setListingsErr("Nairobi/2", nil)
	resumed, err := svc.ResumeNetworkPaused(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	waitSettled(t, svc, job.ID)

	got, err = store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 20, got.BusinessesScraped)
}

func TestResumeNetworkPausedLeavesManualPauses(t *testing.T) {
	gate := make(chan struct{})
	manual := &fakeAdapter{
		domain:  "fake-m.test",
		cities:  []models.City{{Name: "Accra", URL: "https://fake-m.test/location/accra"}},
		pages:   map[string][][]string{"Accra": listingPages("fake-m.test", "Accra", 2, 5)},
		blockOn: map[string]chan struct{}{"Accra/1": gate},
	}
	factory := &fakeFactory{adapters: map[string]*fakeAdapter{"fake-m.test": manual}}
	svc, store := newTestService(t, factory)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "Ghana Directory",
		Domains:      []string{"fake-m.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	manual.waitForFetch(t, "Accra/1")
	require.NoError(t, svc.PauseJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)
	close(gate)

	resumed, err := svc.ResumeNetworkPaused(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resumed)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonManual, got.PauseReason)
}

func TestForceStartDisplacesRunningSupervisor(t *testing.T) {
	gate := make(chan struct{})
	adapter := &fakeAdapter{
		domain:  "fake-f.test",
		cities:  []models.City{{Name: "Perth", URL: "https://fake-f.test/location/perth"}},
		pages:   map[string][][]string{"Perth": listingPages("fake-f.test", "Perth", 1, 5)},
		blockOn: map[string]chan struct{}{"Perth/1": gate},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "Australia Directory",
		Domains:      []string{"fake-f.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	adapter.waitForFetch(t, "Perth/1")

	require.NoError(t, svc.ForceStartJob(ctx, job.ID))
	assert.Len(t, svc.ActiveJobIDs(), 1, "exactly one supervisor after displacement")

	close(gate)
	waitSettled(t, svc, job.ID)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 5, got.BusinessesScraped)
	assert.Equal(t, 2, adapter.fetchCount("Perth/1"), "aborted walk plus the fresh one")

	count, err := store.Businesses().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestNoCitiesCompletesEmpty(t *testing.T) {
	adapter := &fakeAdapter{domain: "fake-e.test"}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:    "Empty Directory",
		Domains: []string{"fake-e.test"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 0, got.TotalCities)
	assert.Equal(t, 0, got.BusinessesScraped)
}

func TestCancelledJobRefusesRestartWithoutForce(t *testing.T) {
	gate := make(chan struct{})
	adapter := &fakeAdapter{
		domain:  "fake-g.test",
		cities:  []models.City{{Name: "London", URL: "https://fake-g.test/location/london"}},
		pages:   map[string][][]string{"London": listingPages("fake-g.test", "London", 1, 5)},
		blockOn: map[string]chan struct{}{"London/1": gate},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "UK Directory",
		Domains:      []string{"fake-g.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	adapter.waitForFetch(t, "London/1")

	require.NoError(t, svc.CancelJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)

	assert.Error(t, svc.StartJob(ctx, job.ID))
	assert.Error(t, svc.ResumeJob(ctx, job.ID))
	assert.Error(t, svc.PauseJob(ctx, job.ID))

	// force start is the only way back from terminal
	close(gate)
	require.NoError(t, svc.ForceStartJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	got, err = store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 5, got.BusinessesScraped)
}

func TestCreateJobValidationAndAdmission(t *testing.T) {
	svc, _ := newTestService(t, &fakeFactory{})
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, &models.CreateJobRequest{Domains: []string{"x.test"}})
	assert.Error(t, err, "name is required")

	_, err = svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:    "Two domains",
		Domains: []string{"a.test", "b.test"},
	})
	assert.Error(t, err, "exactly one domain per job")

	first, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:    "Holder",
		Domains: []string{"held.test"},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultConcurrentRequests, first.ConcurrentRequests)
	assert.Equal(t, defaultRequestDelay, first.RequestDelay)
	assert.Equal(t, 1, first.CurrentPage)

	// a pending job holds its domain
	_, err = svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:    "Contender",
		Domains: []string{"held.test"},
	})
	require.Error(t, err)
	var busy *registry.DomainBusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, first.ID, busy.ExistingJobID)
}

func TestUpdateSettings(t *testing.T) {
	svc, store := newTestService(t, &fakeFactory{})
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:    "Tunable",
		Domains: []string{"tune.test"},
	})
	require.NoError(t, err)

	_, err = svc.UpdateSettings(ctx, job.ID, &models.JobSettingsUpdate{})
	assert.Error(t, err, "empty update is refused")

	tooMany := 50
	_, err = svc.UpdateSettings(ctx, job.ID, &models.JobSettingsUpdate{ConcurrentRequests: &tooMany})
	assert.Error(t, err, "out of range concurrency is refused")

	concurrent := 9
	delay := 2.5
	updated, err := svc.UpdateSettings(ctx, job.ID, &models.JobSettingsUpdate{
		ConcurrentRequests: &concurrent,
		RequestDelay:       &delay,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.ConcurrentRequests)
	assert.Equal(t, 2.5, updated.RequestDelay)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.ConcurrentRequests)
}

func TestDeleteJobRemovesProgress(t *testing.T) {
	adapter := &fakeAdapter{
		domain: "fake-h.test",
		cities: []models.City{{Name: "Oslo", URL: "https://fake-h.test/location/oslo"}},
		pages:  map[string][][]string{"Oslo": listingPages("fake-h.test", "Oslo", 1, 3)},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "Norway Directory",
		Domains:      []string{"fake-h.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	waitSettled(t, svc, job.ID)

	records, err := store.Progress().ListForJob(ctx, job.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	require.NoError(t, svc.DeleteJob(ctx, job.ID))

	_, err = store.Jobs().Get(ctx, job.ID)
	assert.Error(t, err)
	records, err = store.Progress().ListForJob(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	// scraped data outlives the job
	count, err := store.Businesses().Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDeleteJobRefusedWhileRunning(t *testing.T) {
	gate := make(chan struct{})
	adapter := &fakeAdapter{
		domain:  "fake-i.test",
		cities:  []models.City{{Name: "Cairo", URL: "https://fake-i.test/location/cairo"}},
		pages:   map[string][][]string{"Cairo": listingPages("fake-i.test", "Cairo", 1, 3)},
		blockOn: map[string]chan struct{}{"Cairo/1": gate},
	}
	svc, _ := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "Egypt Directory",
		Domains:      []string{"fake-i.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	adapter.waitForFetch(t, "Cairo/1")

	assert.Error(t, svc.DeleteJob(ctx, job.ID))

	close(gate)
	waitSettled(t, svc, job.ID)
	require.NoError(t, svc.DeleteJob(ctx, job.ID))
}

func TestShutdownPausesRunningJobs(t *testing.T) {
	gate := make(chan struct{})
	adapter := &fakeAdapter{
		domain:  "fake-j.test",
		cities:  []models.City{{Name: "Lima", URL: "https://fake-j.test/location/lima"}},
		pages:   map[string][][]string{"Lima": listingPages("fake-j.test", "Lima", 2, 5)},
		blockOn: map[string]chan struct{}{"Lima/1": gate},
	}
	svc, store := newTestService(t, singleAdapterFactory(adapter))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name:         "Peru Directory",
		Domains:      []string{"fake-j.test"},
		RequestDelay: 0.1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.StartJob(ctx, job.ID))
	adapter.waitForFetch(t, "Lima/1")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(shutCtx))
	close(gate)

	got, err := store.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonServerRestart, got.PauseReason)
	require.NotNil(t, got.PausedAt)
	assert.Empty(t, svc.ActiveJobIDs())
}
