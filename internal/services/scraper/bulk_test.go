package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

func TestRestartZeroExtraction(t *testing.T) {
	svc, store := newTestService(t, &fakeFactory{})
	ctx := context.Background()
	now := time.Now()

	jobs := []*models.ScrapeJob{
		{
			// finished with data: untouched
			ID: "rz-with-data", Name: "Has data", Domains: []string{"one.test"},
			Status: models.JobStatusFailed, BusinessesScraped: 12, TotalBusinesses: 40,
			CurrentCity: "Lagos", CurrentPage: 7, CompletedAt: &now, CreatedAt: now,
			Errors: []string{"boom"},
		},
		{
			// finished empty: reset to pending
			ID: "rz-empty", Name: "Empty run", Domains: []string{"two.test"},
			Status: models.JobStatusCompleted, BusinessesScraped: 0,
			TotalCities: 9, CitiesCompleted: 9, TotalBusinesses: 3,
			CurrentDomain: "two.test", CurrentCity: "Cairo", CurrentPage: 4,
			StartedAt: &now, CompletedAt: &now, LastProgressTimestamp: &now,
			Errors: []string{"no profiles parsed"}, CreatedAt: now,
		},
		{
			// still pending: not a finished job, untouched
			ID: "rz-pending", Name: "Waiting", Domains: []string{"three.test"},
			Status: models.JobStatusPending, CreatedAt: now,
		},
	}
	for _, j := range jobs {
		require.NoError(t, store.Jobs().Save(ctx, j))
	}

	reset, err := svc.RestartZeroExtraction(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := store.Jobs().Get(ctx, "rz-empty")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, 0, got.CitiesCompleted)
	assert.Equal(t, 0, got.BusinessesScraped)
	assert.Equal(t, "", got.CurrentDomain)
	assert.Equal(t, "", got.CurrentCity)
	assert.Equal(t, 1, got.CurrentPage)
	assert.Empty(t, got.Errors)
	// discovery totals and the cursor timestamp survive the reset
	assert.Equal(t, 9, got.TotalCities)
	assert.Equal(t, 3, got.TotalBusinesses)
	require.NotNil(t, got.LastProgressTimestamp)

	withData, err := store.Jobs().Get(ctx, "rz-with-data")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, withData.Status)
	assert.Equal(t, 12, withData.BusinessesScraped)

	pending, err := store.Jobs().Get(ctx, "rz-pending")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, pending.Status)
}

func TestPauseAllAndResumeAll(t *testing.T) {
	gateA := make(chan struct{})
	gateB := make(chan struct{})
	adapterA := &fakeAdapter{
		domain:  "bulk-a.test",
		cities:  []models.City{{Name: "Doha", URL: "https://bulk-a.test/location/doha"}},
		pages:   map[string][][]string{"Doha": listingPages("bulk-a.test", "Doha", 1, 3)},
		blockOn: map[string]chan struct{}{"Doha/1": gateA},
	}
	adapterB := &fakeAdapter{
		domain:  "bulk-b.test",
		cities:  []models.City{{Name: "Muscat", URL: "https://bulk-b.test/location/muscat"}},
		pages:   map[string][][]string{"Muscat": listingPages("bulk-b.test", "Muscat", 1, 3)},
		blockOn: map[string]chan struct{}{"Muscat/1": gateB},
	}
	factory := &fakeFactory{adapters: map[string]*fakeAdapter{
		"bulk-a.test": adapterA,
		"bulk-b.test": adapterB,
	}}
	svc, store := newTestService(t, factory)
	ctx := context.Background()

	jobA, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name: "Qatar Directory", Domains: []string{"bulk-a.test"}, RequestDelay: 0.1,
	})
	require.NoError(t, err)
	jobB, err := svc.CreateJob(ctx, &models.CreateJobRequest{
		Name: "Oman Directory", Domains: []string{"bulk-b.test"}, RequestDelay: 0.1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.StartJob(ctx, jobA.ID))
	require.NoError(t, svc.StartJob(ctx, jobB.ID))
	adapterA.waitForFetch(t, "Doha/1")
	adapterB.waitForFetch(t, "Muscat/1")

	paused, err := svc.PauseAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, paused)
	waitSettled(t, svc, jobA.ID)
	waitSettled(t, svc, jobB.ID)
	close(gateA)
	close(gateB)

	for _, id := range []string{jobA.ID, jobB.ID} {
		got, err := store.Jobs().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPaused, got.Status)
		assert.Equal(t, models.PauseReasonManual, got.PauseReason)
	}

	resumed, err := svc.ResumeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed)
	waitSettled(t, svc, jobA.ID)
	waitSettled(t, svc, jobB.ID)

	for _, id := range []string{jobA.ID, jobB.ID} {
		got, err := store.Jobs().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		assert.Equal(t, 3, got.BusinessesScraped)
	}
}

func TestStatusSummary(t *testing.T) {
	svc, store := newTestService(t, &fakeFactory{})
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	seed := []*models.ScrapeJob{
		{ID: "ss-1", Name: "Running", Status: models.JobStatusRunning, CreatedAt: base},
		{ID: "ss-2", Name: "Manual pause", Status: models.JobStatusPaused, PauseReason: models.PauseReasonManual, CreatedAt: base.Add(time.Minute)},
		{ID: "ss-3", Name: "Net pause", Status: models.JobStatusPaused, PauseReason: models.PauseReasonNetworkError, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "ss-4", Name: "Done", Status: models.JobStatusCompleted, CitiesCompleted: 4, TotalCities: 4, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "ss-5", Name: "Pending", Status: models.JobStatusPending, CreatedAt: base.Add(4 * time.Minute)},
		{ID: "ss-6", Name: "Newest", Status: models.JobStatusPending, CreatedAt: base.Add(5 * time.Minute)},
	}
	for _, j := range seed {
		require.NoError(t, store.Jobs().Save(ctx, j))
	}

	summary, err := svc.StatusSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.TotalJobs)
	assert.Equal(t, 1, summary.StatusCounts[models.JobStatusRunning])
	assert.Equal(t, 2, summary.StatusCounts[models.JobStatusPaused])
	assert.Equal(t, 2, summary.StatusCounts[models.JobStatusPending])
	assert.Equal(t, 1, summary.NetworkPausedCount)

	require.Len(t, summary.RecentJobs, 5)
	assert.Equal(t, "ss-6", summary.RecentJobs[0].ID, "newest first")
	assert.Equal(t, "4/4", recentByID(summary.RecentJobs, "ss-4").Progress)
}

func TestDashboardStats(t *testing.T) {
	svc, store := newTestService(t, &fakeFactory{})
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Jobs().Save(ctx, &models.ScrapeJob{
		ID: "db-1", Name: "Running", Status: models.JobStatusRunning, CreatedAt: now,
	}))
	require.NoError(t, store.Jobs().Save(ctx, &models.ScrapeJob{
		ID: "db-2", Name: "Done", Status: models.JobStatusCompleted, CreatedAt: now,
	}))

	old := now.Add(-48 * time.Hour)
	businesses := []*models.Business{
		{ID: common.NewBusinessID(), Name: "Fresh", Domain: "a.test", PageURL: "https://a.test/company/1", ScrapedAt: now},
		{ID: common.NewBusinessID(), Name: "Fresh too", Domain: "a.test", PageURL: "https://a.test/company/2", ScrapedAt: now},
		{ID: common.NewBusinessID(), Name: "Old", Domain: "b.test", PageURL: "https://b.test/company/1", ScrapedAt: old},
	}
	for _, b := range businesses {
		require.NoError(t, store.Businesses().Insert(ctx, b))
	}

	stats, err := svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 1, stats.ActiveJobs)
	assert.Equal(t, 3, stats.TotalBusinesses)
	assert.Equal(t, 2, stats.BusinessesToday)
	assert.Equal(t, 2, stats.DomainsConfigured)
	require.NotNil(t, stats.LastScrape)
	assert.WithinDuration(t, now, *stats.LastScrape, 2*time.Second)
}

func recentByID(jobs []interfaces.RecentJob, id string) interfaces.RecentJob {
	for _, j := range jobs {
		if j.ID == id {
			return j
		}
	}
	return interfaces.RecentJob{}
}
