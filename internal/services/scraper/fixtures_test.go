package scraper

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/events"
	"github.com/ternarybob/indago/internal/services/registry"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// fakeAdapter serves scripted cities and listing pages. Listing
// fetches can be blocked on a gate channel or fail with an injected
// error, keyed by "city/page".
type fakeAdapter struct {
	domain string
	cities []models.City
	pages  map[string][][]string

	blockOn map[string]chan struct{}

	mu          sync.Mutex
	fetches     map[string]int
	detailHits  int
	citiesErr   error
	listingsErr map[string]error
}

func (f *fakeAdapter) Domain() string { return f.domain }

func (f *fakeAdapter) Cities(ctx context.Context) ([]models.City, error) {
	if f.citiesErr != nil {
		return nil, f.citiesErr
	}
	return f.cities, nil
}

func (f *fakeAdapter) Listings(ctx context.Context, city models.City, page int) ([]string, bool, error) {
	key := fmt.Sprintf("%s/%d", city.Name, page)

	f.mu.Lock()
	if f.fetches == nil {
		f.fetches = make(map[string]int)
	}
	f.fetches[key]++
	gate := f.blockOn[key]
	err := f.listingsErr[key]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if err != nil {
		return nil, false, err
	}

	cityPages := f.pages[city.Name]
	if page > len(cityPages) {
		return nil, false, nil
	}
	return cityPages[page-1], page < len(cityPages), nil
}

func (f *fakeAdapter) Details(ctx context.Context, pageURL string) (*models.Business, error) {
	f.mu.Lock()
	f.detailHits++
	f.mu.Unlock()

	slug := pageURL[strings.LastIndex(pageURL, "/")+1:]
	return &models.Business{
		Name:    "Business " + slug,
		PageURL: pageURL,
		Domain:  f.domain,
	}, nil
}

func (f *fakeAdapter) fetchCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[key]
}

func (f *fakeAdapter) detailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailHits
}

func (f *fakeAdapter) setListingsErr(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listingsErr == nil {
		f.listingsErr = make(map[string]error)
	}
	f.listingsErr[key] = err
}

// waitForFetch blocks until the adapter has seen at least one listing
// fetch for the key.
func (f *fakeAdapter) waitForFetch(t *testing.T, key string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if f.fetchCount(key) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for listing fetch %s", key)
}

// fakeFactory hands out scripted adapters by base URL
type fakeFactory struct {
	adapters map[string]*fakeAdapter
}

func singleAdapterFactory(a *fakeAdapter) *fakeFactory {
	return &fakeFactory{adapters: map[string]*fakeAdapter{a.domain: a}}
}

func (f *fakeFactory) ForDomain(baseURL string) (interfaces.SiteAdapter, error) {
	a, ok := f.adapters[baseURL]
	if !ok {
		return nil, fmt.Errorf("no adapter scripted for %s", baseURL)
	}
	return a, nil
}

// listingPages builds page slices of profile URLs for a city
func listingPages(domain, city string, pages, perPage int) [][]string {
	out := make([][]string, pages)
	slug := strings.ToLower(strings.ReplaceAll(city, " ", "-"))
	for p := 0; p < pages; p++ {
		urls := make([]string, perPage)
		for i := 0; i < perPage; i++ {
			urls[i] = fmt.Sprintf("https://%s/company/%s-%d-%d", domain, slug, p+1, i+1)
		}
		out[p] = urls
	}
	return out
}

func newTestService(t *testing.T, factory interfaces.AdapterFactory) (*Service, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	store, err := badger.NewManager(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewService(logger)
	t.Cleanup(func() { bus.Close() })

	reg := registry.NewService(store.Jobs(), logger)
	svc := NewService(store, reg, factory, bus, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	return svc, store
}

// waitSettled blocks until the job's supervisor has exited
func waitSettled(t *testing.T, svc *Service, jobID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitForJob(ctx, jobID))
}
