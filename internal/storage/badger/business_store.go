package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// BusinessStore implements the BusinessStore interface for Badger.
// Records are keyed on (domain, page_url) so the same profile page can
// never be stored twice.
type BusinessStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBusinessStore creates a new BusinessStore instance
func NewBusinessStore(db *BadgerDB, logger arbor.ILogger) interfaces.BusinessStore {
	return &BusinessStore{
		db:     db,
		logger: logger,
	}
}

func (s *BusinessStore) Insert(ctx context.Context, b *models.Business) error {
	if b.Domain == "" || b.PageURL == "" {
		return fmt.Errorf("business domain and page URL are required")
	}
	if b.ID == "" {
		return fmt.Errorf("business ID is required")
	}

	if err := s.db.Store().Insert(b.Key(), b); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("%w: %s", interfaces.ErrBusinessExists, b.Key())
		}
		return fmt.Errorf("failed to insert business: %w", err)
	}
	return nil
}

func (s *BusinessStore) Exists(ctx context.Context, domain, pageURL string) (bool, error) {
	var existing models.Business
	err := s.db.Store().Get(models.BusinessKey(domain, pageURL), &existing)
	if err == nil {
		return true, nil
	}
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to check business existence: %w", err)
}

func (s *BusinessStore) GetByID(ctx context.Context, id string) (*models.Business, error) {
	var businesses []models.Business
	if err := s.db.Store().Find(&businesses, badgerhold.Where("ID").Eq(id).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	if len(businesses) == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrBusinessNotFound, id)
	}
	return &businesses[0], nil
}

// findFiltered loads businesses matching the filter in store order.
// Exact and range criteria run in BadgerHold; the substring matches
// (city, category, free-text search) run in memory since BadgerHold has
// no substring operator. Callers that care about order sort the result.
func (s *BusinessStore) findFiltered(filter *interfaces.BusinessFilter) ([]models.Business, error) {
	query := badgerhold.Where("PageURL").Ne("")
	if filter != nil {
		if filter.Domain != "" {
			query = badgerhold.Where("Domain").Eq(filter.Domain)
		}
		if filter.DateFrom != nil {
			query = query.And("ScrapedAt").Ge(*filter.DateFrom)
		}
		if filter.DateTo != nil {
			query = query.And("ScrapedAt").Le(*filter.DateTo)
		}
	}

	var businesses []models.Business
	if err := s.db.Store().Find(&businesses, query); err != nil {
		return nil, fmt.Errorf("failed to find businesses: %w", err)
	}

	if filter != nil && (filter.City != "" || filter.Category != "" || filter.Search != "") {
		city := strings.ToLower(filter.City)
		category := strings.ToLower(filter.Category)
		search := strings.ToLower(filter.Search)

		matched := businesses[:0]
		for _, b := range businesses {
			if city != "" && !strings.Contains(strings.ToLower(b.City), city) {
				continue
			}
			if category != "" && !strings.Contains(strings.ToLower(b.Category), category) {
				continue
			}
			if search != "" && !businessMatchesSearch(&b, search) {
				continue
			}
			matched = append(matched, b)
		}
		businesses = matched
	}

	return businesses, nil
}

func businessMatchesSearch(b *models.Business, needle string) bool {
	return strings.Contains(strings.ToLower(b.Name), needle) ||
		strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Description), needle)
}

// paginateBusinesses applies skip/limit to an already-sorted slice.
func paginateBusinesses(businesses []models.Business, skip, limit int) []*models.Business {
	if skip > len(businesses) {
		skip = len(businesses)
	}
	end := len(businesses)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}

	result := make([]*models.Business, 0, end-skip)
	for i := skip; i < end; i++ {
		b := businesses[i]
		result = append(result, &b)
	}
	return result
}

func (s *BusinessStore) List(ctx context.Context, filter *interfaces.BusinessFilter) ([]*models.Business, error) {
	businesses, err := s.findFiltered(filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(businesses, func(i, j int) bool {
		return businesses[i].ScrapedAt.After(businesses[j].ScrapedAt)
	})

	skip, limit := 0, 0
	if filter != nil {
		skip, limit = filter.Skip, filter.Limit
	}
	return paginateBusinesses(businesses, skip, limit), nil
}

func (s *BusinessStore) ListForExport(ctx context.Context, filter *interfaces.BusinessFilter) ([]*models.Business, error) {
	businesses, err := s.findFiltered(filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(businesses, func(i, j int) bool {
		return businesses[i].ScrapedAt.Before(businesses[j].ScrapedAt)
	})

	skip, limit := 0, 0
	if filter != nil {
		skip, limit = filter.Skip, filter.Limit
	}
	return paginateBusinesses(businesses, skip, limit), nil
}

func (s *BusinessStore) Count(ctx context.Context, filter *interfaces.BusinessFilter) (int, error) {
	if filter == nil || (filter.City == "" && filter.Category == "" && filter.Search == "" &&
		filter.DateFrom == nil && filter.DateTo == nil) {
		var query *badgerhold.Query
		if filter != nil && filter.Domain != "" {
			query = badgerhold.Where("Domain").Eq(filter.Domain)
		}
		count, err := s.db.Store().Count(&models.Business{}, query)
		if err != nil {
			return 0, fmt.Errorf("failed to count businesses: %w", err)
		}
		return int(count), nil
	}

	businesses, err := s.findFiltered(filter)
	if err != nil {
		return 0, err
	}
	return len(businesses), nil
}

func (s *BusinessStore) Stats(ctx context.Context) (*interfaces.BusinessStats, error) {
	cities := make(map[string]struct{})
	categories := make(map[string]struct{})
	domains := make(map[string]struct{})
	total := 0

	err := s.db.Store().ForEach(nil, func(b *models.Business) error {
		total++
		if b.City != "" {
			cities[b.City] = struct{}{}
		}
		if b.Category != "" {
			categories[b.Category] = struct{}{}
		}
		if b.Domain != "" {
			domains[b.Domain] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate business stats: %w", err)
	}

	return &interfaces.BusinessStats{
		TotalBusinesses:  total,
		UniqueCities:     sortedKeys(cities),
		UniqueCategories: sortedKeys(categories),
		UniqueDomains:    sortedKeys(domains),
	}, nil
}

func (s *BusinessStore) CountByCity(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.Store().ForEach(nil, func(b *models.Business) error {
		if b.City != "" {
			counts[b.City]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count businesses by city: %w", err)
	}
	return counts, nil
}

func (s *BusinessStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.Store().ForEach(nil, func(b *models.Business) error {
		if b.Category != "" {
			counts[b.Category]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count businesses by category: %w", err)
	}
	return counts, nil
}

// CityStats aggregates per-city totals for one domain, busiest city
// first.
func (s *BusinessStore) CityStats(ctx context.Context, domain string) ([]interfaces.CityStat, error) {
	totals := make(map[string]int)
	exported := make(map[string]int)

	err := s.db.Store().ForEach(badgerhold.Where("Domain").Eq(domain), func(b *models.Business) error {
		city := b.City
		if city == "" {
			city = "Unknown"
		}
		totals[city]++
		if b.ExportedAt != nil {
			exported[city]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate city stats: %w", err)
	}

	stats := make([]interfaces.CityStat, 0, len(totals))
	for city, total := range totals {
		stats = append(stats, interfaces.CityStat{
			City:     city,
			Total:    total,
			Exported: exported[city],
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Total != stats[j].Total {
			return stats[i].Total > stats[j].Total
		}
		return stats[i].City < stats[j].City
	})
	return stats, nil
}

func (s *BusinessStore) MarkExported(ctx context.Context, filter *interfaces.BusinessFilter, mode string, at time.Time) (int, error) {
	businesses, err := s.findFiltered(filter)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range businesses {
		businesses[i].ExportedAt = &at
		businesses[i].ExportMode = mode
		if err := s.db.Store().Upsert(businesses[i].Key(), &businesses[i]); err != nil {
			s.logger.Warn().Err(err).Str("business", businesses[i].Key()).Msg("Failed to mark business exported")
			continue
		}
		count++
	}
	return count, nil
}

func (s *BusinessStore) CountScrapedSince(ctx context.Context, since time.Time) (int, error) {
	count, err := s.db.Store().Count(&models.Business{}, badgerhold.Where("ScrapedAt").Ge(since))
	if err != nil {
		return 0, fmt.Errorf("failed to count recent businesses: %w", err)
	}
	return int(count), nil
}

func (s *BusinessStore) LastScrapedAt(ctx context.Context) (*time.Time, error) {
	var businesses []models.Business
	err := s.db.Store().Find(&businesses, badgerhold.Where("PageURL").Ne("").SortBy("ScrapedAt").Reverse().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find last scraped business: %w", err)
	}
	if len(businesses) == 0 {
		return nil, nil
	}
	t := businesses[0].ScrapedAt
	return &t, nil
}

func (s *BusinessStore) CountDomainsWithData(ctx context.Context) (int, error) {
	domains := make(map[string]struct{})
	err := s.db.Store().ForEach(nil, func(b *models.Business) error {
		if b.Domain != "" {
			domains[b.Domain] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count domains with data: %w", err)
	}
	return len(domains), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
