// -----------------------------------------------------------------------
// Business Handler - scraped business listings, stats and export marks
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

const (
	// defaultBusinessPageSize is the limit applied when a listing omits one.
	defaultBusinessPageSize = 50

	// groupStatLimit caps the by-city and by-category breakdowns.
	groupStatLimit = 20
)

// groupCount is one row of a by-city or by-category breakdown
type groupCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// markExportedRequest selects businesses to stamp with an export mark.
// An empty filter marks every stored record.
type markExportedRequest struct {
	JobID      string `json:"job_id,omitempty"`
	Domain     string `json:"domain,omitempty"`
	City       string `json:"city,omitempty"`
	Category   string `json:"category,omitempty"`
	ExportMode string `json:"export_mode,omitempty"`
}

// BusinessHandler handles HTTP requests for scraped business data
type BusinessHandler struct {
	businesses interfaces.BusinessStore
	jobs       interfaces.JobStore
	logger     arbor.ILogger
}

// NewBusinessHandler creates a new business data handler
func NewBusinessHandler(store interfaces.StorageManager, logger arbor.ILogger) *BusinessHandler {
	return &BusinessHandler{
		businesses: store.Businesses(),
		jobs:       store.Jobs(),
		logger:     logger,
	}
}

// businessIDFromPath extracts the record ID from /api/businesses/{id}
func businessIDFromPath(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// businessFilterFromQuery builds a store filter from list query parameters
func businessFilterFromQuery(r *http.Request) (*interfaces.BusinessFilter, error) {
	q := r.URL.Query()
	skip, limit := GetSkipLimit(r, defaultBusinessPageSize)

	dateFrom, err := GetQueryTime(r, "date_from")
	if err != nil {
		return nil, err
	}
	dateTo, err := GetQueryTime(r, "date_to")
	if err != nil {
		return nil, err
	}

	return &interfaces.BusinessFilter{
		Domain:   q.Get("domain"),
		City:     q.Get("city"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Skip:     skip,
		Limit:    limit,
	}, nil
}

// ListBusinessesHandler lists scraped businesses, newest first.
// GET /api/businesses?domain=&city=&category=&search=&date_from=&date_to=&skip=&limit=
func (h *BusinessHandler) ListBusinessesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	filter, err := businessFilterFromQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	businesses, err := h.businesses.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list businesses")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, businesses)
}

// GetBusinessHandler returns one business record by ID.
// GET /api/businesses/{id}
func (h *BusinessHandler) GetBusinessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := businessIDFromPath(r)
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Business ID is required")
		return
	}

	business, err := h.businesses.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, business)
}

// StatsSummaryHandler returns aggregate counts over all stored businesses.
// GET /api/businesses/stats/summary
func (h *BusinessHandler) StatsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.businesses.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute business stats")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_businesses":        stats.TotalBusinesses,
		"unique_cities_count":     len(stats.UniqueCities),
		"unique_categories_count": len(stats.UniqueCategories),
		"unique_domains_count":    len(stats.UniqueDomains),
		"unique_cities":           stats.UniqueCities,
		"unique_categories":       stats.UniqueCategories,
		"unique_domains":          stats.UniqueDomains,
	})
}

// ByCityHandler returns the top cities by business count.
// GET /api/businesses/stats/by-city
func (h *BusinessHandler) ByCityHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	counts, err := h.businesses.CountByCity(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count businesses by city")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, topGroups(counts, groupStatLimit))
}

// ByCategoryHandler returns the top categories by business count.
// GET /api/businesses/stats/by-category
func (h *BusinessHandler) ByCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	counts, err := h.businesses.CountByCategory(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count businesses by category")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, topGroups(counts, groupStatLimit))
}

// MarkExportedHandler stamps matching businesses with an export mode
// and timestamp.
// POST /api/businesses/mark-exported
func (h *BusinessHandler) MarkExportedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req markExportedRequest
	if !DecodeBody(w, r, &req) {
		return
	}

	mode := req.ExportMode
	if mode == "" {
		mode = "api"
	}
	if mode != "api" && mode != "json" {
		WriteError(w, http.StatusBadRequest, "export_mode must be \"api\" or \"json\"")
		return
	}

	filter := &interfaces.BusinessFilter{
		Domain:   req.Domain,
		City:     req.City,
		Category: req.Category,
	}

	// A job ID stands in for its domain; an explicit domain wins.
	if req.JobID != "" && filter.Domain == "" {
		job, err := h.jobs.Get(r.Context(), req.JobID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if len(job.Domains) > 0 {
			filter.Domain = job.Domains[0]
		}
	}

	updated, err := h.businesses.MarkExported(r.Context(), filter, mode, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to mark businesses exported")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Int("updated", updated).
		Str("mode", mode).
		Str("domain", filter.Domain).
		Msg("Businesses marked exported")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Businesses marked as exported",
		"updated_count": updated,
	})
}

// topGroups sorts a name->count map descending and keeps the first n.
// Ties break alphabetically so the order is stable.
func topGroups(counts map[string]int, n int) []groupCount {
	groups := make([]groupCount, 0, len(counts))
	for name, count := range counts {
		groups = append(groups, groupCount{Name: name, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Name < groups[j].Name
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}
