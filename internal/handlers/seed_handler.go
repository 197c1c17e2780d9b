package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/services/seeding"
)

// SeedHandler handles HTTP requests for catalog-driven job seeding
type SeedHandler struct {
	seeder *seeding.Service
	logger arbor.ILogger
}

// NewSeedHandler creates a new seeding handler
func NewSeedHandler(seeder *seeding.Service, logger arbor.ILogger) *SeedHandler {
	return &SeedHandler{
		seeder: seeder,
		logger: logger,
	}
}

// SeedJobsHandler creates one pending job per catalog country.
// POST /api/scrape/seed-jobs?overwrite=
func (h *SeedHandler) SeedJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	overwrite := GetQueryBool(r, "overwrite")
	result, err := h.seeder.SeedJobs(r.Context(), overwrite)
	if err != nil {
		h.logger.Error().Err(err).Bool("overwrite", overwrite).Msg("Job seeding failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Job seeding completed",
		"results": result,
	})
}

// CountriesSummaryHandler lists the seeding catalog grouped by region.
// GET /api/scrape/countries-summary
func (h *SeedHandler) CountriesSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, h.seeder.CountriesSummary())
}

// SeededJobsStatusHandler groups seeded jobs by region with per-status
// counts.
// GET /api/scrape/seeded-jobs-status
func (h *SeedHandler) SeededJobsStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.seeder.SeededJobsStatus(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build seeded jobs status")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}
