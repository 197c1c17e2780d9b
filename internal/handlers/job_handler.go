// -----------------------------------------------------------------------
// Job Handler - scrape job lifecycle and status endpoints
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/registry"
)

// defaultJobPageSize is the limit applied when a job listing omits one.
const defaultJobPageSize = 20

// JobHandler handles HTTP requests for scrape job management
type JobHandler struct {
	scraper    interfaces.ScraperService
	registry   *registry.Service
	businesses interfaces.BusinessStore
	progress   interfaces.ProgressStore
	logger     arbor.ILogger
}

// NewJobHandler creates a new scrape job handler
func NewJobHandler(scraper interfaces.ScraperService, reg *registry.Service, store interfaces.StorageManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		scraper:    scraper,
		registry:   reg,
		businesses: store.Businesses(),
		progress:   store.Progress(),
		logger:     logger,
	}
}

// jobIDFromPath extracts the job ID from /api/scrape/jobs/{id}[/action]
func jobIDFromPath(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// CreateJobHandler creates a new scrape job.
// POST /api/scrape/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.CreateJobRequest
	if !DecodeBody(w, r, &req) {
		return
	}

	job, err := h.scraper.CreateJob(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("name", req.Name).Msg("Failed to create scrape job")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"job_id":  job.ID,
		"message": "Job created successfully",
	})
}

// ListJobsHandler lists scrape jobs, newest first.
// GET /api/scrape/jobs?skip=&limit=&status=
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	skip, limit := GetSkipLimit(r, defaultJobPageSize)
	opts := &interfaces.JobListOptions{
		Status: r.URL.Query().Get("status"),
		Skip:   skip,
		Limit:  limit,
	}

	jobs, err := h.scraper.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list scrape jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, jobs)
}

// SearchJobsHandler filters and sorts jobs with a total count.
// GET /api/scrape/jobs/search?domain=&status=&region=&country=&sort_by=&sort_order=&skip=&limit=
func (h *JobHandler) SearchJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	q := r.URL.Query()
	skip, limit := GetSkipLimit(r, defaultJobPageSize)

	sortBy := q.Get("sort_by")
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := q.Get("sort_order")
	if sortOrder == "" {
		sortOrder = "desc"
	}

	opts := &interfaces.JobSearchOptions{
		Domain:    q.Get("domain"),
		Status:    q.Get("status"),
		Region:    q.Get("region"),
		Country:   q.Get("country"),
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Skip:      skip,
		Limit:     limit,
	}

	result, err := h.scraper.SearchJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to search scrape jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":        result.Jobs,
		"total_count": result.TotalCount,
		"has_more":    result.HasMore,
	})
}

// StatusSummaryHandler aggregates job states for the operations view.
// GET /api/scrape/jobs/status-summary
func (h *JobHandler) StatusSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	summary, err := h.scraper.StatusSummary(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build status summary")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// StatsHandler returns the dashboard headline figures.
// GET /api/scrape/stats
func (h *JobHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.scraper.DashboardStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build dashboard stats")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// AvailableDomainsHandler lists catalog domains not held by active jobs.
// GET /api/scrape/available-domains
func (h *JobHandler) AvailableDomainsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	availability, err := h.registry.Available(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute available domains")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, availability)
}

// JobStatusHandler returns one stored job with its latest checkpoint.
// GET /api/scrape/jobs/{id}/status
func (h *JobHandler) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.scraper.JobStatus(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	latest, err := h.progress.LatestForJob(r.Context(), jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to load latest progress record")
		latest = nil
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":             job,
		"latest_progress": latest,
	})
}

// JobDetailsHandler returns one job with its per-city business counts,
// a sample of the latest scraped records and recent progress checkpoints.
// GET /api/scrape/jobs/{id}/details
func (h *JobHandler) JobDetailsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.scraper.JobStatus(ctx, jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	domain := ""
	if len(job.Domains) > 0 {
		domain = job.Domains[0]
	}

	cityStats, err := h.businesses.CityStats(ctx, domain)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load city stats")
		WriteServiceError(w, err)
		return
	}

	latest, err := h.businesses.List(ctx, &interfaces.BusinessFilter{Domain: domain, Limit: 10})
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load latest businesses")
		WriteServiceError(w, err)
		return
	}

	recent, err := h.progress.ListForJob(ctx, jobID, 10)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to load progress records")
		recent = nil
	}

	totalScraped, totalExported := 0, 0
	for _, stat := range cityStats {
		totalScraped += stat.Total
		totalExported += stat.Exported
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":                       job,
		"city_stats":                cityStats,
		"latest_businesses":         latest,
		"recent_progress":           recent,
		"total_scraped_businesses":  totalScraped,
		"total_exported_businesses": totalExported,
	})
}

// StartJobHandler starts a pending or paused job.
// POST /api/scrape/jobs/{id}/start
func (h *JobHandler) StartJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.scraper.StartJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to start job")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Job started successfully")
}

// ForceStartJobHandler restarts a job from any status, displacing a
// live supervisor first.
// POST /api/scrape/jobs/{id}/force-start
func (h *JobHandler) ForceStartJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.scraper.ForceStartJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to force start job")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Job force started successfully")
}

// PauseJobHandler pauses a running job.
// POST /api/scrape/jobs/{id}/pause
func (h *JobHandler) PauseJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.scraper.PauseJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to pause job")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Job paused successfully")
}

// ResumeJobHandler resumes a paused job from its persisted cursor.
// POST /api/scrape/jobs/{id}/resume
func (h *JobHandler) ResumeJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.scraper.ResumeJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to resume job")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Job resumed successfully")
}

// CancelJobHandler cancels a running or paused job.
// POST /api/scrape/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.scraper.CancelJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to cancel job")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Job cancelled successfully")
}

// UpdateSettingsHandler changes the politeness settings of a job.
// PUT /api/scrape/jobs/{id}/settings
func (h *JobHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	var update models.JobSettingsUpdate
	if !DecodeBody(w, r, &update) {
		return
	}

	job, err := h.scraper.UpdateSettings(r.Context(), jobID, &update)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to update job settings")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Job settings updated successfully",
		"job":     job,
	})
}

// DeleteJobHandler removes a job and its progress records.
// DELETE /api/scrape/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.scraper.DeleteJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Job deleted successfully")
}

// PauseAllHandler pauses every running job.
// POST /api/scrape/jobs/pause-all
func (h *JobHandler) PauseAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	count, err := h.scraper.PauseAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to pause all jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Paused running jobs",
		"paused_count": count,
	})
}

// ResumeAllHandler resumes every paused job.
// POST /api/scrape/jobs/resume-all
func (h *JobHandler) ResumeAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	count, err := h.scraper.ResumeAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to resume all jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Resumed paused jobs",
		"resumed_count": count,
	})
}

// ResumeNetworkPausedHandler resumes only jobs paused by network errors.
// POST /api/scrape/jobs/resume-network-paused
func (h *JobHandler) ResumeNetworkPausedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	count, err := h.scraper.ResumeNetworkPaused(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to resume network-paused jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Resumed network-paused jobs",
		"resumed_count": count,
	})
}

// RestartZeroExtractionHandler force-restarts terminal jobs that never
// saved a business.
// POST /api/scrape/jobs/restart-zero-extraction
func (h *JobHandler) RestartZeroExtractionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	count, err := h.scraper.RestartZeroExtraction(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to restart zero-extraction jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Restarted zero-extraction jobs",
		"restarted_count": count,
	})
}
