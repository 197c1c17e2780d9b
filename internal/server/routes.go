package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes. Exact paths are registered
// directly; per-resource paths go through prefix handlers that dispatch
// on method and path suffix.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - scrape job collection, search and bulk controls
	mux.HandleFunc("/api/scrape/jobs", s.handleJobCollection)
	mux.HandleFunc("/api/scrape/jobs/search", s.app.JobHandler.SearchJobsHandler)
	mux.HandleFunc("/api/scrape/jobs/status-summary", s.app.JobHandler.StatusSummaryHandler)
	mux.HandleFunc("/api/scrape/jobs/pause-all", s.app.JobHandler.PauseAllHandler)
	mux.HandleFunc("/api/scrape/jobs/resume-all", s.app.JobHandler.ResumeAllHandler)
	mux.HandleFunc("/api/scrape/jobs/resume-network-paused", s.app.JobHandler.ResumeNetworkPausedHandler)
	mux.HandleFunc("/api/scrape/jobs/restart-zero-extraction", s.app.JobHandler.RestartZeroExtractionHandler)
	mux.HandleFunc("/api/scrape/jobs/", s.handleJobRoutes) // Handles /api/scrape/jobs/{id} and subpaths

	// API routes - dashboard and domain catalog
	mux.HandleFunc("/api/scrape/stats", s.app.JobHandler.StatsHandler)
	mux.HandleFunc("/api/scrape/available-domains", s.app.JobHandler.AvailableDomainsHandler)

	// API routes - job seeding
	mux.HandleFunc("/api/scrape/seed-jobs", s.app.SeedHandler.SeedJobsHandler)
	mux.HandleFunc("/api/scrape/countries-summary", s.app.SeedHandler.CountriesSummaryHandler)
	mux.HandleFunc("/api/scrape/seeded-jobs-status", s.app.SeedHandler.SeededJobsStatusHandler)

	// API routes - scraped businesses
	mux.HandleFunc("/api/businesses", s.app.BusinessHandler.ListBusinessesHandler)
	mux.HandleFunc("/api/businesses/stats/summary", s.app.BusinessHandler.StatsSummaryHandler)
	mux.HandleFunc("/api/businesses/stats/by-city", s.app.BusinessHandler.ByCityHandler)
	mux.HandleFunc("/api/businesses/stats/by-category", s.app.BusinessHandler.ByCategoryHandler)
	mux.HandleFunc("/api/businesses/mark-exported", s.app.BusinessHandler.MarkExportedHandler)
	mux.HandleFunc("/api/businesses/", s.handleBusinessRoutes) // Handles /api/businesses/{id}

	// API routes - export jobs
	mux.HandleFunc("/api/export/jobs", s.handleExportCollection)
	mux.HandleFunc("/api/export/test-connection", s.app.ExportHandler.TestConnectionHandler)
	mux.HandleFunc("/api/export/jobs/", s.handleExportRoutes) // Handles /api/export/jobs/{id} and subpaths

	// API routes - system
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for everything unmatched, API or not
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobCollection routes /api/scrape/jobs (list and create)
func (s *Server) handleJobCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.JobHandler.ListJobsHandler, s.app.JobHandler.CreateJobHandler)
}

// handleJobRoutes routes /api/scrape/jobs/{id} and its subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/scrape/jobs/"

	switch r.Method {
	case "GET":
		if RouteByPathSuffix(w, r, prefix, []PathSuffixRouter{
			{Suffix: "/status", Handler: s.app.JobHandler.JobStatusHandler},
			{Suffix: "/details", Handler: s.app.JobHandler.JobDetailsHandler},
		}) {
			return
		}
	case "POST":
		if RouteByPathSuffix(w, r, prefix, []PathSuffixRouter{
			{Suffix: "/force-start", Handler: s.app.JobHandler.ForceStartJobHandler},
			{Suffix: "/start", Handler: s.app.JobHandler.StartJobHandler},
			{Suffix: "/pause", Handler: s.app.JobHandler.PauseJobHandler},
			{Suffix: "/resume", Handler: s.app.JobHandler.ResumeJobHandler},
			{Suffix: "/cancel", Handler: s.app.JobHandler.CancelJobHandler},
		}) {
			return
		}
	case "PUT":
		if RouteByPathSuffix(w, r, prefix, []PathSuffixRouter{
			{Suffix: "/settings", Handler: s.app.JobHandler.UpdateSettingsHandler},
		}) {
			return
		}
	}

	// Bare /api/scrape/jobs/{id}
	RouteByMethod(w, r, MethodRouter{
		"DELETE": s.app.JobHandler.DeleteJobHandler,
	})
}

// handleBusinessRoutes routes /api/businesses/{id}
func (s *Server) handleBusinessRoutes(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.BusinessHandler.GetBusinessHandler,
	})
}

// handleExportCollection routes /api/export/jobs (list and create)
func (s *Server) handleExportCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.ExportHandler.ListExportsHandler, s.app.ExportHandler.CreateExportHandler)
}

// handleExportRoutes routes /api/export/jobs/{id} and its subpaths
func (s *Server) handleExportRoutes(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/export/jobs/"

	switch r.Method {
	case "POST":
		if RouteByPathSuffix(w, r, prefix, []PathSuffixRouter{
			{Suffix: "/start", Handler: s.app.ExportHandler.StartExportHandler},
			{Suffix: "/stop", Handler: s.app.ExportHandler.StopExportHandler},
		}) {
			return
		}
	case "GET":
		if RouteByPathSuffix(w, r, prefix, []PathSuffixRouter{
			{Suffix: "/logs", Handler: s.app.ExportHandler.ExportLogsHandler},
		}) {
			return
		}
	}

	// Bare /api/export/jobs/{id}
	RouteResourceItem(w, r, s.app.ExportHandler.GetExportHandler, nil, s.app.ExportHandler.DeleteExportHandler)
}
