// -----------------------------------------------------------------------
// Export Handler - export job lifecycle and endpoint probe endpoints
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/export"
)

const (
	// defaultExportPageSize is the limit applied when a job listing omits one.
	defaultExportPageSize = 50

	// defaultLogPageSize is the limit applied when a log listing omits one.
	defaultLogPageSize = 100
)

// testConnectionRequest is the payload for probing an export endpoint
type testConnectionRequest struct {
	EndpointURL string `json:"endpoint_url"`
	AuthToken   string `json:"auth_token,omitempty"`
}

// ExportHandler handles HTTP requests for export job management
type ExportHandler struct {
	exports *export.Service
	logger  arbor.ILogger
}

// NewExportHandler creates a new export job handler
func NewExportHandler(exports *export.Service, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		logger:  logger,
	}
}

// exportIDFromPath extracts the job ID from /api/export/jobs/{id}[/action]
func exportIDFromPath(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// CreateExportHandler creates a new export job. AutoStart jobs begin
// streaming immediately.
// POST /api/export/jobs
func (h *ExportHandler) CreateExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.CreateExportRequest
	if !DecodeBody(w, r, &req) {
		return
	}

	job, err := h.exports.CreateExportJob(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("name", req.Name).Msg("Failed to create export job")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// ListExportsHandler lists export jobs, newest first.
// GET /api/export/jobs?skip=&limit=
func (h *ExportHandler) ListExportsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	skip, limit := GetSkipLimit(r, defaultExportPageSize)
	jobs, err := h.exports.ListExports(r.Context(), skip, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list export jobs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, jobs)
}

// GetExportHandler returns one export job.
// GET /api/export/jobs/{id}
func (h *ExportHandler) GetExportHandler(w http.ResponseWriter, r *http.Request) {
	jobID := exportIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Export job ID is required")
		return
	}

	job, err := h.exports.GetExport(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// StartExportHandler starts a pending export job.
// POST /api/export/jobs/{id}/start
func (h *ExportHandler) StartExportHandler(w http.ResponseWriter, r *http.Request) {
	jobID := exportIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Export job ID is required")
		return
	}

	if err := h.exports.StartExport(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to start export")
		WriteServiceError(w, err)
		return
	}

	WriteStarted(w, "Export started")
}

// StopExportHandler stops a running export after the in-flight record.
// POST /api/export/jobs/{id}/stop
func (h *ExportHandler) StopExportHandler(w http.ResponseWriter, r *http.Request) {
	jobID := exportIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Export job ID is required")
		return
	}

	if err := h.exports.StopExport(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to stop export")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Export stopped")
}

// DeleteExportHandler removes an export job and its run logs.
// DELETE /api/export/jobs/{id}
func (h *ExportHandler) DeleteExportHandler(w http.ResponseWriter, r *http.Request) {
	jobID := exportIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Export job ID is required")
		return
	}

	if err := h.exports.DeleteExport(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to delete export")
		WriteServiceError(w, err)
		return
	}

	WriteSuccess(w, "Export job deleted")
}

// ExportLogsHandler returns a job's run logs, newest first.
// GET /api/export/jobs/{id}/logs?skip=&limit=
func (h *ExportHandler) ExportLogsHandler(w http.ResponseWriter, r *http.Request) {
	jobID := exportIDFromPath(r)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Export job ID is required")
		return
	}

	skip, limit := GetSkipLimit(r, defaultLogPageSize)
	logs, err := h.exports.GetLogs(r.Context(), jobID, skip, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("export_id", jobID).Msg("Failed to list export logs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, logs)
}

// TestConnectionHandler probes an export endpoint with an
// authenticated GET.
// POST /api/export/test-connection
func (h *ExportHandler) TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req testConnectionRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	if req.EndpointURL == "" {
		WriteError(w, http.StatusBadRequest, "endpoint_url is required")
		return
	}

	result, err := h.exports.TestConnection(r.Context(), req.EndpointURL, req.AuthToken)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
