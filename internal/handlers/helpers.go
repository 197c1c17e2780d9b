package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/registry"
)

// maxPageLimit caps the limit query parameter on every listing endpoint.
const maxPageLimit = 1000

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteStarted writes a standard "started" JSON response for async operations.
func WriteStarted(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": message,
	})
}

// WriteServiceError maps service errors to HTTP status codes: bad
// payloads to 400, missing records to 404, refused lifecycle
// transitions and admission conflicts to 409, everything else to 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var busy *registry.DomainBusyError
	switch {
	case errors.Is(err, interfaces.ErrInvalidRequest):
		return WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, interfaces.ErrJobNotFound),
		errors.Is(err, interfaces.ErrBusinessNotFound),
		errors.Is(err, interfaces.ErrExportJobNotFound):
		return WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &busy):
		return WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"status":   "error",
			"error":    busy.Error(),
			"conflict": busy,
		})
	case errors.Is(err, interfaces.ErrInvalidTransition):
		return WriteError(w, http.StatusConflict, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// DecodeBody parses the request body as JSON into dst. A failure is
// reported to the client as 400.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// GetSkipLimit extracts skip/limit pagination from the query string.
// Negative or malformed values fall back to skip 0 and the caller's
// default limit.
func GetSkipLimit(r *http.Request, defaultLimit int) (skip, limit int) {
	skip = 0
	limit = defaultLimit

	if s := r.URL.Query().Get("skip"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			skip = n
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxPageLimit {
			limit = n
		}
	}
	return skip, limit
}

// GetQueryBool reads a boolean query parameter, treating malformed or
// absent values as false.
func GetQueryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// GetQueryTime reads an RFC3339 or date-only query parameter. Returns
// nil when absent, an error when present but unparseable.
func GetQueryTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s: %q", name, v)
}
