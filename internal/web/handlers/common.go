// Package handlers implements the JSON API surface: person management,
// detection history, attendance and pipeline status.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-sentry/internal/attendance"
	"github.com/kozaktomas/face-sentry/internal/pipeline"
	"github.com/kozaktomas/face-sentry/internal/recognition"
	"github.com/kozaktomas/face-sentry/internal/store"
)

// API bundles the dependencies the handlers operate on. Store, Pipeline and
// Attendance may be nil when the corresponding subsystem is not running;
// affected endpoints then report 503.
type API struct {
	Engine     *recognition.Engine
	Pipeline   *pipeline.Pipeline
	Store      store.Store
	Attendance *attendance.Logger
}

// sanitizeForLog removes newlines to prevent log injection from user input.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
