package handlers

import (
	"net/http"
	"strconv"
	"time"
)

const defaultDetectionLimit = 50

// RecentDetections returns the latest detection events, newest first. The
// "limit" query parameter caps the result size.
func (a *API) RecentDetections(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}

	limit := defaultDetectionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	detections, err := a.Store.RecentDetections(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load detections")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detections": detections,
		"count":      len(detections),
	})
}

// DetectionStats aggregates detections per identity. The "hours" query
// parameter selects the window, defaulting to the last 24 hours.
func (a *API) DetectionStats(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}

	hours := 24
	if s := r.URL.Query().Get("hours"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 24*365 {
			hours = n
		}
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	stats, err := a.Store.DetectionStats(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load detection stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"since": since,
		"stats": stats,
	})
}
