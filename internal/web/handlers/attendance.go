package handlers

import (
	"encoding/csv"
	"net/http"
	"time"
)

// parseDay reads the "date" query parameter (YYYY-MM-DD), defaulting to
// today.
func parseDay(r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return time.Now(), true
	}
	day, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// GetAttendance returns the attendance records and per-person summary for a day.
func (a *API) GetAttendance(w http.ResponseWriter, r *http.Request) {
	if a.Attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance not configured")
		return
	}

	day, ok := parseDay(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	records, err := a.Attendance.Records(day)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load attendance")
		return
	}
	summary, err := a.Attendance.Summary(day)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":    day.Format("2006-01-02"),
		"records": records,
		"summary": summary,
	})
}

// AttendanceExport streams a day's attendance as a CSV download.
func (a *API) AttendanceExport(w http.ResponseWriter, r *http.Request) {
	if a.Attendance == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance not configured")
		return
	}

	day, ok := parseDay(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		`attachment; filename="attendance_`+day.Format("2006-01-02")+`.csv"`)

	if err := a.Attendance.Export(day, csv.NewWriter(w)); err != nil {
		// Headers are out; all we can do is cut the stream.
		return
	}
}
