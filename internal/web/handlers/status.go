package handlers

import (
	"net/http"
)

// Status reports the matcher state and, when a pipeline is running, its
// latest processed frame.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"persons":   len(a.Engine.Names()),
		"encodings": a.Engine.EncodingCount(),
	}

	if a.Pipeline != nil {
		snap := a.Pipeline.Snapshot()
		resp["pipeline"] = map[string]any{
			"run_id":       snap.RunID,
			"frame_number": snap.FrameNumber,
			"processed_at": snap.ProcessedAt,
			"faces":        snap.Faces,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
