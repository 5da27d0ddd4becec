package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-sentry/internal/store"
)

// RecordDetection appends one detection event.
func (s *Store) RecordDetection(ctx context.Context, d store.Detection) error {
	query := `
		INSERT INTO detections
			(run_id, name, confidence, distance, is_live, liveness_score,
			 box_top, box_right, box_bottom, box_left, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	at := d.DetectedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		d.RunID, d.Name, d.Confidence, d.Distance, d.IsLive, d.LivenessScore,
		d.Box.Top, d.Box.Right, d.Box.Bottom, d.Box.Left, at)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// RecentDetections returns the latest events, newest first.
func (s *Store) RecentDetections(ctx context.Context, limit int) ([]store.Detection, error) {
	query := `
		SELECT id, run_id, name, confidence, distance, is_live, liveness_score,
		       box_top, box_right, box_bottom, box_left, detected_at
		FROM detections
		ORDER BY detected_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var detections []store.Detection
	for rows.Next() {
		var d store.Detection
		err := rows.Scan(&d.ID, &d.RunID, &d.Name, &d.Confidence, &d.Distance,
			&d.IsLive, &d.LivenessScore,
			&d.Box.Top, &d.Box.Right, &d.Box.Bottom, &d.Box.Left, &d.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return detections, nil
}

// DetectionStats aggregates detections per identity since the given time.
func (s *Store) DetectionStats(ctx context.Context, since time.Time) ([]store.PersonStats, error) {
	query := `
		SELECT name, COUNT(*), MAX(detected_at)
		FROM detections
		WHERE detected_at >= $1
		GROUP BY name
		ORDER BY COUNT(*) DESC
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query detection stats: %w", err)
	}
	defer rows.Close()

	var stats []store.PersonStats
	for rows.Next() {
		var st store.PersonStats
		if err := rows.Scan(&st.Name, &st.Detections, &st.LastSeen); err != nil {
			return nil, fmt.Errorf("scan detection stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detection stats: %w", err)
	}
	return stats, nil
}

// Verify interface compliance.
var _ store.Store = (*Store)(nil)
