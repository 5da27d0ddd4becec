// Package store defines the persistence boundary for people and detection
// events. The rest of the system depends only on the Store interface; the
// postgres package provides the real backend and mock provides an in-memory
// one for tests.
package store

import (
	"context"
	"time"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// Person is one known identity and its reference image count.
type Person struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Detection is one recognition event emitted by the pipeline. Box holds
// full-frame coordinates; RunID groups events from one pipeline run.
type Detection struct {
	ID            int64               `json:"id"`
	RunID         string              `json:"run_id"`
	Name          string              `json:"name"`
	Confidence    float64             `json:"confidence"`
	Distance      float64             `json:"distance"`
	IsLive        bool                `json:"is_live"`
	LivenessScore float64             `json:"liveness_score"`
	Box           facedet.BoundingBox `json:"box"`
	DetectedAt    time.Time           `json:"detected_at"`
}

// PersonStats aggregates detections per identity over a time window.
type PersonStats struct {
	Name       string    `json:"name"`
	Detections int       `json:"detections"`
	LastSeen   time.Time `json:"last_seen"`
}

// Store is the full persistence contract. All methods are safe for
// concurrent use.
type Store interface {
	// UpsertPerson creates or refreshes a person record.
	UpsertPerson(ctx context.Context, name string, imageCount int) error

	// RemovePerson deletes a person. Removing an unknown person is a no-op.
	RemovePerson(ctx context.Context, name string) error

	// ListPersons returns all known people ordered by name.
	ListPersons(ctx context.Context) ([]Person, error)

	// RecordDetection appends one detection event.
	RecordDetection(ctx context.Context, d Detection) error

	// RecentDetections returns the latest events, newest first.
	RecentDetections(ctx context.Context, limit int) ([]Detection, error)

	// DetectionStats aggregates events since the given time, per identity.
	DetectionStats(ctx context.Context, since time.Time) ([]PersonStats, error)

	// Close releases the backend resources.
	Close() error
}
