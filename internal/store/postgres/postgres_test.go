//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/facedet"
	"github.com/kozaktomas/face-sentry/internal/store"
)

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	st, err := Open(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		st.Close()
		container.Terminate(ctx)
	}

	return st, cleanup
}

func TestPersons(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("UpsertAndList", func(t *testing.T) {
		if err := st.UpsertPerson(ctx, "alice", 2); err != nil {
			t.Fatalf("Failed to upsert person: %v", err)
		}
		if err := st.UpsertPerson(ctx, "bob", 1); err != nil {
			t.Fatalf("Failed to upsert person: %v", err)
		}

		persons, err := st.ListPersons(ctx)
		if err != nil {
			t.Fatalf("Failed to list persons: %v", err)
		}
		if len(persons) != 2 {
			t.Fatalf("Expected 2 persons, got %d", len(persons))
		}
		if persons[0].Name != "alice" || persons[0].ImageCount != 2 {
			t.Errorf("Expected alice with 2 images, got %+v", persons[0])
		}
	})

	t.Run("UpsertUpdatesImageCount", func(t *testing.T) {
		if err := st.UpsertPerson(ctx, "alice", 5); err != nil {
			t.Fatalf("Failed to upsert person: %v", err)
		}

		persons, err := st.ListPersons(ctx)
		if err != nil {
			t.Fatalf("Failed to list persons: %v", err)
		}
		if len(persons) != 2 {
			t.Fatalf("Upsert created a duplicate row, got %d persons", len(persons))
		}
		if persons[0].ImageCount != 5 {
			t.Errorf("Expected image count 5, got %d", persons[0].ImageCount)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := st.RemovePerson(ctx, "bob"); err != nil {
			t.Fatalf("Failed to remove person: %v", err)
		}

		persons, err := st.ListPersons(ctx)
		if err != nil {
			t.Fatalf("Failed to list persons: %v", err)
		}
		if len(persons) != 1 {
			t.Errorf("Expected 1 person after remove, got %d", len(persons))
		}
	})
}

func TestDetections(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	t.Run("RecordAndRecent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			d := store.Detection{
				RunID:         "run1",
				Name:          "alice",
				Confidence:    0.9,
				Distance:      0.1,
				IsLive:        true,
				LivenessScore: 0.8,
				Box:           facedet.BoundingBox{Top: 10, Right: 110, Bottom: 120, Left: 5},
				DetectedAt:    base.Add(time.Duration(i) * time.Minute),
			}
			if err := st.RecordDetection(ctx, d); err != nil {
				t.Fatalf("Failed to record detection: %v", err)
			}
		}

		detections, err := st.RecentDetections(ctx, 2)
		if err != nil {
			t.Fatalf("Failed to load detections: %v", err)
		}
		if len(detections) != 2 {
			t.Fatalf("Expected 2 detections, got %d", len(detections))
		}
		// Newest first.
		if !detections[0].DetectedAt.After(detections[1].DetectedAt) {
			t.Error("Detections not sorted newest first")
		}
		if detections[0].Box.Right != 110 {
			t.Errorf("Expected box right 110, got %d", detections[0].Box.Right)
		}
	})

	t.Run("ZeroTimeDefaultsToNow", func(t *testing.T) {
		d := store.Detection{RunID: "run1", Name: "Unknown"}
		if err := st.RecordDetection(ctx, d); err != nil {
			t.Fatalf("Failed to record detection: %v", err)
		}

		detections, err := st.RecentDetections(ctx, 1)
		if err != nil {
			t.Fatalf("Failed to load detections: %v", err)
		}
		if detections[0].DetectedAt.IsZero() {
			t.Error("Expected detected_at to be filled in")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := st.DetectionStats(ctx, base.Add(-time.Minute))
		if err != nil {
			t.Fatalf("Failed to load stats: %v", err)
		}
		if len(stats) != 2 {
			t.Fatalf("Expected 2 stat rows, got %d", len(stats))
		}
		// Sorted by count, alice has the most detections.
		if stats[0].Name != "alice" || stats[0].Detections != 3 {
			t.Errorf("Expected alice with 3 detections, got %+v", stats[0])
		}
	})

	t.Run("StatsWindowExcludesOldEvents", func(t *testing.T) {
		stats, err := st.DetectionStats(ctx, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("Failed to load stats: %v", err)
		}
		if len(stats) != 0 {
			t.Errorf("Expected no stats in a future window, got %d", len(stats))
		}
	})
}

func TestMigrations(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	rows, err := st.DB().QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		t.Fatalf("Failed to query applied migrations: %v", err)
	}
	defer rows.Close()

	var applied []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("Failed to scan migration version: %v", err)
		}
		applied = append(applied, v)
	}

	expected := []string{"001_init.sql"}
	if len(applied) != len(expected) {
		t.Fatalf("Expected %d migrations, got %d", len(expected), len(applied))
	}
	for i, want := range expected {
		if applied[i] != want {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, want, applied[i])
		}
	}
}
