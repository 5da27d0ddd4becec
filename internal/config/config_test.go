package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Recognition.Threshold != 0.6 {
		t.Errorf("Threshold = %f, want 0.6", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.MinFaceSize != 50 {
		t.Errorf("MinFaceSize = %d, want 50", cfg.Recognition.MinFaceSize)
	}
	if cfg.Tracker.MaxDisappeared != 15 {
		t.Errorf("MaxDisappeared = %d, want 15", cfg.Tracker.MaxDisappeared)
	}
	if cfg.Tracker.MaxDistance != 75 {
		t.Errorf("MaxDistance = %f, want 75", cfg.Tracker.MaxDistance)
	}
	if cfg.Liveness.BlinkThreshold != 0.25 {
		t.Errorf("BlinkThreshold = %f, want 0.25", cfg.Liveness.BlinkThreshold)
	}
	if cfg.Liveness.TextureThreshold != 80.0 {
		t.Errorf("TextureThreshold = %f, want 80", cfg.Liveness.TextureThreshold)
	}
	if cfg.Liveness.ColorThreshold != 15.0 {
		t.Errorf("ColorThreshold = %f, want 15", cfg.Liveness.ColorThreshold)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Threshold != 0.6 {
		t.Errorf("Threshold = %f, want default 0.6", cfg.Recognition.Threshold)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
recognition:
  threshold: 0.5
  min_face_size: 80
tracker:
  max_disappeared: 30
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Threshold != 0.5 {
		t.Errorf("Threshold = %f, want 0.5", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.MinFaceSize != 80 {
		t.Errorf("MinFaceSize = %d, want 80", cfg.Recognition.MinFaceSize)
	}
	if cfg.Tracker.MaxDisappeared != 30 {
		t.Errorf("MaxDisappeared = %d, want 30", cfg.Tracker.MaxDisappeared)
	}
	// Untouched values keep their defaults.
	if cfg.Tracker.MaxDistance != 75 {
		t.Errorf("MaxDistance = %f, want default 75", cfg.Tracker.MaxDistance)
	}
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("recognition: ["), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("recognition:\n  threshold: 0.5\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("RECOGNITION_THRESHOLD", "0.4")
	t.Setenv("TRACKER_ENABLED", "false")
	t.Setenv("SMTP_RECIPIENTS", "a@example.com, b@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Threshold != 0.4 {
		t.Errorf("Threshold = %f, want env override 0.4", cfg.Recognition.Threshold)
	}
	if cfg.Tracker.Enabled {
		t.Error("Tracker.Enabled should be false from env")
	}
	if len(cfg.Notifications.Email.Recipients) != 2 {
		t.Errorf("Recipients = %v, want 2 entries", cfg.Notifications.Email.Recipients)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("RECOGNITION_THRESHOLD", "not-a-number")
	t.Setenv("RECOGNITION_MIN_FACE_SIZE", "-5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Threshold != 0.6 {
		t.Errorf("Threshold = %f, want default 0.6", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.MinFaceSize != 50 {
		t.Errorf("MinFaceSize = %d, want default 50", cfg.Recognition.MinFaceSize)
	}
}

func TestLoad_CreatesDataDirectories(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, err := Load(""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "attendance")); err != nil {
		t.Errorf("expected attendance directory to be created: %v", err)
	}
}
