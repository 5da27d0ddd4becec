package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Recognition   RecognitionConfig   `yaml:"recognition"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Liveness      LivenessConfig      `yaml:"liveness"`
	Paths         PathsConfig         `yaml:"paths"`
	Detector      DetectorConfig      `yaml:"detector"`
	Database      DatabaseConfig      `yaml:"database"`
	Attendance    AttendanceConfig    `yaml:"attendance"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Web           WebConfig           `yaml:"web"`
	Camera        CameraConfig        `yaml:"camera"`
}

type RecognitionConfig struct {
	Threshold   float64 `yaml:"threshold"`     // nearest-neighbor acceptance bound, lower = stricter
	MinFaceSize int     `yaml:"min_face_size"` // pixels, in full-frame coordinates
	Model       string  `yaml:"model"`         // "hog" (CPU) or "cnn" (GPU)
	FrameScale  float64 `yaml:"frame_scale"`   // downscale factor applied before detection
	SkipFrames  int     `yaml:"skip_frames"`   // process every N-th frame
}

type TrackerConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MaxDisappeared int     `yaml:"max_disappeared"` // frames before a lost identity is dropped
	MaxDistance    float64 `yaml:"max_distance"`    // centroid association bound in pixels
}

type LivenessConfig struct {
	Enabled          bool    `yaml:"enabled"`
	BlinkThreshold   float64 `yaml:"blink_threshold"`
	TextureThreshold float64 `yaml:"texture_threshold"`
	ColorThreshold   float64 `yaml:"color_threshold"`
	MinBlinks        int     `yaml:"min_blinks"`
	CheckInterval    int     `yaml:"check_interval"` // informational: caller may check less than every frame
}

type PathsConfig struct {
	KnownFacesDir string `yaml:"known_faces_dir"`
	EncodingCache string `yaml:"encoding_cache"`
	AttendanceDir string `yaml:"attendance_dir"`
}

type DetectorConfig struct {
	URL     string        `yaml:"url"`     // detection sidecar base URL (e.g. http://localhost:8300)
	Timeout time.Duration `yaml:"timeout"` // per-request timeout
}

type DatabaseConfig struct {
	URL          string `yaml:"url"` // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type AttendanceConfig struct {
	Enabled         bool `yaml:"enabled"`
	CooldownMinutes int  `yaml:"cooldown_minutes"`
}

type NotificationsConfig struct {
	Enabled          bool       `yaml:"enabled"`
	UnknownFaceAlert bool       `yaml:"unknown_face_alert"`
	CooldownMinutes  int        `yaml:"cooldown_minutes"`
	Email            SMTPConfig `yaml:"email"`
}

type SMTPConfig struct {
	Server     string   `yaml:"smtp_server"`
	Port       int      `yaml:"smtp_port"`
	Sender     string   `yaml:"sender"`
	Password   string   `yaml:"password"`
	Recipients []string `yaml:"recipients"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type CameraConfig struct {
	Index  int `yaml:"index"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Defaults returns the built-in configuration. Values mirror the documented
// defaults: threshold 0.6, min face size 50px, tracker 15 frames / 75px,
// liveness thresholds 0.25 / 80 / 15.
func Defaults() *Config {
	return &Config{
		Recognition: RecognitionConfig{
			Threshold:   0.6,
			MinFaceSize: 50,
			Model:       "hog",
			FrameScale:  0.25,
			SkipFrames:  2,
		},
		Tracker: TrackerConfig{
			Enabled:        true,
			MaxDisappeared: 15,
			MaxDistance:    75,
		},
		Liveness: LivenessConfig{
			Enabled:          true,
			BlinkThreshold:   0.25,
			TextureThreshold: 80.0,
			ColorThreshold:   15.0,
			MinBlinks:        1,
			CheckInterval:    30,
		},
		Paths: PathsConfig{
			KnownFacesDir: "known_faces",
			EncodingCache: "data/encodings.cache",
			AttendanceDir: "data/attendance",
		},
		Detector: DetectorConfig{
			URL:     "http://localhost:8300",
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Attendance: AttendanceConfig{
			Enabled:         true,
			CooldownMinutes: 30,
		},
		Notifications: NotificationsConfig{
			Enabled:          false,
			UnknownFaceAlert: true,
			CooldownMinutes:  5,
			Email: SMTPConfig{
				Server: "smtp.gmail.com",
				Port:   587,
			},
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Camera: CameraConfig{
			Index:  0,
			Width:  640,
			Height: 480,
		},
	}
}

// Load builds the configuration in three layers: built-in defaults, an
// optional YAML file, and environment variable overrides. A missing config
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// optional file
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.ensureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Recognition.Threshold = envFloat("RECOGNITION_THRESHOLD", c.Recognition.Threshold)
	c.Recognition.MinFaceSize = envInt("RECOGNITION_MIN_FACE_SIZE", c.Recognition.MinFaceSize)
	c.Recognition.Model = envString("RECOGNITION_MODEL", c.Recognition.Model)
	c.Recognition.FrameScale = envFloat("RECOGNITION_FRAME_SCALE", c.Recognition.FrameScale)
	c.Recognition.SkipFrames = envInt("RECOGNITION_SKIP_FRAMES", c.Recognition.SkipFrames)

	c.Tracker.Enabled = envBool("TRACKER_ENABLED", c.Tracker.Enabled)
	c.Tracker.MaxDisappeared = envInt("TRACKER_MAX_DISAPPEARED", c.Tracker.MaxDisappeared)
	c.Tracker.MaxDistance = envFloat("TRACKER_MAX_DISTANCE", c.Tracker.MaxDistance)

	c.Liveness.Enabled = envBool("LIVENESS_ENABLED", c.Liveness.Enabled)
	c.Liveness.BlinkThreshold = envFloat("LIVENESS_BLINK_THRESHOLD", c.Liveness.BlinkThreshold)
	c.Liveness.TextureThreshold = envFloat("LIVENESS_TEXTURE_THRESHOLD", c.Liveness.TextureThreshold)
	c.Liveness.ColorThreshold = envFloat("LIVENESS_COLOR_THRESHOLD", c.Liveness.ColorThreshold)
	c.Liveness.MinBlinks = envInt("LIVENESS_MIN_BLINKS", c.Liveness.MinBlinks)
	c.Liveness.CheckInterval = envInt("LIVENESS_CHECK_INTERVAL", c.Liveness.CheckInterval)

	c.Paths.KnownFacesDir = envString("KNOWN_FACES_DIR", c.Paths.KnownFacesDir)
	c.Paths.EncodingCache = envString("ENCODING_CACHE_PATH", c.Paths.EncodingCache)
	c.Paths.AttendanceDir = envString("ATTENDANCE_DIR", c.Paths.AttendanceDir)

	c.Detector.URL = envString("DETECTOR_URL", c.Detector.URL)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Attendance.Enabled = envBool("ATTENDANCE_ENABLED", c.Attendance.Enabled)
	c.Attendance.CooldownMinutes = envInt("ATTENDANCE_COOLDOWN_MINUTES", c.Attendance.CooldownMinutes)

	c.Notifications.Enabled = envBool("NOTIFICATIONS_ENABLED", c.Notifications.Enabled)
	c.Notifications.Email.Server = envString("SMTP_SERVER", c.Notifications.Email.Server)
	c.Notifications.Email.Port = envInt("SMTP_PORT", c.Notifications.Email.Port)
	c.Notifications.Email.Sender = envString("SMTP_SENDER", c.Notifications.Email.Sender)
	c.Notifications.Email.Password = envString("SMTP_PASSWORD", c.Notifications.Email.Password)
	if recipients := os.Getenv("SMTP_RECIPIENTS"); recipients != "" {
		c.Notifications.Email.Recipients = splitAndTrim(recipients)
	}

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
}

// ensureDirs creates the data directories so later writes don't have to.
func (c *Config) ensureDirs() error {
	dirs := []string{
		filepath.Dir(c.Paths.EncodingCache),
		c.Paths.AttendanceDir,
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envString reads an environment variable, returning the default when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean toggle.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}
