package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultDatabaseURL is used when DATABASE_URL is unset.
const DefaultDatabaseURL = "sqlite://data/quickroll.db"

type Config struct {
	Database    DatabaseConfig
	Embedder    EmbedderConfig
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Web         WebConfig
}

type DatabaseConfig struct {
	URL          string        // postgres://..., sqlite://path or mysql://dsn
	MaxOpenConns int           // Maximum open connections (default 25)
	MaxIdleConns int           // Maximum idle connections (default 5)
	Timeout      time.Duration // Per-operation store timeout (default 10s)
}

type EmbedderConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // defaults to 15s
	Dim     int           // 0 means take the dimension of the first enrolled embedding
}

type RecognitionConfig struct {
	RecognizedThreshold float64       `yaml:"recognized_threshold"`
	MaybeThreshold      float64       `yaml:"maybe_threshold"`
	TopMatchMinScore    float64       `yaml:"top_match_min_score"`
	Metric              string        `yaml:"metric"`
	Poses               []string      `yaml:"poses"`
	ImportPose          string        `yaml:"import_pose"`
	ReloadInterval      time.Duration `yaml:"-"`
}

type AttendanceConfig struct {
	MarkedBy    string `yaml:"marked_by"`
	ConfirmedBy string `yaml:"confirmed_by"`
	Timezone    string `yaml:"timezone"`
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// PoseLabel returns the pose recorded for the idx-th enrollment image.
// Images beyond the configured labels are named pose_{idx}.
func (c *RecognitionConfig) PoseLabel(idx int) string {
	if idx >= 0 && idx < len(c.Poses) {
		return c.Poses[idx]
	}
	return fmt.Sprintf("pose_%d", idx)
}

// Location resolves the attendance timezone. Unknown names fall back to time.Local.
func (c *AttendanceConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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

// envFloat reads an environment variable as a float in [0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDuration accepts Go durations ("30s") or plain seconds ("30").
// Zero is allowed so intervals can be switched off.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var defaults Config
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	rec := defaults.Recognition
	att := defaults.Attendance

	return &Config{
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", DefaultDatabaseURL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			Timeout:      envDuration("STORE_TIMEOUT", 10*time.Second),
		},
		Embedder: EmbedderConfig{
			URL:     os.Getenv("EMBEDDER_URL"),
			Timeout: envDuration("EMBEDDER_TIMEOUT", 15*time.Second),
			Dim:     envInt("FACE_EMBEDDING_DIM", 0),
		},
		Recognition: RecognitionConfig{
			RecognizedThreshold: envFloat("RECOGNIZED_THRESHOLD", rec.RecognizedThreshold),
			MaybeThreshold:      envFloat("MAYBE_THRESHOLD", rec.MaybeThreshold),
			TopMatchMinScore:    envFloat("TOP_MATCH_MIN_SCORE", rec.TopMatchMinScore),
			Metric:              envString("MATCH_METRIC", rec.Metric),
			Poses:               rec.Poses,
			ImportPose:          rec.ImportPose,
			ReloadInterval:      envDuration("RELOAD_INTERVAL", 0),
		},
		Attendance: AttendanceConfig{
			MarkedBy:    envString("ATTENDANCE_MARKED_BY", att.MarkedBy),
			ConfirmedBy: att.ConfirmedBy,
			Timezone:    envString("ATTENDANCE_TIMEZONE", att.Timezone),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8000),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// Validate reports configuration values that would make the engine misbehave.
func (c *Config) Validate() error {
	r := c.Recognition
	if r.MaybeThreshold < 0 || r.RecognizedThreshold > 1 || r.MaybeThreshold > r.RecognizedThreshold {
		return fmt.Errorf("invalid thresholds: maybe=%.2f recognized=%.2f (need 0 <= maybe <= recognized <= 1)",
			r.MaybeThreshold, r.RecognizedThreshold)
	}
	switch r.Metric {
	case "", "cosine", "cosine-simd":
	default:
		return fmt.Errorf("invalid MATCH_METRIC %q (want cosine or cosine-simd)", r.Metric)
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if tz := c.Attendance.Timezone; tz != "" && tz != "Local" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid ATTENDANCE_TIMEZONE %q: %w", tz, err)
		}
	}
	return nil
}
