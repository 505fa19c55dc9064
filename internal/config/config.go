package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Content repository: local snapshot or hosted archive (one required).
	DBPath        string
	ArchiveURL    string
	ArchiveAPIKey string

	// Export output
	OutputDir string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Export behavior
	MaxRefErrors int
	CycleGuard   bool

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("COLPORTER_API_KEY"),

		DBPath:        os.Getenv("COLPORTER_DB"),
		ArchiveURL:    os.Getenv("ARCHIVE_URL"),
		ArchiveAPIKey: os.Getenv("ARCHIVE_API_KEY"),

		OutputDir: envOr("OUTPUT_DIR", os.TempDir()),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxRefErrors: envInt("MAX_REF_ERRORS", 0),
		CycleGuard:   envBool("CYCLE_GUARD", false),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxRefErrors < 0 {
		cfg.MaxRefErrors = 0
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("COLPORTER_API_KEY is required")
	}
	if c.DBPath == "" && c.ArchiveURL == "" {
		return fmt.Errorf("one of COLPORTER_DB or ARCHIVE_URL is required")
	}
	if c.DBPath != "" && c.ArchiveURL != "" {
		return fmt.Errorf("COLPORTER_DB and ARCHIVE_URL are mutually exclusive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
