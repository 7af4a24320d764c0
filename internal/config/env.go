package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// RasterConfig defines how input documents are rendered to page images.
type RasterConfig struct {
	DPI            int
	GhostscriptBin string
	Timeout        time.Duration
}

// SpoolConfig defines print submission behavior.
type SpoolConfig struct {
	LpBin   string
	Media   string
	Copies  int
	Timeout time.Duration
}

// ArchiveConfig defines optional S3 archival of routed outputs.
type ArchiveConfig struct {
	Enabled    bool
	Bucket     string
	Prefix     string
	Passphrase string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Region     string
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging     LoggingConfig
	Axiom       AxiomConfig
	Raster      RasterConfig
	Spool       SpoolConfig
	Archive     ArchiveConfig
	Queue       QueueConfig
	ProfilePath string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/labelbridge.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_labelbridge",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Raster defaults
	cfg.Raster = RasterConfig{
		DPI:            parseInt(getEnv("RASTER_DPI", "300"), 300),
		GhostscriptBin: getEnv("GHOSTSCRIPT_BIN", "gs"),
		Timeout:        parseDuration(getEnv("RASTER_TIMEOUT", "120s"), 120*time.Second),
	}

	// Spool defaults
	cfg.Spool = SpoolConfig{
		LpBin:   getEnv("LP_BIN", "lp"),
		Media:   getEnv("PRINT_MEDIA", "Custom.4x6in"),
		Copies:  parseInt(getEnv("PRINT_COPIES", "1"), 1),
		Timeout: parseDuration(getEnv("PRINT_TIMEOUT", "30s"), 30*time.Second),
	}

	// Archive defaults
	cfg.Archive = ArchiveConfig{
		Enabled:    parseBool(getEnv("ARCHIVE_ENABLED", "0")),
		Bucket:     getEnv("ARCHIVE_S3_BUCKET", ""),
		Prefix:     getEnv("ARCHIVE_S3_PREFIX", "labels"),
		Passphrase: getEnv("ARCHIVE_PASSPHRASE", ""),
		Endpoint:   getEnv("ARCHIVE_S3_ENDPOINT", ""),
		AccessKey:  getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		SecretKey:  getEnv("ARCHIVE_S3_SECRET_KEY", ""),
		Region:     getEnv("ARCHIVE_S3_REGION", "eu-central-1"),
	}

	// Queue defaults
	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:print:documents"),
		Group:        getEnv("QUEUE_GROUP", "workers:labels"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	cfg.ProfilePath = getEnv("LABEL_PROFILES", "config/profiles.yaml")

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
