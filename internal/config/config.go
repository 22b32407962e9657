// Package config manages engine configuration from multiple sources.
//
// Configuration File Separation:
//   - .env: Deployment overrides (SINGURA_LOG_LEVEL, SINGURA_DATA_DIR, ...)
//   - calibration.json: Detector threshold defaults, reloadable at runtime
//
// Environment variables always take precedence over file contents.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all engine configuration.
type Config struct {
	// Paths
	DataPath        string
	CalibrationPath string

	// Detection settings
	DetectionTimeout     time.Duration
	MaxParallelDetectors int
	DefaultTimezone      string

	// Logging settings
	LogLevel    string
	LogFile     string
	LogMaxSize  int // MB
	LogMaxAge   int // days
	LogCompress bool

	// Track which settings are overridden by environment variables
	EnvOverrides map[string]bool `json:"-"`
}

// defaultDataDir is a var so tests can redirect it to a temp directory.
var defaultDataDir = "/etc/singura"

// Load reads configuration from the .env file and environment variables.
func Load() (*Config, error) {
	// Get data directory from environment
	dataDir := defaultDataDir
	if dir := os.Getenv("SINGURA_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	// Load .env file if it exists (for deployment overrides)
	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			log.Info().Str("file", envFile).Msg("Loaded .env file for deployment overrides")
		}
	}

	// Also try loading from current directory for development
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env in current directory")
	}

	// Initialize config with defaults
	cfg := &Config{
		DataPath:             dataDir,
		CalibrationPath:      filepath.Join(dataDir, "calibration.json"),
		DetectionTimeout:     30 * time.Second,
		MaxParallelDetectors: 0, // unbounded
		DefaultTimezone:      "UTC",
		LogLevel:             "info",
		LogMaxSize:           100,
		LogMaxAge:            30,
		LogCompress:          true,
		EnvOverrides:         make(map[string]bool),
	}

	// Environment variables always take precedence over file settings
	if calibrationPath := os.Getenv("SINGURA_CALIBRATION_FILE"); calibrationPath != "" {
		cfg.CalibrationPath = calibrationPath
		cfg.EnvOverrides["calibrationPath"] = true
		log.Info().Str("path", calibrationPath).Msg("Calibration path overridden by SINGURA_CALIBRATION_FILE env var")
	}
	if timeout := os.Getenv("SINGURA_DETECTION_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.DetectionTimeout = d
			cfg.EnvOverrides["detectionTimeout"] = true
			log.Info().Dur("timeout", d).Msg("Detection timeout overridden by SINGURA_DETECTION_TIMEOUT env var")
		} else if d, err := time.ParseDuration(timeout + "s"); err == nil {
			cfg.DetectionTimeout = d
			cfg.EnvOverrides["detectionTimeout"] = true
			log.Info().Dur("timeout", d).Msg("Detection timeout overridden by SINGURA_DETECTION_TIMEOUT env var")
		}
	}
	if maxParallel := os.Getenv("SINGURA_MAX_PARALLEL_DETECTORS"); maxParallel != "" {
		if n, err := strconv.Atoi(maxParallel); err == nil && n >= 0 {
			cfg.MaxParallelDetectors = n
			cfg.EnvOverrides["maxParallelDetectors"] = true
			log.Info().Int("limit", n).Msg("Detector parallelism overridden by SINGURA_MAX_PARALLEL_DETECTORS env var")
		}
	}
	if tz := os.Getenv("SINGURA_DEFAULT_TIMEZONE"); tz != "" {
		cfg.DefaultTimezone = tz
		cfg.EnvOverrides["defaultTimezone"] = true
		log.Info().Str("timezone", tz).Msg("Default timezone overridden by SINGURA_DEFAULT_TIMEZONE env var")
	}
	if logLevel := os.Getenv("SINGURA_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
		cfg.EnvOverrides["logLevel"] = true
		log.Info().Str("level", logLevel).Msg("Log level overridden by SINGURA_LOG_LEVEL env var")
	}
	if logFile := os.Getenv("SINGURA_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
		cfg.EnvOverrides["logFile"] = true
	}
	if maxSize := os.Getenv("SINGURA_LOG_MAX_SIZE"); maxSize != "" {
		if n, err := strconv.Atoi(maxSize); err == nil && n > 0 {
			cfg.LogMaxSize = n
		}
	}
	if maxAge := os.Getenv("SINGURA_LOG_MAX_AGE"); maxAge != "" {
		if n, err := strconv.Atoi(maxAge); err == nil && n > 0 {
			cfg.LogMaxAge = n
		}
	}
	if compress := os.Getenv("SINGURA_LOG_COMPRESS"); compress != "" {
		cfg.LogCompress = compress == "true" || compress == "1"
	}

	// Set log level
	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DetectionTimeout < time.Second {
		return fmt.Errorf("detection timeout must be at least 1 second")
	}
	if c.MaxParallelDetectors < 0 {
		return fmt.Errorf("invalid detector parallelism limit: %d", c.MaxParallelDetectors)
	}
	if c.LogMaxSize <= 0 {
		return fmt.Errorf("log max size must be positive: %d", c.LogMaxSize)
	}
	if c.DefaultTimezone != "" {
		if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
			return fmt.Errorf("invalid default timezone %q: %w", c.DefaultTimezone, err)
		}
	}
	return nil
}
