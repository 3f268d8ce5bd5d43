// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir              string // Base directory for the history and cache databases (always absolute)
	Port                 int
	LogLevel             string
	DevMode              bool
	CacheTTL             time.Duration
	CacheCleanupSchedule string
	WALCheckSchedule     string
	MaintenanceSchedule  string
	MaxConcurrentLoads   int
	AnalyticsConfigPath  string
	Analytics            AnalyticsDefaults
}

// Load reads .env (if present), the environment and the analytics defaults file.
func Load() (*Config, error) {
	// Missing .env is normal outside development
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("PORT", 8001),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		CacheTTL:             time.Duration(getEnvAsInt("CACHE_TTL_MINUTES", 60)) * time.Minute,
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 0 * * * *"),
		WALCheckSchedule:     getEnv("WAL_CHECK_SCHEDULE", "0 */30 * * * *"),
		MaintenanceSchedule:  getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		MaxConcurrentLoads:   getEnvAsInt("MAX_CONCURRENT_LOADS", 8),
		AnalyticsConfigPath:  getEnv("ANALYTICS_CONFIG", ""),
	}

	cfg.Analytics, err = LoadAnalyticsDefaults(cfg.AnalyticsConfigPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HistoryDBPath is the price history database file
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// CacheDBPath is the calculation cache database file
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Validate checks server settings and the analytics defaults
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, disabled, got %q", c.LogLevel)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_MINUTES must be positive")
	}
	if c.MaxConcurrentLoads < 1 {
		return fmt.Errorf("MAX_CONCURRENT_LOADS must be at least 1, got %d", c.MaxConcurrentLoads)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for key, spec := range map[string]string{
		"CACHE_CLEANUP_SCHEDULE": c.CacheCleanupSchedule,
		"WAL_CHECK_SCHEDULE":     c.WALCheckSchedule,
		"MAINTENANCE_SCHEDULE":   c.MaintenanceSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s %q is not a valid cron schedule: %w", key, spec, err)
		}
	}

	if err := c.Analytics.Validate(); err != nil {
		return fmt.Errorf("analytics defaults: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
