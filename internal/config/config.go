// Package config handles application configuration and environment loading.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds the matcher's runtime configuration. Pipeline debug options
// are read separately by pipeline.RunOptionsFromEnv.
type Config struct {
	DBPath   string        // ADDRMATCH_DB_PATH; empty runs fully in-memory
	LogLevel string        // ADDRMATCH_LOG_LEVEL: debug, info, warn, error (default "info")
	CacheTTL time.Duration // ADDRMATCH_CACHE_TTL for the dataset load cache
	Stages   []string      // ADDRMATCH_STAGES: comma-separated optional stage names

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromEnv loads configuration from environment variables. Every variable
// is optional; malformed values degrade to defaults with a warning rather
// than failing startup.
func LoadFromEnv() *Config {
	cfg := &Config{
		DBPath:   os.Getenv("ADDRMATCH_DB_PATH"),
		LogLevel: os.Getenv("ADDRMATCH_LOG_LEVEL"),
	}

	if v := os.Getenv("ADDRMATCH_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings,
				"ignoring malformed ADDRMATCH_CACHE_TTL "+v)
		} else {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("ADDRMATCH_STAGES"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Stages = append(cfg.Stages, s)
			}
		}
	}

	return cfg
}
