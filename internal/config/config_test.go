package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Empty(t, cfg.Stages)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADDRMATCH_DB_PATH", "/tmp/match.db")
	t.Setenv("ADDRMATCH_LOG_LEVEL", "debug")
	t.Setenv("ADDRMATCH_CACHE_TTL", "15m")
	t.Setenv("ADDRMATCH_STAGES", "trie, , ")

	cfg := LoadFromEnv()
	assert.Equal(t, "/tmp/match.db", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"trie"}, cfg.Stages)
}

func TestLoadFromEnvMalformedTTLWarns(t *testing.T) {
	t.Setenv("ADDRMATCH_CACHE_TTL", "soon")
	cfg := LoadFromEnv()
	assert.Zero(t, cfg.CacheTTL)
	assert.Len(t, cfg.Warnings, 1)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		cfg := &Config{LogLevel: tc.in}
		assert.Equal(t, tc.want, cfg.SlogLevel(), tc.in)
	}
}
