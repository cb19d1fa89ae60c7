package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "satyamark")
	t.Setenv("REDIS_TEXT_PRIMARY_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_IMAGE_PRIMARY_URL", "redis://localhost:6380/0")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "satyamark-backend", cfg.AppName)
	assert.Equal(t, "1000", cfg.AppPort)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "ml", cfg.ImageAnalysisMode)
	assert.Equal(t, 5*time.Second, cfg.DrainInterval)
	assert.Equal(t, time.Duration(0), cfg.TransferInterval)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.RateWindow)
	assert.InDelta(t, 23, cfg.MemoryThresholdMB, 0.001)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("JOB_DRAIN_INTERVAL", "250ms")
	t.Setenv("STREAM_TRANSFER_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW", "2s")
	t.Setenv("BROKER_MEMORY_THRESHOLD_MB", "48.5")
	t.Setenv("IMAGE_ANALYSIS_MODE", "forensic")
	t.Setenv("REDIS_TEXT_OVERFLOW_URL", "redis://overflow:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.DrainInterval)
	assert.Equal(t, time.Minute, cfg.TransferInterval)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.RateWindow)
	assert.InDelta(t, 48.5, cfg.MemoryThresholdMB, 0.001)
	assert.Equal(t, "forensic", cfg.ImageAnalysisMode)
	assert.Equal(t, "redis://overflow:6379/0", cfg.RedisTextOverflowURL)
}

func TestLoadMissingDatabase(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("REDIS_TEXT_PRIMARY_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_IMAGE_PRIMARY_URL", "redis://localhost:6380/0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestLoadMissingBrokers(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_IMAGE_PRIMARY_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
}

func TestLoadMalformedValues(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_WINDOW", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_WINDOW")
}
