package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.FetchBatchSize)
	assert.Equal(t, 15, cfg.MaxPerFeed)
	assert.Equal(t, 72*time.Hour, cfg.Freshness)
	assert.Equal(t, 300, cfg.DescriptionMax)
	assert.Equal(t, 150, cfg.MaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheDuration)
	assert.Equal(t, 200, cfg.MaxEscalations)
	assert.Equal(t, 15*time.Second, cfg.EscalationTimeout)
	assert.Empty(t, cfg.GeminiAPIKey, "missing key is valid: adapter runs in fallback mode")
	assert.False(t, cfg.DedupByTitle)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_NEWS_ITEMS", "50")
	t.Setenv("NEWS_FRESHNESS_HOURS", "24")
	t.Setenv("CACHE_DURATION_HOURS", "6")
	t.Setenv("DEDUP_BY_TITLE", "true")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 50, cfg.MaxItems)
	assert.Equal(t, 24*time.Hour, cfg.Freshness)
	assert.Equal(t, 6*time.Hour, cfg.CacheDuration)
	assert.True(t, cfg.DedupByTitle)
	assert.Equal(t, "test-key", cfg.GeminiAPIKey)
}

func TestLoadIgnoresInvalidNumericEnv(t *testing.T) {
	t.Setenv("NEWS_FRESHNESS_HOURS", "not a number")
	t.Setenv("MAX_NEWS_ITEMS", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, cfg.Freshness)
	assert.Equal(t, 150, cfg.MaxItems)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.SourcesPath = ""
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.FetchBatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.MaxItems = 0
	assert.Error(t, cfg.Validate())
}
