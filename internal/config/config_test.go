package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.ExtractionPerHour)
	assert.Equal(t, 10, cfg.Server.CrawlTriggerPerHour)
	assert.Equal(t, 30, cfg.Fetch.Tier1TimeoutSecs)
	assert.Equal(t, 60, cfg.Fetch.Tier2TimeoutSecs)
	assert.Equal(t, 3, cfg.Verification.TargetSources)
	assert.Equal(t, 2, cfg.Verification.MinVerifiedSources)
	assert.Equal(t, 3, cfg.Discovery.YieldMinPerPage)
	assert.Equal(t, 10, cfg.Discovery.YieldAbortAfter)
	assert.Equal(t, "google", cfg.SerpAPI.Engine)
	assert.Equal(t, 30, cfg.Frontier.SeenTTLDays)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CATALOG_SERVER_PORT", "9999")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
