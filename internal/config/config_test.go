package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, 24, cfg.Cache.DefaultTTLHours)
	assert.Equal(t, 3, cfg.Cache.GridPrecisionDecimalPlaces)
	assert.True(t, cfg.Cache.PurgeOnStartup)

	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Providers.Anthropic.Model)
	assert.Equal(t, 30, cfg.Providers.Anthropic.TimeoutSeconds)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Providers.Perplexity.Endpoint)
	assert.Equal(t, 120, cfg.Providers.Streaming.TimeoutSeconds)

	assert.Equal(t, 1000, cfg.Places.DefaultRadiusMeters)
	assert.Equal(t, 20, cfg.Places.MaxResults)
	assert.Equal(t, 8, cfg.Consensus.CrossValidationConcurrency)

	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
	assert.Equal(t, 750, cfg.Resilience.RetryInitialBackoffMs)
	assert.Equal(t, 4, cfg.Resilience.CircuitFailureThreshold)
	assert.Equal(t, 45, cfg.Resilience.CircuitResetTimeoutSecs)
}

func TestLoadExplicitConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
log:
  level: warn
resilience:
  circuit_failure_threshold: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Resilience.CircuitFailureThreshold)
	// Defaults still apply for unset resilience fields.
	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
cache:
  default_ttl_hours: 48
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 48, cfg.Cache.DefaultTTLHours)
	// Defaults still apply for unset values.
	assert.Equal(t, 3, cfg.Cache.GridPrecisionDecimalPlaces)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RECS_LOG_LEVEL", "warn")
	t.Setenv("RECS_SERVER_PORT", "3000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
