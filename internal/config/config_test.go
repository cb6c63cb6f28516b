package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "memory", cfg.StoreType)
	assert.Equal(t, []string{"./schemas"}, cfg.SchemaPaths)
	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.ArtifactTimeout)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.False(t, cfg.TelemetryEnabled)
	assert.Equal(t, "localhost:4317", cfg.TelemetryEndpoint)
}

func TestLoadHonoursEnvironmentOverrides(t *testing.T) {
	t.Setenv("ORCHESTRATOR_STORE_TYPE", "local")
	t.Setenv("ORCHESTRATOR_STORE_PATH", "/var/run/orchestrator")
	t.Setenv("ORCHESTRATOR_SCHEMA_PATHS", "./a, ./b ,./c")
	t.Setenv("ORCHESTRATOR_MAX_CONCURRENCY", "4")
	t.Setenv("ORCHESTRATOR_ARTIFACT_TIMEOUT", "30s")
	t.Setenv("ORCHESTRATOR_LOG_LEVEL", "DEBUG")
	t.Setenv("ORCHESTRATOR_TELEMETRY_ENABLED", "true")
	t.Setenv("ORCHESTRATOR_TELEMETRY_ENDPOINT", "collector:4317")

	cfg := Load()

	assert.Equal(t, "local", cfg.StoreType)
	assert.Equal(t, "/var/run/orchestrator", cfg.StorePath)
	assert.Equal(t, []string{"./a", "./b", "./c"}, cfg.SchemaPaths)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.ArtifactTimeout)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, "collector:4317", cfg.TelemetryEndpoint)
}

func TestLoadFallsBackOnInvalidNumericEnv(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MAX_CONCURRENCY", "not-a-number")
	t.Setenv("ORCHESTRATOR_ARTIFACT_TIMEOUT", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.ArtifactTimeout)
}

func TestLoadFallsBackOnNonPositiveNumericEnv(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MAX_CONCURRENCY", "0")
	t.Setenv("ORCHESTRATOR_ARTIFACT_TIMEOUT", "-5s")

	cfg := Load()

	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.ArtifactTimeout)
}
