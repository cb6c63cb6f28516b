// Package config loads orchestrator configuration from environment
// variables, with defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-wide orchestrator configuration.
type Config struct {
	// StoreType selects the artifact store backend: "memory" or "local".
	// Read from ORCHESTRATOR_STORE_TYPE, falling back to ANALYSER_STORE_TYPE.
	StoreType string
	// StorePath is the root directory for the "local" backend. Read from
	// ORCHESTRATOR_STORE_PATH, falling back to ANALYSER_STORE_PATH.
	StorePath string

	// SchemaPaths are the directories the schema registry searches, in order.
	SchemaPaths []string

	MaxConcurrency  int
	ArtifactTimeout time.Duration

	LogLevel string

	TelemetryEnabled  bool
	TelemetryEndpoint string
}

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() *Config {
	cfg := &Config{
		StoreType:         envOr("ORCHESTRATOR_STORE_TYPE", envOr("ANALYSER_STORE_TYPE", "memory")),
		StorePath:         envOr("ORCHESTRATOR_STORE_PATH", os.Getenv("ANALYSER_STORE_PATH")),
		SchemaPaths:       splitList(envOr("ORCHESTRATOR_SCHEMA_PATHS", "./schemas")),
		MaxConcurrency:    envInt("ORCHESTRATOR_MAX_CONCURRENCY", 10),
		ArtifactTimeout:   envDuration("ORCHESTRATOR_ARTIFACT_TIMEOUT", 5*time.Minute),
		LogLevel:          envOr("ORCHESTRATOR_LOG_LEVEL", "INFO"),
		TelemetryEnabled:  os.Getenv("ORCHESTRATOR_TELEMETRY_ENABLED") == "true",
		TelemetryEndpoint: envOr("ORCHESTRATOR_TELEMETRY_ENDPOINT", "localhost:4317"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
