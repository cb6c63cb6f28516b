package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern-compliance/orchestrator/internal/config"
)

func TestNewWithNilConfigIsDisabledAndNilSafe(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, done := p.TrackArtifact(context.Background(), "run-1", "raw")
	assert.NotNil(t, ctx)
	done(nil)
	done(errors.New("boom"))

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewWithTelemetryDisabledInConfig(t *testing.T) {
	cfg := &config.Config{TelemetryEnabled: false}
	p, err := New(context.Background(), cfg)
	require.NoError(t, err)

	_, done := p.TrackArtifact(context.Background(), "run-1", "raw")
	done(nil)

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownIsSafeOnNilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))

	_, done := p.TrackArtifact(context.Background(), "run-1", "raw")
	assert.NotPanics(t, func() { done(nil) })
}
