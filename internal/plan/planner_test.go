package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/schema"
	pkgcomponent "github.com/waivern-compliance/orchestrator/pkg/component"
)

var rawEventSchema = schema.Schema{Name: "raw.event", Version: "1.0.0"}
var summarySchema = schema.Schema{Name: "summary", Version: "1.0.0"}

type stubConnectorFactory struct{ out schema.Schema }

func (stubConnectorFactory) CanCreate(pkgcomponent.Config) bool                   { return true }
func (stubConnectorFactory) ServiceDependencies() map[string]pkgcomponent.ServiceType { return nil }
func (f stubConnectorFactory) SupportedOutputSchemas() []schema.Schema           { return []schema.Schema{f.out} }
func (stubConnectorFactory) Create(pkgcomponent.Config) (pkgcomponent.Connector, error) {
	return stubConnector{}, nil
}

type stubConnector struct{}

func (stubConnector) Extract(context.Context, schema.Schema) (*message.Message, error) {
	return &message.Message{}, nil
}

type stubAnalyserFactory struct{ out schema.Schema }

func (stubAnalyserFactory) CanCreate(pkgcomponent.Config) bool                   { return true }
func (stubAnalyserFactory) ServiceDependencies() map[string]pkgcomponent.ServiceType { return nil }
func (f stubAnalyserFactory) SupportedOutputSchemas() []schema.Schema           { return []schema.Schema{f.out} }
func (stubAnalyserFactory) InputRequirements() [][]pkgcomponent.InputRequirement { return nil }
func (stubAnalyserFactory) Create(pkgcomponent.Config) (pkgcomponent.Analyser, error) {
	return stubAnalyser{}, nil
}

type stubAnalyser struct{}

func (stubAnalyser) Process(context.Context, []*message.Message, schema.Schema) (*message.Message, error) {
	return &message.Message{}, nil
}

func newTestRegistry() *component.Registry {
	r := component.NewRegistry()
	r.RegisterConnector("stub-source", stubConnectorFactory{out: rawEventSchema})
	r.RegisterAnalyser("summarize", stubAnalyserFactory{out: summarySchema})
	return r
}

func TestPlanLinearPipelineResolvesSchemas(t *testing.T) {
	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "linear",
		"artifacts": map[string]any{
			"raw":    map[string]any{"source": map[string]any{"type": "stub-source"}},
			"report": map[string]any{"inputs": "raw", "transform": map[string]any{"type": "summarize"}, "output": true},
		},
	})
	require.NoError(t, err)

	p, err := New(newTestRegistry()).PlanRunbook(rb)
	require.NoError(t, err)

	assert.Equal(t, rawEventSchema, p.Schemas("raw").OutputSchema)
	assert.Equal(t, rawEventSchema, p.Schemas("report").InputSchema)
	assert.Equal(t, summarySchema, p.Schemas("report").OutputSchema)
}

func TestPlanFanInSuccessWhenSchemasMatch(t *testing.T) {
	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "fan-in-ok",
		"artifacts": map[string]any{
			"left":  map[string]any{"source": map[string]any{"type": "stub-source"}},
			"right": map[string]any{"source": map[string]any{"type": "stub-source"}},
			"merged": map[string]any{
				"inputs": []any{"left", "right"}, "transform": map[string]any{"type": "summarize"},
			},
		},
	})
	require.NoError(t, err)

	p, err := New(newTestRegistry()).PlanRunbook(rb)
	require.NoError(t, err)
	assert.Equal(t, rawEventSchema, p.Schemas("merged").InputSchema)
}

func TestPlanFanInSchemaMismatch(t *testing.T) {
	registry := newTestRegistry()
	registry.RegisterConnector("other-source", stubConnectorFactory{out: summarySchema})

	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "fan-in-mismatch",
		"artifacts": map[string]any{
			"left":  map[string]any{"source": map[string]any{"type": "stub-source"}},
			"right": map[string]any{"source": map[string]any{"type": "other-source"}},
			"merged": map[string]any{
				"inputs": []any{"left", "right"}, "transform": map[string]any{"type": "summarize"},
			},
		},
	})
	require.NoError(t, err)

	_, err = New(registry).PlanRunbook(rb)
	require.Error(t, err)
	var mismatchErr *SchemaCompatibilityError
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, "merged", mismatchErr.ArtifactID)
}

func TestPlanMissingArtifactReference(t *testing.T) {
	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "dangling",
		"artifacts": map[string]any{
			"report": map[string]any{"inputs": "does-not-exist", "transform": map[string]any{"type": "summarize"}},
		},
	})
	require.NoError(t, err)

	_, err = New(newTestRegistry()).PlanRunbook(rb)
	require.Error(t, err)
	var missingErr *MissingArtifactError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "does-not-exist", missingErr.MissingID)
}

func TestPlanDetectsCycle(t *testing.T) {
	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "cyclic",
		"artifacts": map[string]any{
			"a": map[string]any{"inputs": "b", "transform": map[string]any{"type": "summarize"}},
			"b": map[string]any{"inputs": "a", "transform": map[string]any{"type": "summarize"}},
		},
	})
	require.NoError(t, err)

	_, err = New(newTestRegistry()).PlanRunbook(rb)
	require.Error(t, err)
}

func TestPlanUnregisteredConnectorFails(t *testing.T) {
	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "unknown-connector",
		"artifacts": map[string]any{
			"raw": map[string]any{"source": map[string]any{"type": "does-not-exist"}},
		},
	})
	require.NoError(t, err)

	_, err = New(newTestRegistry()).PlanRunbook(rb)
	require.Error(t, err)
	var notFoundErr *ComponentNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "connector", notFoundErr.Kind)
}
