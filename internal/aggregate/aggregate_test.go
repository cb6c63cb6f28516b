package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/executor"
	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/plan"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/schema"
	"github.com/waivern-compliance/orchestrator/internal/store"
	pkgcomponent "github.com/waivern-compliance/orchestrator/pkg/component"
)

var aggEventSchema = schema.Schema{Name: "raw.event", Version: "1.0.0"}
var aggReportSchema = schema.Schema{Name: "report", Version: "1.0.0"}

type aggConnectorFactory struct{}

func (aggConnectorFactory) CanCreate(pkgcomponent.Config) bool                       { return true }
func (aggConnectorFactory) ServiceDependencies() map[string]pkgcomponent.ServiceType { return nil }
func (aggConnectorFactory) SupportedOutputSchemas() []schema.Schema                  { return []schema.Schema{aggEventSchema} }
func (aggConnectorFactory) Create(pkgcomponent.Config) (pkgcomponent.Connector, error) {
	return aggConnector{}, nil
}

type aggConnector struct{}

func (aggConnector) Extract(context.Context, schema.Schema) (*message.Message, error) {
	return &message.Message{Content: []byte(`{"finding":"retention-gap"}`), Schema: aggEventSchema}, nil
}

type aggAnalyserFactory struct{}

func (aggAnalyserFactory) CanCreate(pkgcomponent.Config) bool                       { return true }
func (aggAnalyserFactory) ServiceDependencies() map[string]pkgcomponent.ServiceType { return nil }
func (aggAnalyserFactory) SupportedOutputSchemas() []schema.Schema                  { return []schema.Schema{aggReportSchema} }
func (aggAnalyserFactory) InputRequirements() [][]pkgcomponent.InputRequirement      { return nil }
func (aggAnalyserFactory) Create(pkgcomponent.Config) (pkgcomponent.Analyser, error) {
	return aggAnalyser{}, nil
}

type aggAnalyser struct{}

func (aggAnalyser) Process(_ context.Context, inputs []*message.Message, outputSchema schema.Schema) (*message.Message, error) {
	cp := *inputs[0]
	cp.Schema = outputSchema
	return &cp, nil
}

func TestBuildReportForCompletedRun(t *testing.T) {
	registry := component.NewRegistry()
	registry.RegisterConnector("gap-source", aggConnectorFactory{})
	registry.RegisterAnalyser("summarize", aggAnalyserFactory{})

	rb, err := runbook.ParseFromDict(map[string]any{
		"name":        "gdpr-retention",
		"description": "Checks data retention findings",
		"artifacts": map[string]any{
			"raw":    map[string]any{"source": map[string]any{"type": "gap-source"}},
			"report": map[string]any{"inputs": "raw", "transform": map[string]any{"type": "summarize"}, "output": true, "name": "Retention report"},
		},
	})
	require.NoError(t, err)

	p, err := plan.New(registry).PlanRunbook(rb)
	require.NoError(t, err)

	st := store.NewMemory()
	exec := executor.New(registry, st)
	ctx := context.Background()
	execState, err := exec.Run(ctx, p, "agg-run-1")
	require.NoError(t, err)

	report, err := Build(ctx, st, "agg-run-1", p, execState)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, report.Run.Status)
	assert.Equal(t, "gdpr-retention", report.Runbook.Name)
	assert.Equal(t, Summary{Total: 2, Succeeded: 2, Failed: 0, Skipped: 0}, report.Summary)
	require.Len(t, report.Outputs, 1)
	assert.Equal(t, "report", report.Outputs[0].ArtifactID)
	assert.Equal(t, "Retention report", report.Outputs[0].Name)
	assert.JSONEq(t, `{"finding":"retention-gap"}`, string(report.Outputs[0].Content))
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Skipped)
}

type failingAggConnectorFactory struct{}

func (failingAggConnectorFactory) CanCreate(pkgcomponent.Config) bool                       { return true }
func (failingAggConnectorFactory) ServiceDependencies() map[string]pkgcomponent.ServiceType { return nil }
func (failingAggConnectorFactory) SupportedOutputSchemas() []schema.Schema                  { return []schema.Schema{aggEventSchema} }
func (failingAggConnectorFactory) Create(pkgcomponent.Config) (pkgcomponent.Connector, error) {
	return failingAggConnector{}, nil
}

type failingAggConnector struct{}

func (failingAggConnector) Extract(context.Context, schema.Schema) (*message.Message, error) {
	return nil, assert.AnError
}

func TestBuildReportForPartiallyFailedRun(t *testing.T) {
	registry := component.NewRegistry()
	registry.RegisterConnector("broken-source", failingAggConnectorFactory{})
	registry.RegisterAnalyser("summarize", aggAnalyserFactory{})

	rb, err := runbook.ParseFromDict(map[string]any{
		"name": "broken-pipeline",
		"artifacts": map[string]any{
			"raw":    map[string]any{"source": map[string]any{"type": "broken-source"}},
			"report": map[string]any{"inputs": "raw", "transform": map[string]any{"type": "summarize"}, "output": true},
		},
	})
	require.NoError(t, err)

	p, err := plan.New(registry).PlanRunbook(rb)
	require.NoError(t, err)

	st := store.NewMemory()
	exec := executor.New(registry, st)
	ctx := context.Background()
	execState, err := exec.Run(ctx, p, "agg-run-2")
	require.NoError(t, err)

	report, err := Build(ctx, st, "agg-run-2", p, execState)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, report.Run.Status)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "raw", report.Errors[0].ArtifactID)
	assert.Equal(t, []string{"report"}, report.Skipped)
	assert.Empty(t, report.Outputs)
}
