package plan

import (
	"github.com/waivern-compliance/orchestrator/internal/dag"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/schema"
)

// ArtifactSchemas is the resolved schema pair for one artifact. InputSchema
// is the zero Schema for source artifacts.
type ArtifactSchemas struct {
	InputSchema  schema.Schema
	OutputSchema schema.Schema
}

// ExecutionPlan is the immutable, validated output of the Planner: what to
// execute, with no component instances — only configuration and resolved
// schemas. Callers must not mutate a returned *ExecutionPlan.
type ExecutionPlan struct {
	Runbook         *runbook.Runbook
	DAG             *dag.DAG
	ArtifactSchemas map[string]ArtifactSchemas
}

// Schemas returns the resolved schema pair for artifactID.
func (p *ExecutionPlan) Schemas(artifactID string) ArtifactSchemas {
	return p.ArtifactSchemas[artifactID]
}
