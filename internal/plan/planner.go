// Package plan implements the Planner: composing the Component Registry,
// Runbook Parser, and Execution DAG into an immutable ExecutionPlan.
package plan

import (
	"fmt"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/dag"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/schema"
)

// ChildRunbookTransformType is the distinguished transform.type value that
// routes a derived artifact to the child-runbook resolver instead of an
// analyser/classifier factory.
const ChildRunbookTransformType = "runbook"

// Planner builds ExecutionPlans from Runbooks.
type Planner struct {
	registry *component.Registry
}

// New creates a Planner backed by registry.
func New(registry *component.Registry) *Planner {
	return &Planner{registry: registry}
}

// Plan parses the runbook at path and produces an ExecutionPlan.
func (pl *Planner) Plan(path string) (*ExecutionPlan, error) {
	rb, err := runbook.Parse(path)
	if err != nil {
		return nil, err
	}
	return pl.PlanRunbook(rb)
}

// PlanRunbook validates and plans an already-parsed Runbook (used directly
// by ParseFromDict-based tests and by the child-runbook resolver).
func (pl *Planner) PlanRunbook(rb *runbook.Runbook) (*ExecutionPlan, error) {
	d := dag.New(rb)
	if err := d.Validate(); err != nil {
		return nil, err
	}

	for id, def := range rb.Artifacts {
		for _, dep := range def.Inputs {
			if _, ok := rb.Artifacts[dep]; !ok {
				return nil, &MissingArtifactError{ArtifactID: id, MissingID: dep}
			}
		}
	}

	schemas := make(map[string]ArtifactSchemas, len(rb.Artifacts))
	sorter := d.NewSorter()
	for !sorter.Exhausted() {
		ready := sorter.Ready()
		if len(ready) == 0 {
			// d.Validate() already rejected cycles, so this cannot happen;
			// guard against an infinite loop regardless.
			return nil, fmt.Errorf("plan: internal error: no ready artifacts but plan not exhausted")
		}
		for _, id := range ready {
			as, err := pl.resolveSchemas(id, rb.Artifacts[id], schemas)
			if err != nil {
				return nil, err
			}
			schemas[id] = as
			sorter.MarkDone(id)
		}
	}

	return &ExecutionPlan{Runbook: rb, DAG: d, ArtifactSchemas: schemas}, nil
}

func (pl *Planner) resolveSchemas(id string, def *runbook.ArtifactDefinition, resolved map[string]ArtifactSchemas) (ArtifactSchemas, error) {
	if def.IsSource() {
		out, err := pl.sourceOutputSchema(id, def)
		if err != nil {
			return ArtifactSchemas{}, err
		}
		return ArtifactSchemas{OutputSchema: out}, nil
	}
	return pl.derivedSchemas(id, def, resolved)
}

func (pl *Planner) sourceOutputSchema(id string, def *runbook.ArtifactDefinition) (schema.Schema, error) {
	if def.OutputSchema != "" {
		return schema.Parse(def.OutputSchema)
	}
	f, err := pl.registry.Connector(def.Source.Type)
	if err != nil {
		return schema.Schema{}, &ComponentNotFoundError{ArtifactID: id, Kind: "connector", TypeName: def.Source.Type}
	}
	outs := f.SupportedOutputSchemas()
	if len(outs) == 0 {
		return schema.Schema{}, fmt.Errorf("plan: artifact %q: connector %q declares no output schemas", id, def.Source.Type)
	}
	return outs[0], nil
}

func (pl *Planner) derivedSchemas(id string, def *runbook.ArtifactDefinition, resolved map[string]ArtifactSchemas) (ArtifactSchemas, error) {
	common := resolved[def.Inputs[0]].OutputSchema
	for _, dep := range def.Inputs[1:] {
		depSchema := resolved[dep].OutputSchema
		if depSchema != common {
			return ArtifactSchemas{}, &SchemaCompatibilityError{
				ArtifactID: id,
				Expected:   common.Key(),
				Got:        depSchema.Key(),
				FromInput:  dep,
			}
		}
	}

	out, err := pl.derivedOutputSchema(id, def, common)
	if err != nil {
		return ArtifactSchemas{}, err
	}
	return ArtifactSchemas{InputSchema: common, OutputSchema: out}, nil
}

func (pl *Planner) derivedOutputSchema(id string, def *runbook.ArtifactDefinition, inputSchema schema.Schema) (schema.Schema, error) {
	if def.OutputSchema != "" {
		return schema.Parse(def.OutputSchema)
	}
	if def.Transform == nil {
		return inputSchema, nil // pass-through
	}
	if def.Transform.Type == ChildRunbookTransformType {
		// The child-runbook resolver has no registered factory to consult;
		// an explicit output_schema is required when one isn't a pass-through.
		return schema.Schema{}, fmt.Errorf("plan: artifact %q: transform type %q requires an explicit output_schema", id, ChildRunbookTransformType)
	}

	if f, err := pl.registry.Analyser(def.Transform.Type); err == nil {
		return firstOutputSchema(id, def.Transform.Type, "analyser", f.SupportedOutputSchemas())
	}
	if f, err := pl.registry.Classifier(def.Transform.Type); err == nil {
		return firstOutputSchema(id, def.Transform.Type, "classifier", f.SupportedOutputSchemas())
	}
	return schema.Schema{}, &ComponentNotFoundError{ArtifactID: id, Kind: "analyser", TypeName: def.Transform.Type}
}

func firstOutputSchema(id, typeName, kind string, outs []schema.Schema) (schema.Schema, error) {
	if len(outs) == 0 {
		return schema.Schema{}, fmt.Errorf("plan: artifact %q: %s %q declares no output schemas", id, kind, typeName)
	}
	return outs[0], nil
}
