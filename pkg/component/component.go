// Package component defines the narrow contracts that connectors,
// analysers, and classifiers must implement to plug into the orchestrator.
// Concrete implementations (MySQL/MongoDB/filesystem/GitHub connectors,
// pattern-matching analysers, LLM-backed classifiers) live outside this
// module and are consumed only through these interfaces.
package component

import (
	"context"

	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/schema"
)

// ServiceType names an infrastructure service a factory declares it needs
// injected (a database handle, an HTTP client, an LLM client, ...). The
// orchestrator core does not interpret the string; it is matched against
// whatever services the host process has registered.
type ServiceType string

// InputRequirement names a single required upstream schema.
type InputRequirement struct {
	Schema schema.Schema
}

// Config is the component-specific configuration: the artifact's runbook
// `properties`, passed as-is; no run-wide values are merged into it.
// Recognised keys are validated by each factory's CanCreate.
type Config map[string]any

// Factory is the capability set shared by all three component flavours.
type Factory interface {
	// CanCreate validates config structure and service availability without
	// side effects.
	CanCreate(cfg Config) bool
	// ServiceDependencies declares the infrastructure services a created
	// instance will need.
	ServiceDependencies() map[string]ServiceType
}

// Connector produces a source artifact's Message from external data.
type Connector interface {
	Extract(ctx context.Context, outputSchema schema.Schema) (*message.Message, error)
}

// ConnectorFactory creates transient Connector instances.
type ConnectorFactory interface {
	Factory
	Create(cfg Config) (Connector, error)
	SupportedOutputSchemas() []schema.Schema
}

// Analyser (and, identically-shaped, Classifier) produces a derived
// artifact's Message from one or more upstream Messages.
type Analyser interface {
	Process(ctx context.Context, inputs []*message.Message, outputSchema schema.Schema) (*message.Message, error)
}

// AnalyserFactory creates transient Analyser instances and declares the
// input/output schema contract of the analyser class it produces.
type AnalyserFactory interface {
	Factory
	Create(cfg Config) (Analyser, error)
	// InputRequirements returns alternatives (outer slice) of AND-combined
	// required input schemas (inner slice). A fan-in artifact satisfies the
	// factory if its input schema set matches any one alternative exactly.
	InputRequirements() [][]InputRequirement
	SupportedOutputSchemas() []schema.Schema
}

// Classifier is identical in shape to Analyser: it consumes Messages and
// produces a Message (typically a jurisdiction/category classification).
type Classifier = Analyser

// ClassifierFactory is identical in shape to AnalyserFactory.
type ClassifierFactory interface {
	Factory
	Create(cfg Config) (Classifier, error)
	InputRequirements() [][]InputRequirement
	SupportedOutputSchemas() []schema.Schema
}
