package runbook

import "fmt"

// Runbook is the top-level parsed document.
type Runbook struct {
	Name        string
	Description string
	Contact     string
	// Dir is the directory the runbook file was loaded from (empty for
	// ParseFromDict); used to resolve child-runbook paths.
	Dir string
	// ArtifactOrder lists artifact ids in declaration order (sorted order for
	// ParseFromDict) so ready-set dispatch within a single scheduler tick is
	// deterministic.
	ArtifactOrder []string
	Artifacts     map[string]*ArtifactDefinition
}

// SourceSpec is the `source:` shape of an ArtifactDefinition.
type SourceSpec struct {
	Type       string
	Properties map[string]any
}

// TransformSpec is the `transform:` shape of a derived ArtifactDefinition.
type TransformSpec struct {
	Type       string
	Properties map[string]any
}

// ArtifactDefinition is exactly one of Source or Inputs (never both, never
// neither — enforced by Validate).
type ArtifactDefinition struct {
	ID string

	Source *SourceSpec
	Inputs []string // ArtifactIds, runbook-declared order

	Transform *TransformSpec // nil for pass-through derived artifacts

	Output       bool
	OutputSchema string // "name" or "name/version", as written in YAML
	Name         string
	Description  string
	Contact      string
}

// IsSource reports whether this artifact is produced by a connector.
func (a *ArtifactDefinition) IsSource() bool {
	return a.Source != nil
}

// IsDerived reports whether this artifact is produced from upstream
// artifacts.
func (a *ArtifactDefinition) IsDerived() bool {
	return a.Source == nil
}

// Validate checks the structural invariants a parsed Runbook must satisfy
// independent of any component registry: exactly one of source/inputs per
// artifact, and non-empty inputs lists. Whether input ids actually resolve
// and whether the graph is acyclic are checked later by the planner and the
// dag package respectively.
func (r *Runbook) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("runbook: missing name")
	}
	if len(r.Artifacts) == 0 {
		return fmt.Errorf("runbook: no artifacts")
	}
	for id, a := range r.Artifacts {
		if a.Source == nil && a.Inputs == nil {
			return fmt.Errorf("runbook: artifact %q has neither source nor inputs", id)
		}
		if a.Source != nil && a.Inputs != nil {
			return fmt.Errorf("runbook: artifact %q has both source and inputs", id)
		}
		if a.Source != nil && a.Source.Type == "" {
			return fmt.Errorf("runbook: artifact %q source missing type", id)
		}
		if a.Inputs != nil && len(a.Inputs) == 0 {
			return fmt.Errorf("runbook: artifact %q has empty inputs list", id)
		}
		// Whether each input id resolves to another artifact in this runbook
		// is checked by the planner (MissingArtifactError), not here: it is
		// a planning-time failure in the error taxonomy, not a parse-time one.
	}
	return nil
}
