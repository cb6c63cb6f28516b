package plan

import "fmt"

// MissingArtifactError is raised when a derived artifact's `inputs` names
// an id that does not resolve to another artifact in the runbook.
type MissingArtifactError struct {
	ArtifactID string
	MissingID  string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("plan: artifact %q depends on unknown artifact %q", e.ArtifactID, e.MissingID)
}

// ComponentNotFoundError is raised when a source/transform names a
// connector/analyser/classifier type that is not registered.
type ComponentNotFoundError struct {
	ArtifactID string
	Kind       string // "connector", "analyser", "classifier"
	TypeName   string
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("plan: artifact %q: %s %q not found", e.ArtifactID, e.Kind, e.TypeName)
}

// SchemaCompatibilityError is raised when a fan-in artifact's upstream
// artifacts do not all produce the same (name, version) schema.
type SchemaCompatibilityError struct {
	ArtifactID string
	Expected   string
	Got        string
	FromInput  string
}

func (e *SchemaCompatibilityError) Error() string {
	return fmt.Sprintf("plan: artifact %q: fan-in schema mismatch: expected %s, input %q produces %s",
		e.ArtifactID, e.Expected, e.FromInput, e.Got)
}
