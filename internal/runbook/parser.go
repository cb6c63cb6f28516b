package runbook

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ParseError is the error type Parse and ParseFromDict return for read,
// YAML, substitution, decode and artifact-id failures; callers can test for
// it with errors.As. Failures reported by Runbook.Validate are plain errors.
type ParseError struct {
	Path string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("runbook parse error (%s): %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("runbook parse error: %s", e.Msg)
}

func parseErrf(path, format string, args ...any) error {
	return &ParseError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var artifactIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Parse reads the YAML file at path, substitutes every `${IDENT}` occurrence
// in string scalars (including nested) against the process environment,
// and validates the runbook's structural invariants.
func Parse(path string) (*Runbook, error) {
	data, err := os.ReadFile(path) //nolint:gosec // runbook path is operator-supplied, not user input from a remote boundary
	if err != nil {
		return nil, parseErrf(path, "read file: %v", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, parseErrf(path, "invalid YAML: %v", err)
	}
	if len(root.Content) == 0 {
		return nil, parseErrf(path, "empty document")
	}

	if err := substitute(root.Content[0], path); err != nil {
		return nil, err
	}

	rb, err := decode(root.Content[0], path)
	if err != nil {
		return nil, err
	}
	rb.Dir = filepath.Dir(path)

	if err := rb.Validate(); err != nil {
		return nil, err
	}
	return rb, nil
}

// ParseFromDict builds a Runbook from an already-decoded document without
// performing ${IDENT} substitution. Intended for tests.
func ParseFromDict(doc map[string]any) (*Runbook, error) {
	rb := &Runbook{
		Artifacts: make(map[string]*ArtifactDefinition),
	}
	if v, ok := doc["name"].(string); ok {
		rb.Name = v
	}
	if v, ok := doc["description"].(string); ok {
		rb.Description = v
	}
	if v, ok := doc["contact"].(string); ok {
		rb.Contact = v
	}

	rawArtifacts, ok := doc["artifacts"].(map[string]any)
	if !ok {
		return nil, &ParseError{Msg: "missing or invalid artifacts map"}
	}
	order := make([]string, 0, len(rawArtifacts))
	for id := range rawArtifacts {
		order = append(order, id)
	}
	// map iteration order is unspecified; ParseFromDict is test-only so a
	// stable-but-arbitrary (sorted) order is sufficient.
	sortStrings(order)

	for _, id := range order {
		if !artifactIDPattern.MatchString(id) {
			return nil, &ParseError{Msg: fmt.Sprintf("invalid artifact id %q", id)}
		}
		m, ok := rawArtifacts[id].(map[string]any)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("artifact %q is not a mapping", id)}
		}
		def, err := artifactFromMap(id, m)
		if err != nil {
			return nil, err
		}
		rb.Artifacts[id] = def
		rb.ArtifactOrder = append(rb.ArtifactOrder, id)
	}

	if err := rb.Validate(); err != nil {
		return nil, err
	}
	return rb, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// substitute walks the YAML node tree, replacing ${IDENT} in every scalar
// string value.
func substitute(node *yaml.Node, path string) error {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.ScalarNode && (node.Tag == "!!str" || node.Tag == "") {
		replaced, err := substituteString(node.Value, path)
		if err != nil {
			return err
		}
		node.Value = replaced
	}
	for _, child := range node.Content {
		if err := substitute(child, path); err != nil {
			return err
		}
	}
	return nil
}

func substituteString(s, path string) (string, error) {
	var outerErr error
	result := envRef.ReplaceAllStringFunc(s, func(match string) string {
		name := envRef.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			outerErr = parseErrf(path, "undefined environment variable %q", name)
			return match
		}
		return val
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// decode converts the (already-substituted) top-level mapping node into a
// Runbook, rejecting duplicate artifact ids explicitly rather than relying
// on last-wins map-decode semantics.
func decode(top *yaml.Node, path string) (*Runbook, error) {
	if top.Kind != yaml.MappingNode {
		return nil, parseErrf(path, "document root is not a mapping")
	}

	rb := &Runbook{Artifacts: make(map[string]*ArtifactDefinition)}
	var artifactsNode *yaml.Node

	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		val := top.Content[i+1]
		switch key {
		case "name":
			rb.Name = val.Value
		case "description":
			rb.Description = val.Value
		case "contact":
			rb.Contact = val.Value
		case "artifacts":
			artifactsNode = val
		}
	}

	if artifactsNode == nil || artifactsNode.Kind != yaml.MappingNode {
		return nil, parseErrf(path, "missing or invalid top-level 'artifacts' mapping")
	}

	seen := make(map[string]bool)
	for i := 0; i+1 < len(artifactsNode.Content); i += 2 {
		idNode := artifactsNode.Content[i]
		valNode := artifactsNode.Content[i+1]
		id := idNode.Value

		if seen[id] {
			return nil, parseErrf(path, "duplicate artifact id %q", id)
		}
		seen[id] = true

		if !artifactIDPattern.MatchString(id) {
			return nil, parseErrf(path, "invalid artifact id %q", id)
		}

		var m map[string]any
		if err := valNode.Decode(&m); err != nil {
			return nil, parseErrf(path, "artifact %q: %v", id, err)
		}
		def, err := artifactFromMap(id, m)
		if err != nil {
			return nil, err
		}
		rb.Artifacts[id] = def
		rb.ArtifactOrder = append(rb.ArtifactOrder, id)
	}

	return rb, nil
}

func artifactFromMap(id string, m map[string]any) (*ArtifactDefinition, error) {
	def := &ArtifactDefinition{ID: id}

	if raw, ok := m["source"]; ok {
		sm, ok := raw.(map[string]any)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("artifact %q: source is not a mapping", id)}
		}
		spec := &SourceSpec{}
		if v, ok := sm["type"].(string); ok {
			spec.Type = v
		}
		if props, ok := sm["properties"].(map[string]any); ok {
			spec.Properties = props
		}
		def.Source = spec
	}

	if raw, ok := m["inputs"]; ok {
		inputs, err := toStringList(raw)
		if err != nil {
			return nil, &ParseError{Msg: fmt.Sprintf("artifact %q: inputs: %v", id, err)}
		}
		def.Inputs = inputs
	}

	if raw, ok := m["transform"]; ok {
		tm, ok := raw.(map[string]any)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("artifact %q: transform is not a mapping", id)}
		}
		spec := &TransformSpec{}
		if v, ok := tm["type"].(string); ok {
			spec.Type = v
		}
		if props, ok := tm["properties"].(map[string]any); ok {
			spec.Properties = props
		}
		def.Transform = spec
	}

	if v, ok := m["output"].(bool); ok {
		def.Output = v
	}
	if v, ok := m["output_schema"].(string); ok {
		def.OutputSchema = v
	}
	if v, ok := m["name"].(string); ok {
		def.Name = v
	}
	if v, ok := m["description"].(string); ok {
		def.Description = v
	}
	if v, ok := m["contact"].(string); ok {
		def.Contact = v
	}

	return def, nil
}

func toStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list entry %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list of strings, got %T", raw)
	}
}
