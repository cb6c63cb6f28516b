package childrunbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/schema"
	"github.com/waivern-compliance/orchestrator/internal/store"
	pkgcomponent "github.com/waivern-compliance/orchestrator/pkg/component"
)

func TestResolveChildPathRejectsAbsolutePaths(t *testing.T) {
	_, err := resolveChildPath("/runbooks/parent", "/etc/passwd")
	assert.Error(t, err)
}

func TestResolveChildPathRejectsDirectoryEscape(t *testing.T) {
	_, err := resolveChildPath("/runbooks/parent", "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveChildPathAcceptsNestedRelativePath(t *testing.T) {
	got, err := resolveChildPath("/runbooks/parent", "children/gdpr.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/runbooks/parent", "children/gdpr.yaml"), got)
}

var childEventSchema = schema.Schema{Name: "child.event", Version: "1.0.0"}
var childOutSchema = schema.Schema{Name: "child.report", Version: "1.0.0"}

type childConnectorFactory struct{}

func (childConnectorFactory) CanCreate(pkgcomponent.Config) bool                       { return true }
func (childConnectorFactory) ServiceDependencies() map[string]pkgcomponent.ServiceType { return nil }
func (childConnectorFactory) SupportedOutputSchemas() []schema.Schema                  { return []schema.Schema{childEventSchema} }
func (childConnectorFactory) Create(pkgcomponent.Config) (pkgcomponent.Connector, error) {
	return childConnector{}, nil
}

type childConnector struct{}

func (childConnector) Extract(context.Context, schema.Schema) (*message.Message, error) {
	return &message.Message{Content: []byte(`{"child":true}`), Schema: childEventSchema}, nil
}

func TestRunChildExecutesNestedRunbookAndStampsOrigin(t *testing.T) {
	dir := t.TempDir()
	childPath := filepath.Join(dir, "child.yaml")
	require.NoError(t, os.WriteFile(childPath, []byte(`
name: child-pipeline
artifacts:
  raw:
    source:
      type: child-source
    output: true
`), 0o644))

	registry := component.NewRegistry()
	registry.RegisterConnector("child-source", childConnectorFactory{})
	st := store.NewMemory()
	resolver := New(registry, st)

	def := &runbook.ArtifactDefinition{
		ID: "nested",
		Transform: &runbook.TransformSpec{
			Type:       "runbook",
			Properties: map[string]any{"path": "child.yaml"},
		},
	}

	msg, err := resolver.RunChild(context.Background(), dir, def, nil, childOutSchema)
	require.NoError(t, err)
	assert.Equal(t, childOutSchema, msg.Schema)
	assert.Equal(t, "nested", msg.Extensions.Execution.Alias)
	assert.Equal(t, message.ChildOrigin("child"), msg.Extensions.Execution.Origin)
	assert.Contains(t, string(msg.Content), "child")
}

func TestRunChildRejectsMissingPathProperty(t *testing.T) {
	registry := component.NewRegistry()
	st := store.NewMemory()
	resolver := New(registry, st)

	def := &runbook.ArtifactDefinition{
		ID:        "nested",
		Transform: &runbook.TransformSpec{Type: "runbook"},
	}

	_, err := resolver.RunChild(context.Background(), t.TempDir(), def, nil, childOutSchema)
	require.Error(t, err)
	var invalidPathErr *InvalidPathError
	assert.ErrorAs(t, err, &invalidPathErr)
}

func TestRunChildReportsNotFoundForMissingFile(t *testing.T) {
	registry := component.NewRegistry()
	st := store.NewMemory()
	resolver := New(registry, st)

	def := &runbook.ArtifactDefinition{
		ID: "nested",
		Transform: &runbook.TransformSpec{
			Type:       "runbook",
			Properties: map[string]any{"path": "missing.yaml"},
		},
	}

	_, err := resolver.RunChild(context.Background(), t.TempDir(), def, nil, childOutSchema)
	require.Error(t, err)
	var notFoundErr *ChildRunbookNotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}
