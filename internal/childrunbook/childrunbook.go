// Package childrunbook implements the child-runbook resolver: a derived
// artifact whose transform.type is the distinguished value "runbook" plans
// and executes a nested runbook to completion, folding its outputs into a
// single Message in the parent run.
package childrunbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/waivern-compliance/orchestrator/internal/aggregate"
	"github.com/waivern-compliance/orchestrator/internal/component"
	"github.com/waivern-compliance/orchestrator/internal/executor"
	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/plan"
	"github.com/waivern-compliance/orchestrator/internal/runbook"
	"github.com/waivern-compliance/orchestrator/internal/runmeta"
	"github.com/waivern-compliance/orchestrator/internal/schema"
	"github.com/waivern-compliance/orchestrator/internal/store"
)

// InvalidPathError is raised when a child runbook's resolved path escapes
// the parent runbook's directory.
type InvalidPathError struct {
	ArtifactID string
	Path       string
	Reason     string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("childrunbook: artifact %q: path %q: %s", e.ArtifactID, e.Path, e.Reason)
}

// ChildRunbookNotFoundError is raised when a resolved child path is valid
// (within the allowed roots) but no file exists there.
type ChildRunbookNotFoundError struct {
	ArtifactID string
	Path       string
}

func (e *ChildRunbookNotFoundError) Error() string {
	return fmt.Sprintf("childrunbook: artifact %q: runbook not found at %q", e.ArtifactID, e.Path)
}

// Resolver plans and executes child runbooks on behalf of the executor. It
// implements executor.ChildRunner.
type Resolver struct {
	registry       *component.Registry
	store          store.Store
	maxConcurrency int
}

// New builds a Resolver sharing registry and store with the parent executor.
func New(registry *component.Registry, st store.Store) *Resolver {
	return &Resolver{registry: registry, store: st}
}

// RunChild resolves def's `path` property against parentDir, plans and
// executes the child runbook to completion, and folds its result into one
// Message tagged with the child's origin.
func (r *Resolver) RunChild(ctx context.Context, parentDir string, def *runbook.ArtifactDefinition, inputs []*message.Message, outputSchema schema.Schema) (*message.Message, error) {
	rawPath, _ := def.Transform.Properties["path"].(string)
	if rawPath == "" {
		return nil, &InvalidPathError{ArtifactID: def.ID, Path: rawPath, Reason: "transform.properties.path is required"}
	}

	childPath, err := resolveChildPath(parentDir, rawPath)
	if err != nil {
		return nil, &InvalidPathError{ArtifactID: def.ID, Path: rawPath, Reason: err.Error()}
	}

	if _, statErr := os.Stat(childPath); statErr != nil {
		return nil, &ChildRunbookNotFoundError{ArtifactID: def.ID, Path: childPath}
	}

	childRunbook, err := runbook.Parse(childPath)
	if err != nil {
		return nil, fmt.Errorf("childrunbook: artifact %q: parse %s: %w", def.ID, childPath, err)
	}

	planner := plan.New(r.registry)
	childPlan, err := planner.PlanRunbook(childRunbook)
	if err != nil {
		return nil, fmt.Errorf("childrunbook: artifact %q: plan %s: %w", def.ID, childPath, err)
	}

	childRunID := runmeta.NewRunID()
	md, err := runmeta.Start(ctx, r.store, childRunID, childPath)
	if err != nil {
		return nil, fmt.Errorf("childrunbook: artifact %q: start run metadata: %w", def.ID, err)
	}

	exec := executor.New(r.registry, r.store, executor.WithMaxConcurrency(r.maxConcurrency), executor.WithChildRunner(r))
	childState, runErr := exec.Run(ctx, childPlan, childRunID)

	completeStatus := runmeta.StatusCompleted
	if runErr != nil || len(childState.Failed) > 0 {
		completeStatus = runmeta.StatusFailed
	}
	_ = runmeta.Complete(ctx, r.store, md, completeStatus)
	if runErr != nil {
		return nil, fmt.Errorf("childrunbook: artifact %q: execute %s: %w", def.ID, childPath, runErr)
	}

	report, err := aggregate.Build(ctx, r.store, childRunID, childPlan, childState)
	if err != nil {
		return nil, fmt.Errorf("childrunbook: artifact %q: aggregate results: %w", def.ID, err)
	}

	content, err := report.MarshalContent()
	if err != nil {
		return nil, fmt.Errorf("childrunbook: artifact %q: marshal child report: %w", def.ID, err)
	}

	childName := strings.TrimSuffix(filepath.Base(childPath), filepath.Ext(childPath))
	msg := &message.Message{
		Content: content,
		Schema:  outputSchema,
	}
	msg.Extensions.Execution.Origin = message.ChildOrigin(childName)
	msg.Extensions.Execution.Alias = def.ID
	return msg, nil
}

// resolveChildPath joins parentDir with rawPath and rejects absolute paths
// or any path that escapes parentDir after normalisation.
func resolveChildPath(parentDir, rawPath string) (string, error) {
	if filepath.IsAbs(rawPath) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	joined := filepath.Join(parentDir, rawPath)
	cleanedParent := filepath.Clean(parentDir)
	rel, err := filepath.Rel(cleanedParent, joined)
	if err != nil {
		return "", fmt.Errorf("cannot resolve relative to runbook directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the runbook directory")
	}
	return joined, nil
}
