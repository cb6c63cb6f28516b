// Package runmeta tracks run identity, timestamps, and status, and detects
// interrupted runs for resume.
package runmeta

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is a RunMetadata's lifecycle state.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// RunMetadata is the persisted identity/status record for one run.
type RunMetadata struct {
	RunID       string     `json:"run_id"`
	RunbookPath string     `json:"runbook_path"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      Status     `json:"status"`
	WasResumed  bool       `json:"was_resumed"`
}

// Store is the narrow persistence contract runmeta needs from the artifact
// store (internal/store.Store satisfies it).
type Store interface {
	PutMetadata(ctx context.Context, runID string, md *RunMetadata) error
	GetMetadata(ctx context.Context, runID string) (*RunMetadata, error)
	ListRuns(ctx context.Context) ([]string, error)
}

// NewRunID mints a UUID v4 run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Start creates and persists a new RunMetadata with status running.
func Start(ctx context.Context, st Store, runID, runbookPath string) (*RunMetadata, error) {
	md := &RunMetadata{
		RunID:       runID,
		RunbookPath: runbookPath,
		StartedAt:   time.Now().UTC(),
		Status:      StatusRunning,
	}
	if err := st.PutMetadata(ctx, runID, md); err != nil {
		return nil, err
	}
	return md, nil
}

// Complete marks md finished with the given terminal status and persists it.
func Complete(ctx context.Context, st Store, md *RunMetadata, status Status) error {
	now := time.Now().UTC()
	md.CompletedAt = &now
	md.Status = status
	return st.PutMetadata(ctx, md.RunID, md)
}

// ListInterrupted returns the ids of runs whose persisted metadata still
// says "running" — candidates for resume because the process that ran them
// crashed or was killed before marking them complete/failed.
func ListInterrupted(ctx context.Context, st Store) ([]string, error) {
	runIDs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	var interrupted []string
	for _, id := range runIDs {
		md, err := st.GetMetadata(ctx, id)
		if err != nil {
			continue // metadata missing/corrupt is not this function's concern
		}
		if md.Status == StatusRunning {
			interrupted = append(interrupted, id)
		}
	}
	return interrupted, nil
}

// Resume loads the metadata for runID, marks it resumed, and persists the
// flag. The caller is responsible for re-entering the executor with this
// run id; Resume itself does not execute anything.
func Resume(ctx context.Context, st Store, runID string) (*RunMetadata, error) {
	md, err := st.GetMetadata(ctx, runID)
	if err != nil {
		return nil, err
	}
	md.WasResumed = true
	md.Status = StatusRunning
	if err := st.PutMetadata(ctx, runID, md); err != nil {
		return nil, err
	}
	return md, nil
}
