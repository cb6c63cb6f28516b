// Package store implements the Artifact Store: async, key-addressed
// persistence of per-run state, metadata, and artifact payloads, with
// local-filesystem and in-memory backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/runmeta"
	"github.com/waivern-compliance/orchestrator/internal/state"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: not found")

// Store is the contract consumed by the executor, runmeta, and the
// aggregator. Every operation may suspend on I/O; implementations must not
// serialize unrelated runs, but must serialize writes to the same key
// within a run.
type Store interface {
	PutArtifact(ctx context.Context, runID, artifactID string, msg *message.Message) error
	GetArtifact(ctx context.Context, runID, artifactID string) (*message.Message, error)

	PutState(ctx context.Context, runID string, st *state.ExecutionState) error
	GetState(ctx context.Context, runID string) (*state.ExecutionState, error)

	PutMetadata(ctx context.Context, runID string, md *runmeta.RunMetadata) error
	GetMetadata(ctx context.Context, runID string) (*runmeta.RunMetadata, error)

	ListRuns(ctx context.Context) ([]string, error)
}

// New selects a backend by name: "local" (filesystem-backed, rooted at
// path) or "memory" (process-local, lost on exit). Empty defaults to
// "memory".
func New(storeType, path string) (Store, error) {
	switch storeType {
	case "", "memory":
		return NewMemory(), nil
	case "local":
		if path == "" {
			return nil, fmt.Errorf("store: ORCHESTRATOR_STORE_PATH required for local backend")
		}
		return NewLocalFS(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", storeType)
	}
}

func marshalArtifact(msg *message.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func unmarshalArtifact(data []byte) (*message.Message, error) {
	var msg message.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func marshalState(st *state.ExecutionState) ([]byte, error) {
	st.PrepareForSave()
	return json.Marshal(st)
}

func unmarshalState(data []byte) (*state.ExecutionState, error) {
	var st state.ExecutionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	st.PopulateFromLists()
	return &st, nil
}

func marshalMetadata(md *runmeta.RunMetadata) ([]byte, error) {
	return json.Marshal(md)
}

func unmarshalMetadata(data []byte) (*runmeta.RunMetadata, error) {
	var md runmeta.RunMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, err
	}
	return &md, nil
}
