package store

import (
	"context"
	"sync"

	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/runmeta"
	"github.com/waivern-compliance/orchestrator/internal/state"
)

// Memory is an in-memory Store, used for tests and the "memory" backend
// selected via ORCHESTRATOR_STORE_TYPE.
type Memory struct {
	mu        sync.RWMutex
	artifacts map[string]*message.Message
	states    map[string]*state.ExecutionState
	metadata  map[string]*runmeta.RunMetadata
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		artifacts: make(map[string]*message.Message),
		states:    make(map[string]*state.ExecutionState),
		metadata:  make(map[string]*runmeta.RunMetadata),
	}
}

func artifactKey(runID, artifactID string) string {
	return runID + "/" + artifactID
}

func (m *Memory) PutArtifact(ctx context.Context, runID, artifactID string, msg *message.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// store a defensive copy so callers mutating msg afterward can't
	// retroactively change what was "persisted".
	cp := *msg
	m.artifacts[artifactKey(runID, artifactID)] = &cp
	return nil
}

func (m *Memory) GetArtifact(ctx context.Context, runID, artifactID string) (*message.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.artifacts[artifactKey(runID, artifactID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *Memory) PutState(ctx context.Context, runID string, st *state.ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.PrepareForSave()
	cp := *st
	cp.Completed = cloneSet(st.Completed)
	cp.Failed = cloneSet(st.Failed)
	cp.Skipped = cloneSet(st.Skipped)
	cp.Errors = cloneStrMap(st.Errors)
	m.states[runID] = &cp
	return nil
}

func (m *Memory) GetState(ctx context.Context, runID string) (*state.ExecutionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	cp.Completed = cloneSet(st.Completed)
	cp.Failed = cloneSet(st.Failed)
	cp.Skipped = cloneSet(st.Skipped)
	cp.Errors = cloneStrMap(st.Errors)
	return &cp, nil
}

func (m *Memory) PutMetadata(ctx context.Context, runID string, md *runmeta.RunMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *md
	m.metadata[runID] = &cp
	return nil
}

func (m *Memory) GetMetadata(ctx context.Context, runID string) (*runmeta.RunMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.metadata[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *md
	return &cp, nil
}

func (m *Memory) ListRuns(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]string, 0, len(m.metadata))
	for id := range m.metadata {
		runs = append(runs, id)
	}
	return runs, nil
}

func cloneSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
