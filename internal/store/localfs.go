package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/waivern-compliance/orchestrator/internal/message"
	"github.com/waivern-compliance/orchestrator/internal/runmeta"
	"github.com/waivern-compliance/orchestrator/internal/state"
)

// LocalFS persists runs under one directory per run, one JSON file per key,
// written atomically via a temp file followed by rename so a crash mid-write
// never leaves a corrupt file in place.
type LocalFS struct {
	root string

	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// NewLocalFS creates a LocalFS rooted at dir, creating it if necessary.
func NewLocalFS(dir string) (*LocalFS, error) {
	//nolint:gosec // G301: 0755 is intentional for a shared run-store directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: ensure root dir: %w", err)
	}
	return &LocalFS{root: dir, keyLocks: make(map[string]*sync.Mutex)}, nil
}

func (s *LocalFS) lockFor(key string) *sync.Mutex {
	s.keyLocksMu.Lock()
	defer s.keyLocksMu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

func (s *LocalFS) runDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *LocalFS) artifactPath(runID, artifactID string) string {
	return filepath.Join(s.runDir(runID), "artifacts", artifactID+".json")
}

func (s *LocalFS) statePath(runID string) string {
	return filepath.Join(s.runDir(runID), "state.json")
}

func (s *LocalFS) metadataPath(runID string) string {
	return filepath.Join(s.runDir(runID), "metadata.json")
}

// writeAtomic writes data to path via a .tmp sibling followed by rename,
// so a crash mid-write never leaves a corrupt file at path.
func writeAtomic(path string, data []byte) error {
	//nolint:gosec // G301: 0755 is intentional for per-run directories
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("store: ensure dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable run-state files
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit %s: %w", path, err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path constructed from registry-internal run/artifact ids
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	return data, nil
}

func (s *LocalFS) PutArtifact(ctx context.Context, runID, artifactID string, msg *message.Message) error {
	path := s.artifactPath(runID, artifactID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	data, err := marshalArtifact(msg)
	if err != nil {
		return fmt.Errorf("store: marshal artifact %s/%s: %w", runID, artifactID, err)
	}
	return writeAtomic(path, data)
}

func (s *LocalFS) GetArtifact(ctx context.Context, runID, artifactID string) (*message.Message, error) {
	data, err := readFile(s.artifactPath(runID, artifactID))
	if err != nil {
		return nil, err
	}
	return unmarshalArtifact(data)
}

func (s *LocalFS) PutState(ctx context.Context, runID string, st *state.ExecutionState) error {
	path := s.statePath(runID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	data, err := marshalState(st)
	if err != nil {
		return fmt.Errorf("store: marshal state for %s: %w", runID, err)
	}
	return writeAtomic(path, data)
}

func (s *LocalFS) GetState(ctx context.Context, runID string) (*state.ExecutionState, error) {
	data, err := readFile(s.statePath(runID))
	if err != nil {
		return nil, err
	}
	return unmarshalState(data)
}

func (s *LocalFS) PutMetadata(ctx context.Context, runID string, md *runmeta.RunMetadata) error {
	path := s.metadataPath(runID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	data, err := marshalMetadata(md)
	if err != nil {
		return fmt.Errorf("store: marshal metadata for %s: %w", runID, err)
	}
	return writeAtomic(path, data)
}

func (s *LocalFS) GetMetadata(ctx context.Context, runID string) (*runmeta.RunMetadata, error) {
	data, err := readFile(s.metadataPath(runID))
	if err != nil {
		return nil, err
	}
	return unmarshalMetadata(data)
}

func (s *LocalFS) ListRuns(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}
