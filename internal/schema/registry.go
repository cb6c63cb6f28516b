package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNotFound is returned when no schema file can be located for a key.
var ErrNotFound = errors.New("schema: not found")

// ErrVersionMismatch is returned when the version field inside the loaded
// JSON document disagrees with the requested version.
var ErrVersionMismatch = errors.New("schema: version mismatch")

// ErrInvalid is returned when the loaded document is not valid JSON Schema.
var ErrInvalid = errors.New("schema: invalid document")

type cacheEntry struct {
	body     json.RawMessage
	compiled *jsonschema.Schema
}

// Registry loads and caches schema bodies by (name, version) from a fixed
// set of search-path directories. Safe for concurrent use.
type Registry struct {
	searchPaths []string

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

// NewRegistry creates a Registry that searches the given directories, in
// order, for "<name>/<version>.json" files.
func NewRegistry(searchPaths ...string) *Registry {
	return &Registry{
		searchPaths: searchPaths,
		cache:       make(map[string]*cacheEntry),
	}
}

// Load returns the cached JSON body for (name, version), loading and
// validating it on first access. Repeated calls with the same key return
// the same in-memory value.
func (r *Registry) Load(name, version string) (json.RawMessage, error) {
	key := Schema{Name: name, Version: version}.Key()

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return entry.body, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock in case another goroutine won the race.
	if entry, ok := r.cache[key]; ok {
		return entry.body, nil
	}

	body, path, err := r.readFile(name, version)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	if v, ok := doc["version"]; ok {
		if vs, ok := v.(string); ok && vs != version {
			return nil, fmt.Errorf("%w: %s declares version %q, requested %q", ErrVersionMismatch, path, vs, version)
		}
	}

	compiled, err := compile(path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	r.cache[key] = &cacheEntry{body: body, compiled: compiled}
	return body, nil
}

// Compiled returns the compiled jsonschema.Schema for (name, version),
// loading it first if necessary. The compiled schema can validate message
// content against its declared schema.
func (r *Registry) Compiled(name, version string) (*jsonschema.Schema, error) {
	if _, err := r.Load(name, version); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[Schema{Name: name, Version: version}.Key()].compiled, nil
}

func (r *Registry) readFile(name, version string) (json.RawMessage, string, error) {
	for _, dir := range r.searchPaths {
		path := filepath.Join(dir, name, version+".json")
		data, err := os.ReadFile(path) //nolint:gosec // path built from registry-internal search dirs
		if err == nil {
			return data, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, path, fmt.Errorf("schema: reading %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("%w: %s/%s in %v", ErrNotFound, name, version, r.searchPaths)
}

func compile(path string, body []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "mem://" + path
	if err := c.AddResource(url, bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(url)
}
