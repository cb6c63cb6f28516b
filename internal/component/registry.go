// Package component implements the Component Registry: registration and
// lookup of connector/analyser/classifier factories by type name.
package component

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	pkgcomponent "github.com/waivern-compliance/orchestrator/pkg/component"
)

// ErrNotFound is returned when a factory type name is unregistered.
var ErrNotFound = errors.New("component: factory not found")

// Registry holds the three factory flavours, keyed by type name.
type Registry struct {
	mu          sync.RWMutex
	connectors  map[string]pkgcomponent.ConnectorFactory
	analysers   map[string]pkgcomponent.AnalyserFactory
	classifiers map[string]pkgcomponent.ClassifierFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors:  make(map[string]pkgcomponent.ConnectorFactory),
		analysers:   make(map[string]pkgcomponent.AnalyserFactory),
		classifiers: make(map[string]pkgcomponent.ClassifierFactory),
	}
}

// RegisterConnector registers a connector factory under typeName.
func (r *Registry) RegisterConnector(typeName string, f pkgcomponent.ConnectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[typeName] = f
}

// RegisterAnalyser registers an analyser factory under typeName.
func (r *Registry) RegisterAnalyser(typeName string, f pkgcomponent.AnalyserFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analysers[typeName] = f
}

// RegisterClassifier registers a classifier factory under typeName.
func (r *Registry) RegisterClassifier(typeName string, f pkgcomponent.ClassifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifiers[typeName] = f
}

// Connector looks up a connector factory by type name.
func (r *Registry) Connector(typeName string) (pkgcomponent.ConnectorFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.connectors[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: connector %q", ErrNotFound, typeName)
	}
	return f, nil
}

// Analyser looks up an analyser factory by type name.
func (r *Registry) Analyser(typeName string) (pkgcomponent.AnalyserFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.analysers[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: analyser %q", ErrNotFound, typeName)
	}
	return f, nil
}

// Classifier looks up a classifier factory by type name.
func (r *Registry) Classifier(typeName string) (pkgcomponent.ClassifierFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.classifiers[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: classifier %q", ErrNotFound, typeName)
	}
	return f, nil
}

// ListConnectors returns registered connector type names, sorted.
func (r *Registry) ListConnectors() []string { return sortedKeysC(r.connectors, &r.mu) }

// ListAnalysers returns registered analyser type names, sorted.
func (r *Registry) ListAnalysers() []string { return sortedKeysA(r.analysers, &r.mu) }

// ListClassifiers returns registered classifier type names, sorted.
func (r *Registry) ListClassifiers() []string { return sortedKeysCl(r.classifiers, &r.mu) }

func sortedKeysC(m map[string]pkgcomponent.ConnectorFactory, mu *sync.RWMutex) []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysA(m map[string]pkgcomponent.AnalyserFactory, mu *sync.RWMutex) []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysCl(m map[string]pkgcomponent.ClassifierFactory, mu *sync.RWMutex) []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
