// Package dag builds and walks the topological structure of a Runbook's
// artifact graph: cycle detection and a Kahn-style ready-set iterator.
package dag

import (
	"fmt"

	"github.com/waivern-compliance/orchestrator/internal/runbook"
)

// CycleError is returned by Validate when the artifact graph is not a DAG.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dag: cycle detected: %v", e.Cycle)
}

// DAG is the dependency structure built from a Runbook's artifacts.
type DAG struct {
	order        []string // declaration order, for deterministic ready-set iteration
	predecessors map[string][]string
	successors   map[string][]string
}

// New builds a DAG from rb.Artifacts without validating acyclicity; call
// Validate separately.
func New(rb *runbook.Runbook) *DAG {
	d := &DAG{
		order:        append([]string(nil), rb.ArtifactOrder...),
		predecessors: make(map[string][]string, len(rb.Artifacts)),
		successors:   make(map[string][]string, len(rb.Artifacts)),
	}
	for _, id := range d.order {
		def := rb.Artifacts[id]
		d.predecessors[id] = append([]string(nil), def.Inputs...)
	}
	for id, preds := range d.predecessors {
		for _, p := range preds {
			d.successors[p] = append(d.successors[p], id)
		}
	}
	return d
}

// Predecessors returns the direct upstream artifact ids of id (the
// runbook-declared `inputs`, in order).
func (d *DAG) Predecessors(id string) []string {
	return d.predecessors[id]
}

// Successors returns the direct downstream artifact ids of id.
func (d *DAG) Successors(id string) []string {
	return d.successors[id]
}

// Artifacts returns every artifact id in runbook declaration order.
func (d *DAG) Artifacts() []string {
	return d.order
}

// Validate detects cycles via DFS coloring and returns a CycleError naming
// one offending cycle if found.
func (d *DAG) Validate() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.order))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range d.predecessors[id] {
			switch color[next] {
			case white:
				if err := visit(next); err != nil {
					return err
				}
			case gray:
				cycle := append([]string(nil), stack...)
				cycle = append(cycle, next)
				return &CycleError{Cycle: cycle}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range d.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sorter yields the ready-set of artifact ids (all predecessors released)
// on each call to Ready, and is advanced by MarkDone.
type Sorter struct {
	dag        *DAG
	done       map[string]bool
	dispatched map[string]bool
}

// NewSorter returns a fresh Sorter over d.
func (d *DAG) NewSorter() *Sorter {
	return &Sorter{
		dag:        d,
		done:       make(map[string]bool, len(d.order)),
		dispatched: make(map[string]bool, len(d.order)),
	}
}

// Ready returns the ids, in runbook declaration order, whose predecessors
// are all done and which have not already been returned by a prior Ready
// call (until MarkDone releases them again would not re-surface them —
// each id is yielded by Ready exactly once over the Sorter's lifetime).
func (s *Sorter) Ready() []string {
	var ready []string
	for _, id := range s.dag.order {
		if s.done[id] || s.dispatched[id] {
			continue
		}
		if s.allDone(s.dag.predecessors[id]) {
			ready = append(ready, id)
			s.dispatched[id] = true
		}
	}
	return ready
}

// MarkDone records that id has finished (regardless of outcome), releasing
// its dependants for a future Ready call.
func (s *Sorter) MarkDone(id string) {
	s.done[id] = true
}

// Exhausted reports whether every artifact has been marked done.
func (s *Sorter) Exhausted() bool {
	return len(s.done) == len(s.dag.order)
}

func (s *Sorter) allDone(ids []string) bool {
	for _, id := range ids {
		if !s.done[id] {
			return false
		}
	}
	return true
}
