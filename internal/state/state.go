// Package state defines ExecutionState, the executor's mutable,
// per-run bookkeeping of artifact outcomes.
package state

import "time"

// ExecutionState tracks, for one run, which artifacts have completed,
// failed, or been skipped. completed/failed/skipped are always pairwise
// disjoint.
type ExecutionState struct {
	RunID     string               `json:"run_id"`
	Completed map[string]struct{}  `json:"-"`
	Failed    map[string]struct{}  `json:"-"`
	Skipped   map[string]struct{}  `json:"-"`
	Errors    map[string]string    `json:"artifact_errors"`
	StartedAt time.Time            `json:"started_at"`
	UpdatedAt time.Time            `json:"updated_at"`

	// CompletedList/FailedList/SkippedList are the JSON-serialized views of
	// the three sets above (Go maps don't round-trip through JSON in a
	// stable order); PrepareForSave/PopulateFromLists keep them in sync.
	CompletedList []string `json:"completed"`
	FailedList    []string `json:"failed"`
	SkippedList   []string `json:"skipped"`
}

// New creates an empty ExecutionState for runID.
func New(runID string) *ExecutionState {
	now := time.Now().UTC()
	return &ExecutionState{
		RunID:     runID,
		Completed: make(map[string]struct{}),
		Failed:    make(map[string]struct{}),
		Skipped:   make(map[string]struct{}),
		Errors:    make(map[string]string),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// MarkCompleted moves id into Completed.
func (s *ExecutionState) MarkCompleted(id string) {
	s.Completed[id] = struct{}{}
	s.UpdatedAt = time.Now().UTC()
}

// MarkFailed moves id into Failed with the given error string.
func (s *ExecutionState) MarkFailed(id, errMsg string) {
	s.Failed[id] = struct{}{}
	s.Errors[id] = errMsg
	s.UpdatedAt = time.Now().UTC()
}

// MarkSkipped moves id into Skipped with a human-readable reason.
func (s *ExecutionState) MarkSkipped(id, reason string) {
	s.Skipped[id] = struct{}{}
	s.Errors[id] = reason
	s.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether id has already reached completed/failed/skipped.
func (s *ExecutionState) IsTerminal(id string) bool {
	_, c := s.Completed[id]
	_, f := s.Failed[id]
	_, sk := s.Skipped[id]
	return c || f || sk
}

// IsFailedOrSkipped reports whether id is in Failed or Skipped — used by
// the scheduler to propagate failure to dependants.
func (s *ExecutionState) IsFailedOrSkipped(id string) bool {
	_, f := s.Failed[id]
	_, sk := s.Skipped[id]
	return f || sk
}

// PrepareForSave populates the *List fields from the set maps; call before
// marshalling to JSON.
func (s *ExecutionState) PrepareForSave() {
	s.CompletedList = keys(s.Completed)
	s.FailedList = keys(s.Failed)
	s.SkippedList = keys(s.Skipped)
}

// PopulateFromLists rebuilds the set maps from the *List fields; call after
// unmarshalling from JSON.
func (s *ExecutionState) PopulateFromLists() {
	s.Completed = toSet(s.CompletedList)
	s.Failed = toSet(s.FailedList)
	s.Skipped = toSet(s.SkippedList)
	if s.Errors == nil {
		s.Errors = make(map[string]string)
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, id := range list {
		m[id] = struct{}{}
	}
	return m
}
