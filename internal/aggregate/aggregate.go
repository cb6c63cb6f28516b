// Package aggregate builds the final compliance-findings report from an
// ExecutionState and the ExecutionPlan it ran against.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/waivern-compliance/orchestrator/internal/plan"
	"github.com/waivern-compliance/orchestrator/internal/state"
	"github.com/waivern-compliance/orchestrator/internal/store"
)

// FormatVersion is the fixed report schema version.
const FormatVersion = "2.0.0"

// RunStatus summarises a run's overall outcome.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunSection identifies the run and its overall outcome.
type RunSection struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at"`
	Duration float64   `json:"duration_seconds"`
	Status   RunStatus `json:"status"`
}

// RunbookSection carries the runbook's descriptive metadata.
type RunbookSection struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// Summary is the aggregate artifact count by outcome.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Output is one successful, output-flagged artifact's contribution to the
// report.
type Output struct {
	ArtifactID    string          `json:"artifact_id"`
	Name          string          `json:"name,omitempty"`
	Description   string          `json:"description,omitempty"`
	Contact       string          `json:"contact,omitempty"`
	DurationSec   float64         `json:"duration_seconds"`
	SchemaName    string          `json:"schema_name"`
	SchemaVersion string          `json:"schema_version"`
	Content       json.RawMessage `json:"content"`
}

// Error is one failed artifact's recorded error.
type Error struct {
	ArtifactID string `json:"artifact_id"`
	Error      string `json:"error"`
}

// Report is the complete, serialisable compliance-findings export.
type Report struct {
	Run           RunSection     `json:"run"`
	Runbook       RunbookSection `json:"runbook"`
	Summary       Summary        `json:"summary"`
	Outputs       []Output       `json:"outputs"`
	Errors        []Error        `json:"errors"`
	Skipped       []string       `json:"skipped"`
	FormatVersion string         `json:"format_version"`
}

// MarshalContent renders the report as the json.RawMessage content of a
// Message (used when a child-runbook result is folded into its parent).
func (r *Report) MarshalContent() (json.RawMessage, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// Build assembles a Report for runID from st and p, loading each successful
// output-flagged artifact's content from the store.
func Build(ctx context.Context, st store.Store, runID string, p *plan.ExecutionPlan, execState *state.ExecutionState) (*Report, error) {
	succeeded := len(execState.Completed)
	failed := len(execState.Failed)
	skipped := len(execState.Skipped)

	status := RunCompleted
	switch {
	case failed > 0:
		status = RunFailed
	case skipped > 0:
		status = RunPartial
	}

	report := &Report{
		Run: RunSection{
			ID:       runID,
			Started:  execState.StartedAt,
			Finished: execState.UpdatedAt,
			Duration: execState.UpdatedAt.Sub(execState.StartedAt).Seconds(),
			Status:   status,
		},
		Runbook: RunbookSection{
			Name:        p.Runbook.Name,
			Description: p.Runbook.Description,
			Contact:     p.Runbook.Contact,
		},
		Summary: Summary{
			Total:     succeeded + failed + skipped,
			Succeeded: succeeded,
			Failed:    failed,
			Skipped:   skipped,
		},
		FormatVersion: FormatVersion,
	}

	for _, id := range p.DAG.Artifacts() {
		def := p.Runbook.Artifacts[id]
		if _, ok := execState.Completed[id]; !ok || !def.Output {
			continue
		}
		msg, err := st.GetArtifact(ctx, runID, id)
		if err != nil {
			return nil, fmt.Errorf("aggregate: load output artifact %q: %w", id, err)
		}
		schemas := p.Schemas(id)
		report.Outputs = append(report.Outputs, Output{
			ArtifactID:    id,
			Name:          def.Name,
			Description:   def.Description,
			Contact:       def.Contact,
			DurationSec:   msg.ExecutionDuration().Seconds(),
			SchemaName:    schemas.OutputSchema.Name,
			SchemaVersion: schemas.OutputSchema.Version,
			Content:       msg.Content,
		})
	}

	for _, id := range p.DAG.Artifacts() {
		if _, ok := execState.Failed[id]; ok {
			report.Errors = append(report.Errors, Error{ArtifactID: id, Error: execState.Errors[id]})
		}
	}

	for _, id := range p.DAG.Artifacts() {
		if _, ok := execState.Skipped[id]; ok {
			report.Skipped = append(report.Skipped, id)
		}
	}
	sort.Strings(report.Skipped)

	return report, nil
}
