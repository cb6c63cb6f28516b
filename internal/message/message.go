// Package message defines Message, the unit of data carried between
// connectors, analysers/classifiers, and the artifact store.
package message

import (
	"encoding/json"
	"time"

	"github.com/waivern-compliance/orchestrator/internal/schema"
)

// Status is the execution outcome recorded on a Message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Origin records who produced the Message: the parent run, or a named
// child runbook.
const (
	OriginParent = "parent"
)

// ChildOrigin formats the origin tag for a child-runbook result artifact.
func ChildOrigin(childName string) string {
	return "child:" + childName
}

// Execution is the bookkeeping attached to every Message describing how it
// was produced.
type Execution struct {
	Status          Status  `json:"status"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Origin          string  `json:"origin"`
	Alias           string  `json:"alias,omitempty"`
}

// Extensions holds out-of-band metadata attached to a Message. Execution is
// the only extension the core defines; it is nested so that future
// extensions don't collide with it.
type Extensions struct {
	Execution Execution `json:"execution"`
}

// Message is the unit exchanged between connectors/analysers/classifiers
// and persisted by the artifact store.
type Message struct {
	ID         string          `json:"id"`
	Content    json.RawMessage `json:"content"`
	Schema     schema.Schema   `json:"schema"`
	RunID      string          `json:"run_id"`
	Source     string          `json:"source,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Context    map[string]any  `json:"context,omitempty"`
	Extensions Extensions      `json:"extensions"`
}

// IsSuccess projects Extensions.Execution.Status.
func (m *Message) IsSuccess() bool {
	return m.Extensions.Execution.Status == StatusSuccess
}

// ExecutionError projects Extensions.Execution.Error.
func (m *Message) ExecutionError() string {
	return m.Extensions.Execution.Error
}

// ExecutionDuration projects Extensions.Execution.DurationSeconds.
func (m *Message) ExecutionDuration() time.Duration {
	return time.Duration(m.Extensions.Execution.DurationSeconds * float64(time.Second))
}
