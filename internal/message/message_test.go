package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccessReflectsExecutionStatus(t *testing.T) {
	m := &Message{}
	assert.False(t, m.IsSuccess())

	m.Extensions.Execution.Status = StatusSuccess
	assert.True(t, m.IsSuccess())
}

func TestExecutionErrorProjection(t *testing.T) {
	m := &Message{}
	m.Extensions.Execution.Error = "connector boom"
	assert.Equal(t, "connector boom", m.ExecutionError())
}

func TestExecutionDurationProjection(t *testing.T) {
	m := &Message{}
	m.Extensions.Execution.DurationSeconds = 1.5
	assert.Equal(t, 1500*time.Millisecond, m.ExecutionDuration())
}

func TestChildOriginFormatting(t *testing.T) {
	assert.Equal(t, "child:gdpr-retention", ChildOrigin("gdpr-retention"))
}
