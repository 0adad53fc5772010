package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodeLinks[0].toId", ErrCodeValidation, "references non-existent node")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "nodeLinks[0].toId", r.Errors[0].Path)
	assert.Equal(t, ErrCodeValidation, r.Errors[0].Code)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_AddWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes[1]", ErrCodeValidation, "node has no translations")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")
	r1.AddWarning("/", ErrCodeValidation, "warn1")

	r2 := &ValidationResult{}
	r2.AddError("nodes[0]", ErrCodeNotFound, "err2")
	r2.AddWarning("nodes[1]", ErrCodeValidation, "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 2)
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("/", ErrCodeValidation, "just a warning")
	assert.Nil(t, r.ToError())

	r.AddError("/", ErrCodeValidation, "err1")
	r.AddError("/", ErrCodeValidation, "err2")

	err := r.ToError()
	require.NotNil(t, err)
	gErr, ok := err.(*GraphError)
	require.True(t, ok)
	assert.Contains(t, gErr.Message, "2 errors")
	assert.Equal(t, 2, gErr.Details["error_count"])
	assert.Equal(t, 1, gErr.Details["warning_count"])
}

func TestStatus_WorstLevelWins(t *testing.T) {
	s := NewStatus()
	assert.True(t, s.Runnable())

	s.Add(StatusIncomplete, "some nodes are not linked")
	assert.Equal(t, StatusIncomplete, s.Level)

	s.Add(StatusInvalid, "no start node")
	s.Add(StatusIncomplete, "again")
	assert.Equal(t, StatusInvalid, s.Level)
	assert.Equal(t, []string{"some nodes are not linked", "no start node", "again"}, s.Messages)
	assert.False(t, s.Runnable())
}

func TestGraphError_Format(t *testing.T) {
	err := NewErrorf(ErrCodeNotFound, "node %s not found", "n1").WithNode("n1")
	assert.Equal(t, "[NOT_FOUND] node n1: node n1 not found", err.Error())
	assert.False(t, err.IsRetryable())
	assert.True(t, NewError(ErrCodeStore, "db closed").IsRetryable())
}
