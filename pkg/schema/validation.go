package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single validation problem with location context.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates all issues from the validation pipeline.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a GraphError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}

// StatusLevel is the overall health of a routine graph.
type StatusLevel string

const (
	StatusValid      StatusLevel = "Valid"
	StatusIncomplete StatusLevel = "Incomplete"
	StatusInvalid    StatusLevel = "Invalid"
)

func (l StatusLevel) rank() int {
	switch l {
	case StatusInvalid:
		return 2
	case StatusIncomplete:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of l and other.
func (l StatusLevel) Worse(other StatusLevel) StatusLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// CriticalCondition names a structural failure that was repaired by resetting state.
type CriticalCondition string

const (
	CriticalNone             CriticalCondition = ""
	CriticalPositionConflict CriticalCondition = "position_conflict"
	CriticalEmptyGraph       CriticalCondition = "empty_graph"
)

// Status is the result of structural graph checks. Findings are kept in the
// order they were detected; Level is the worst severity among them.
type Status struct {
	Level    StatusLevel       `json:"level"`
	Messages []string          `json:"messages,omitempty"`
	Critical CriticalCondition `json:"critical,omitempty"`
}

// NewStatus returns a Valid status with no findings.
func NewStatus() Status {
	return Status{Level: StatusValid}
}

// Add records a finding and raises the level if needed.
func (s *Status) Add(level StatusLevel, message string) {
	s.Level = s.Level.Worse(level)
	s.Messages = append(s.Messages, message)
}

// Runnable reports whether the graph may be run or published.
func (s Status) Runnable() bool {
	return s.Level == StatusValid
}
