package validation

import (
	"context"

	"github.com/rendis/routinekit/pkg/schema"
)

// Validator checks serialized routines before they reach the graph editor or a run.
// Uses JSON Schema Draft 2020-12 for the structural stage.
type Validator interface {
	ValidateRoutine(ctx context.Context, r *schema.Routine) error
	ValidateDocument(ctx context.Context, raw []byte) error
	ValidateInput(input map[string]any, inputSchema []byte) error
}

// ConditionChecker compiles a link or loop condition without evaluating it.
// *expressions.Registry satisfies it.
type ConditionChecker interface {
	Check(ctx context.Context, cond schema.Condition) error
}
