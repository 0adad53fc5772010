package validation

import (
	"context"

	"github.com/rendis/routinekit/pkg/schema"
)

// RoutineValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (ids, references, payloads, translations, conditions)
// 3. DAG (cycles, reachability)
type RoutineValidator struct {
	jsonSchema *JSONSchemaValidator
	conditions ConditionChecker
}

// NewRoutineValidator creates a RoutineValidator. checker may be nil to skip
// condition compilation.
func NewRoutineValidator(checker ConditionChecker) (*RoutineValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &RoutineValidator{jsonSchema: jsv, conditions: checker}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: the semantic and DAG stages are skipped.
func (rv *RoutineValidator) Validate(ctx context.Context, r *schema.Routine) *schema.ValidationResult {
	if r == nil {
		res := &schema.ValidationResult{}
		res.AddError("/", schema.ErrCodeValidation, "routine is nil")
		return res
	}

	result := structural(rv.jsonSchema.ValidateRoutine(r))
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(ctx, r, rv.conditions))
	if result.Valid() {
		result.Merge(validateDAG(r))
	}
	return result
}

// ValidateRoutine satisfies the Validator interface.
func (rv *RoutineValidator) ValidateRoutine(ctx context.Context, r *schema.Routine) error {
	return rv.Validate(ctx, r).ToError()
}

// ValidateDocument checks a raw JSON document against the routine schema only.
// Decode it and call Validate for the remaining stages.
func (rv *RoutineValidator) ValidateDocument(_ context.Context, raw []byte) error {
	return rv.jsonSchema.ValidateDocument(raw)
}

// ValidateInput delegates to the underlying JSONSchemaValidator.
func (rv *RoutineValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	return rv.jsonSchema.ValidateInput(input, inputSchema)
}

// structural converts the JSON Schema stage's error into a ValidationResult.
func structural(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	gErr, ok := err.(*schema.GraphError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := gErr.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, gErr.Message)
	return result
}
