package expressions

import (
	"context"
	"errors"
	"strings"

	"github.com/rendis/routinekit/pkg/schema"
)

// DefaultEngine is used for conditions that do not name an engine.
const DefaultEngine = "cel"

// Registry dispatches link conditions to the engine they name.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry returns a registry holding the CEL, Expr and jq engines.
func NewRegistry() (*Registry, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	r := &Registry{engines: make(map[string]Engine, 3)}
	r.Register(celEngine)
	r.Register(NewExprEngine())
	r.Register(NewGoJQEngine())
	return r, nil
}

// Register adds or replaces an engine under its name.
func (r *Registry) Register(e Engine) {
	r.engines[e.Name()] = e
}

// Engine returns the engine for name; "" selects DefaultEngine.
func (r *Registry) Engine(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultEngine
	}
	e, ok := r.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExpression, "unknown condition engine %q", name)
	}
	return e, nil
}

// Evaluate runs one condition against data and returns its raw result.
func (r *Registry) Evaluate(ctx context.Context, cond schema.Condition, data map[string]any) (any, error) {
	e, err := r.Engine(cond.Engine)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, cond.Expression, data)
}

// Holds reports whether cond evaluates truthy against data.
func (r *Registry) Holds(ctx context.Context, cond schema.Condition, data map[string]any) (bool, error) {
	v, err := r.Evaluate(ctx, cond, data)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// Check compiles cond without running it, for validating routines before a run.
func (r *Registry) Check(ctx context.Context, cond schema.Condition) error {
	_, err := r.Evaluate(ctx, cond, nil)
	var gErr *schema.GraphError
	if err != nil && errors.As(err, &gErr) && strings.Contains(gErr.Message, "evaluation failed") {
		// runtime failures against an empty scope are expected
		return nil
	}
	return err
}

// Truthy applies the usual dynamic-language truth rules: nil, false, zero numbers,
// empty strings and empty collections are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case uint64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
