package expressions

import "context"

// Engine evaluates the guard expression of a link condition.
// Three implementations: CEL (default), Expr and GoJQ.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Scope variables every condition may reference.
const (
	VarInputs  = "inputs"  // values supplied when the run started
	VarAnswers = "answers" // choices recorded at earlier decisions, keyed by node ID
	VarRun     = "run"     // run metadata: routine_id, run_id, progress
	VarNode    = "node"    // the decision node being evaluated
)

var scopeVars = []string{VarInputs, VarAnswers, VarRun, VarNode}
