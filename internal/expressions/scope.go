package expressions

import (
	"encoding/json"
	"sync"

	"github.com/rendis/routinekit/pkg/schema"
)

// Scope accumulates the data conditions are evaluated against during a run.
//   - Inputs are frozen when the scope is created.
//   - Answers are append-only: once a decision is answered, the answer is fixed.
//   - Run metadata may be replaced as the run progresses.
type Scope struct {
	mu      sync.RWMutex
	inputs  map[string]any
	answers map[string]any
	run     map[string]any
}

// NewScope creates a scope with a private copy of inputs.
func NewScope(inputs map[string]any) *Scope {
	return &Scope{
		inputs:  deepCopyMap(inputs),
		answers: make(map[string]any),
		run:     make(map[string]any),
	}
}

// Answer records the answer given at a decision node.
func (s *Scope) Answer(nodeID string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.answers[nodeID]; exists {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"decision %q is already answered", nodeID).WithNode(nodeID)
	}
	s.answers[nodeID] = deepCopyAny(value)
	return nil
}

// AnswerJSON records a JSON-encoded answer.
func (s *Scope) AnswerJSON(nodeID string, raw json.RawMessage) error {
	var v any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"cannot parse answer for %q: %s", nodeID, err.Error()).WithNode(nodeID).WithCause(err)
		}
	}
	return s.Answer(nodeID, v)
}

// SetRun replaces one run metadata field.
func (s *Scope) SetRun(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run[key] = deepCopyAny(value)
}

// Data snapshots the scope for evaluating a condition at node.
func (s *Scope) Data(node map[string]any) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		VarInputs:  s.inputs,
		VarAnswers: deepCopyMap(s.answers),
		VarRun:     deepCopyMap(s.run),
		VarNode:    deepCopyMap(node),
	}
}

// Answers returns a copy of the recorded answers.
func (s *Scope) Answers() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopyMap(s.answers)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		return v
	}
}
