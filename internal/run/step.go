package run

import (
	"encoding/json"

	"github.com/rendis/routinekit/pkg/schema"
)

// StepKind names a Step variant on the wire.
type StepKind string

const (
	KindRoutineList StepKind = "routine_list"
	KindSubroutine  StepKind = "subroutine"
	KindDecision    StepKind = "decision"
)

// Step is one node of the run-time step tree. The set of variants is closed:
// *RoutineListStep, *SubroutineStep and *DecisionStep.
//
// Steps are never modified once they are part of a tree; updates build new
// ancestors with ReplaceAt.
type Step interface {
	Kind() StepKind
	sealed()
}

// RoutineListStep groups child steps. The root of every tree is a RoutineListStep
// for the main routine.
type RoutineListStep struct {
	NodeID      string `json:"nodeId,omitempty"`
	RoutineID   string `json:"routineId,omitempty"`
	ItemID      string `json:"itemId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsOrdered   bool   `json:"isOrdered"`
	Steps       []Step `json:"steps"`
}

// SubroutineStep is a leaf referencing one routine list item. Its routine may be a
// summary awaiting hydration.
type SubroutineStep struct {
	ItemID      string          `json:"itemId"`
	Index       int             `json:"index"`
	IsOptional  bool            `json:"isOptional"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Routine     *schema.Routine `json:"routine,omitempty"`
}

// DecisionStep offers the outgoing links of a node with more than one successor.
// Targets maps each link's target node ID to its node type.
type DecisionStep struct {
	NodeID  string                     `json:"nodeId"`
	Title   string                     `json:"title,omitempty"`
	Links   []schema.Link              `json:"links"`
	Targets map[string]schema.NodeType `json:"targets,omitempty"`
}

func (*RoutineListStep) Kind() StepKind { return KindRoutineList }
func (*SubroutineStep) Kind() StepKind  { return KindSubroutine }
func (*DecisionStep) Kind() StepKind    { return KindDecision }

func (*RoutineListStep) sealed() {}
func (*SubroutineStep) sealed()  {}
func (*DecisionStep) sealed()    {}

// NeedsHydration reports whether the subroutine must be fetched before it can be run.
func (s *SubroutineStep) NeedsHydration() bool {
	return s.Routine.NeedsHydration()
}

// RoutineID returns the referenced routine's ID, or "".
func (s *SubroutineStep) RoutineID() string {
	if s.Routine == nil {
		return ""
	}
	return s.Routine.ID
}

// IsTerminal reports whether the cursor may rest on s: any leaf, or a routine
// list with no children.
func IsTerminal(s Step) bool {
	rl, ok := s.(*RoutineListStep)
	return !ok || len(rl.Steps) == 0
}

// MarshalJSON tags the step with its kind.
func (s *RoutineListStep) MarshalJSON() ([]byte, error) {
	type alias RoutineListStep
	return json.Marshal(struct {
		Kind StepKind `json:"kind"`
		*alias
	}{KindRoutineList, (*alias)(s)})
}

// MarshalJSON tags the step with its kind.
func (s *SubroutineStep) MarshalJSON() ([]byte, error) {
	type alias SubroutineStep
	return json.Marshal(struct {
		Kind StepKind `json:"kind"`
		*alias
	}{KindSubroutine, (*alias)(s)})
}

// MarshalJSON tags the step with its kind.
func (s *DecisionStep) MarshalJSON() ([]byte, error) {
	type alias DecisionStep
	return json.Marshal(struct {
		Kind StepKind `json:"kind"`
		*alias
	}{KindDecision, (*alias)(s)})
}
