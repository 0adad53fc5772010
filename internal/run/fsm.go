package run

import "github.com/rendis/routinekit/pkg/schema"

// TransitionHook is called after a run session changes status. A hook error is
// logged; it does not undo the transition.
type TransitionHook func(from, to schema.RunStatus) error

// ValidRunTransitions lists the statuses each run status may move to.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusLoading: {
		schema.RunStatusReady,
		schema.RunStatusAwaitingHydration,
		schema.RunStatusComplete,
	},
	schema.RunStatusReady: {
		schema.RunStatusReady,
		schema.RunStatusAwaitingHydration,
		schema.RunStatusComplete,
	},
	schema.RunStatusAwaitingHydration: {
		schema.RunStatusReady,
		schema.RunStatusAwaitingHydration,
	},
	schema.RunStatusComplete: {
		schema.RunStatusReady,
		schema.RunStatusAwaitingHydration,
	},
}

func isValidRunTransition(from, to schema.RunStatus) bool {
	allowed, ok := ValidRunTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

func runEventType(to schema.RunStatus) string {
	switch to {
	case schema.RunStatusComplete:
		return schema.EventRunCompleted
	default:
		return ""
	}
}
