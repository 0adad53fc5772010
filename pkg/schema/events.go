package schema

// Event types published on a session hub.
const (
	EventGraphUpdated       = "graph.updated"
	EventGraphStatusChanged = "graph.status_changed"
	EventGraphSeeded        = "graph.seeded"
	EventNodeDragging       = "graph.node_dragging"
	EventNodeDropped        = "graph.node_dropped"

	EventRunStarted             = "run.started"
	EventRunStepChanged         = "run.step_changed"
	EventRunHydrationRequested  = "run.hydration_requested"
	EventRunHydrationResolved   = "run.hydration_resolved"
	EventRunHydrationFailed     = "run.hydration_failed"
	EventRunHydrationSuperseded = "run.hydration_superseded"
	EventRunCompleted           = "run.completed"
)

// RunStatus is the lifecycle state of a run session.
type RunStatus string

const (
	RunStatusLoading           RunStatus = "loading"
	RunStatusReady             RunStatus = "ready"
	RunStatusAwaitingHydration RunStatus = "awaiting_hydration"
	RunStatusComplete          RunStatus = "complete"
)

// RetryPolicy configures retries of a collaborator call.
type RetryPolicy struct {
	Max      int    `json:"max" toml:"max"`
	Backoff  string `json:"backoff,omitempty" toml:"backoff"` // none | constant | linear | exponential
	Delay    string `json:"delay,omitempty" toml:"delay"`
	MaxDelay string `json:"max_delay,omitempty" toml:"max_delay"`
}
