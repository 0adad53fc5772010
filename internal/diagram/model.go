package diagram

import "github.com/rendis/routinekit/pkg/schema"

// NodeKind classifies a diagram node by its routine node type.
type NodeKind string

const (
	NodeKindStart       NodeKind = "start"
	NodeKindEnd         NodeKind = "end"
	NodeKindRoutineList NodeKind = "routine_list"
	NodeKindDecision    NodeKind = "decision"
	NodeKindLoop        NodeKind = "loop"
	NodeKindRedirect    NodeKind = "redirect"
	NodeKindCombine     NodeKind = "combine"
	NodeKindItem        NodeKind = "item"
)

// Overlay states.
const (
	StateVisited  = "visited"
	StateCurrent  = "current"
	StateAwaiting = "awaiting"
	StateOffGraph = "off_graph"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title    string
	Nodes    []*Node
	Edges    []Edge
	Levels   [][]string // node IDs per non-empty layout column
	OffGraph []*Node
	Status   schema.Status
}

// Node represents a single routine node in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Column   int
	Row      int
	Status   *StatusOverlay
	Children []*SubGraph // routine list items
}

// SubGraph holds the items of a routine list node.
type SubGraph struct {
	Label   string
	Ordered bool
	Nodes   []*Node
	Edges   []Edge
}

// StatusOverlay carries run or layout state for a node.
type StatusOverlay struct {
	State  string
	Detail string
}

// Edge represents a link between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}
