package schema

// Routine is the serializable routine graph exchanged with the persistence layer.
// Graph operations never mutate a Routine in place; they return a modified copy.
type Routine struct {
	ID           string       `json:"id"`
	Complexity   int          `json:"complexity"`
	Nodes        []Node       `json:"nodes"`
	NodeLinks    []Link       `json:"nodeLinks"`
	Translations Translations `json:"translations,omitempty"`
}

// Clone returns a copy of the routine whose node positions and link set can be changed
// without affecting r. Node data, conditions and translations are shared: nothing in
// this module mutates them.
func (r *Routine) Clone() *Routine {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Nodes != nil {
		cp.Nodes = make([]Node, len(r.Nodes))
		for i := range r.Nodes {
			cp.Nodes[i] = r.Nodes[i].Clone()
		}
	}
	if r.NodeLinks != nil {
		cp.NodeLinks = make([]Link, len(r.NodeLinks))
		copy(cp.NodeLinks, r.NodeLinks)
	}
	return &cp
}

// NodeByID returns a pointer into r.Nodes for the node with the given ID, or nil.
func (r *Routine) NodeByID(id string) *Node {
	for i := range r.Nodes {
		if r.Nodes[i].ID == id {
			return &r.Nodes[i]
		}
	}
	return nil
}

// LinkByID returns a pointer into r.NodeLinks for the link with the given ID, or nil.
func (r *Routine) LinkByID(id string) *Link {
	for i := range r.NodeLinks {
		if r.NodeLinks[i].ID == id {
			return &r.NodeLinks[i]
		}
	}
	return nil
}

// NeedsHydration reports whether the routine is only a summary: it is complex enough
// to contain steps of its own but its node data has not been fetched.
func (r *Routine) NeedsHydration() bool {
	return r != nil && r.Complexity > 1 && len(r.Nodes) == 0
}

// NodeType is the variant tag of a Node.
type NodeType string

const (
	NodeTypeStart       NodeType = "Start"
	NodeTypeEnd         NodeType = "End"
	NodeTypeRoutineList NodeType = "RoutineList"
	NodeTypeDecision    NodeType = "Decision"
	NodeTypeLoop        NodeType = "Loop"
	NodeTypeRedirect    NodeType = "Redirect"
	NodeTypeCombine     NodeType = "Combine"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStart, NodeTypeEnd, NodeTypeRoutineList, NodeTypeDecision,
		NodeTypeLoop, NodeTypeRedirect, NodeTypeCombine:
		return true
	}
	return false
}

// Node is one step of a routine graph. A node is on the grid only when both
// ColumnIndex and RowIndex are set.
type Node struct {
	ID           string       `json:"id"`
	Type         NodeType     `json:"type"`
	ColumnIndex  *int         `json:"columnIndex"`
	RowIndex     *int         `json:"rowIndex"`
	Data         NodeData     `json:"data,omitempty"`
	Translations Translations `json:"translations,omitempty"`
}

// Position returns the node's grid cell and whether it is positioned.
func (n *Node) Position() (column, row int, ok bool) {
	if n.ColumnIndex == nil || n.RowIndex == nil {
		return 0, 0, false
	}
	return *n.ColumnIndex, *n.RowIndex, true
}

// Positioned reports whether the node is on the grid.
func (n *Node) Positioned() bool {
	_, _, ok := n.Position()
	return ok
}

// SetPosition places the node at the given cell.
func (n *Node) SetPosition(column, row int) {
	n.ColumnIndex = &column
	n.RowIndex = &row
}

// ClearPosition moves the node off the grid.
func (n *Node) ClearPosition() {
	n.ColumnIndex = nil
	n.RowIndex = nil
}

// Clone copies the node with its own position cells.
func (n Node) Clone() Node {
	if n.ColumnIndex != nil {
		c := *n.ColumnIndex
		n.ColumnIndex = &c
	}
	if n.RowIndex != nil {
		r := *n.RowIndex
		n.RowIndex = &r
	}
	return n
}

// Link is a directed edge between two nodes of the same routine.
type Link struct {
	ID     string      `json:"id"`
	FromID string      `json:"fromId"`
	ToID   string      `json:"toId"`
	Whens  []Condition `json:"whens,omitempty"`
}

// Condition guards a link at a decision point. Engine selects the expression
// language: "cel" (default), "expr" or "jq".
type Condition struct {
	ID           string       `json:"id,omitempty"`
	Engine       string       `json:"engine,omitempty"`
	Expression   string       `json:"expression"`
	Translations Translations `json:"translations,omitempty"`
}

// RoutineListItem is a subroutine reference inside a RoutineList node.
// Routine may be a partial summary (no nodes) until it is hydrated.
type RoutineListItem struct {
	ID           string       `json:"id"`
	Index        int          `json:"index"`
	IsOptional   bool         `json:"isOptional"`
	Routine      *Routine     `json:"routine,omitempty"`
	Translations Translations `json:"translations,omitempty"`
}

// Translation is the display text of an entity in one language.
type Translation struct {
	Language     string `json:"language"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Translations holds at most one Translation per language.
type Translations []Translation

// ByLanguage returns the translation for lang, or nil.
func (t Translations) ByLanguage(lang string) *Translation {
	for i := range t {
		if t[i].Language == lang {
			return &t[i]
		}
	}
	return nil
}

// Languages lists the languages present, in order.
func (t Translations) Languages() []string {
	out := make([]string, 0, len(t))
	for _, tr := range t {
		out = append(out, tr.Language)
	}
	return out
}
