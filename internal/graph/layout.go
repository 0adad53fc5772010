package graph

import (
	"fmt"
	"sort"

	"github.com/rendis/routinekit/pkg/schema"
)

// Status messages reported by ComputeLayout.
const (
	MsgPositionConflict = "Ran into error determining node positions."
	MsgEmptyGraph       = "No node or link data found."
	MsgStartCount       = "Routine must have exactly one start node."
	MsgNoStart          = "Error determining start node."
	MsgNotConnected     = "Routine is not fully connected."
	MsgUnterminated     = "Not all paths end with an end node."
	msgOffGraph         = "Routine is not fully connected: %d node(s) are not linked."
)

// Layout is the grid arrangement of a routine graph.
//
// Columns, OffGraph and NodesByID point into Routine.Nodes and must be treated as
// read-only. When Changed is true, Routine is a corrected copy of the input that the
// caller must persist.
type Layout struct {
	Routine   *schema.Routine
	Changed   bool
	Columns   [][]*schema.Node
	OffGraph  []*schema.Node
	NodesByID map[string]*schema.Node
	Status    schema.Status
}

// ComputeLayout arranges the positioned nodes of r into columns sorted by row,
// collects off-graph nodes and runs the structural checks. It never mutates r.
//
// Colliding positions reset every node off the grid and drop all links. Links that
// touch an off-graph or missing node are pruned.
func ComputeLayout(r *schema.Routine) *Layout {
	if r == nil || len(r.Nodes) == 0 {
		status := schema.NewStatus()
		status.Add(schema.StatusInvalid, MsgEmptyGraph)
		status.Critical = schema.CriticalEmptyGraph
		return &Layout{
			Routine:   r,
			Columns:   [][]*schema.Node{{}},
			NodesByID: map[string]*schema.Node{},
			Status:    status,
		}
	}

	if hasPositionConflict(r.Nodes) {
		reset := r.Clone()
		for i := range reset.Nodes {
			reset.Nodes[i].ClearPosition()
		}
		reset.NodeLinks = []schema.Link{}

		status := schema.NewStatus()
		status.Add(schema.StatusInvalid, MsgPositionConflict)
		status.Critical = schema.CriticalPositionConflict
		return arrange(reset, true, status)
	}

	working, pruned := pruneLinks(r)
	return arrange(working, pruned, checkStructure(working))
}

// hasPositionConflict reports whether two positioned nodes share a cell or a
// node sits outside the grid.
func hasPositionConflict(nodes []schema.Node) bool {
	seen := make(map[Cell]bool, len(nodes))
	for i := range nodes {
		c, row, ok := nodes[i].Position()
		if !ok {
			continue
		}
		if c < 0 || row < 0 {
			return true
		}
		cell := Cell{Column: c, Row: row}
		if seen[cell] {
			return true
		}
		seen[cell] = true
	}
	return false
}

// pruneLinks drops links whose endpoints are missing or off the grid.
// Returns r itself when nothing was removed.
func pruneLinks(r *schema.Routine) (*schema.Routine, bool) {
	placed := make(map[string]bool, len(r.Nodes))
	for i := range r.Nodes {
		placed[r.Nodes[i].ID] = r.Nodes[i].Positioned()
	}

	keep := make([]schema.Link, 0, len(r.NodeLinks))
	for _, l := range r.NodeLinks {
		if placed[l.FromID] && placed[l.ToID] {
			keep = append(keep, l)
		}
	}
	if len(keep) == len(r.NodeLinks) {
		return r, false
	}

	out := r.Clone()
	out.NodeLinks = keep
	return out, true
}

// checkStructure runs the non-critical checks in reporting order.
func checkStructure(r *schema.Routine) schema.Status {
	status := schema.NewStatus()

	starts := 0
	var onGraph, offGraph []*schema.Node
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if n.Type == schema.NodeTypeStart {
			starts++
		}
		if n.Positioned() {
			onGraph = append(onGraph, n)
		} else {
			offGraph = append(offGraph, n)
		}
	}

	if starts != 1 {
		status.Add(schema.StatusInvalid, MsgStartCount)
	}

	idx := newIndex(r)

	// Connectivity needs at least two positioned nodes.
	if len(onGraph) > 1 {
		var sources []*schema.Node
		for _, n := range onGraph {
			if len(idx.in[n.ID]) == 0 {
				sources = append(sources, n)
			}
		}
		switch {
		case len(sources) == 0:
			status.Add(schema.StatusInvalid, MsgNoStart)
		case len(sources) > 1:
			status.Add(schema.StatusInvalid, MsgNotConnected)
		case sources[0].Type != schema.NodeTypeStart:
			status.Add(schema.StatusInvalid, MsgNoStart)
		}
	}

	// A lone positioned node beside unlinked ones is a graph under construction.
	if len(onGraph) > 1 || len(offGraph) == 0 {
		for _, n := range onGraph {
			if len(idx.out[n.ID]) == 0 && n.Type != schema.NodeTypeEnd {
				status.Add(schema.StatusInvalid, MsgUnterminated)
				break
			}
		}
	}

	if len(offGraph) > 0 {
		status.Add(schema.StatusIncomplete, fmt.Sprintf(msgOffGraph, len(offGraph)))
	}

	return status
}

// arrange builds the column grid. One trailing empty column is always present
// so callers have a drop target past the last column.
func arrange(r *schema.Routine, changed bool, status schema.Status) *Layout {
	l := &Layout{
		Routine:   r,
		Changed:   changed,
		NodesByID: make(map[string]*schema.Node, len(r.Nodes)),
		Status:    status,
	}

	maxCol := -1
	for i := range r.Nodes {
		n := &r.Nodes[i]
		l.NodesByID[n.ID] = n
		c, _, ok := n.Position()
		if !ok {
			l.OffGraph = append(l.OffGraph, n)
			continue
		}
		if c > maxCol {
			maxCol = c
		}
	}

	l.Columns = make([][]*schema.Node, maxCol+2)
	for i := range l.Columns {
		l.Columns[i] = []*schema.Node{}
	}
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if c, _, ok := n.Position(); ok {
			l.Columns[c] = append(l.Columns[c], n)
		}
	}
	for _, col := range l.Columns {
		sort.SliceStable(col, func(a, b int) bool {
			return *col[a].RowIndex < *col[b].RowIndex
		})
	}

	return l
}
