package graph

import (
	"sort"

	"github.com/rendis/routinekit/pkg/schema"
)

// Cell is a grid position.
type Cell struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// index is the adjacency view of a routine's link set.
type index struct {
	out map[string][]string // node ID → target node IDs
	in  map[string][]string // node ID → source node IDs
}

func newIndex(r *schema.Routine) *index {
	idx := &index{
		out: make(map[string][]string, len(r.Nodes)),
		in:  make(map[string][]string, len(r.Nodes)),
	}
	for _, l := range r.NodeLinks {
		idx.out[l.FromID] = append(idx.out[l.FromID], l.ToID)
		idx.in[l.ToID] = append(idx.in[l.ToID], l.FromID)
	}
	return idx
}

// maxColumn returns the highest occupied column, or -1 for an empty grid.
func maxColumn(r *schema.Routine) int {
	maxCol := -1
	for i := range r.Nodes {
		if c, _, ok := r.Nodes[i].Position(); ok && c > maxCol {
			maxCol = c
		}
	}
	return maxCol
}

// maxRow returns the highest occupied row in column, or -1 if the column is empty.
func maxRow(r *schema.Routine, column int) int {
	top := -1
	for i := range r.Nodes {
		if c, row, ok := r.Nodes[i].Position(); ok && c == column && row > top {
			top = row
		}
	}
	return top
}

// occupant returns the node placed at cell, or nil.
func occupant(r *schema.Routine, cell Cell) *schema.Node {
	for i := range r.Nodes {
		if c, row, ok := r.Nodes[i].Position(); ok && c == cell.Column && row == cell.Row {
			return &r.Nodes[i]
		}
	}
	return nil
}

// columnEmpty reports whether no node sits in column.
func columnEmpty(r *schema.Routine, column int) bool {
	return maxRow(r, column) < 0
}

// shiftColumns moves every positioned node at or after column one column right,
// except the node named skip.
func shiftColumns(r *schema.Routine, column int, skip string) {
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if n.ID == skip {
			continue
		}
		if c, row, ok := n.Position(); ok && c >= column {
			n.SetPosition(c+1, row)
		}
	}
}

// shiftRows moves every node in column at or below row down by one, except skip.
func shiftRows(r *schema.Routine, column, row int, skip string) {
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if n.ID == skip {
			continue
		}
		if c, rw, ok := n.Position(); ok && c == column && rw >= row {
			n.SetPosition(c, rw+1)
		}
	}
}

// compactColumn closes the gap left by an empty column.
func compactColumn(r *schema.Routine, column int) {
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if c, row, ok := n.Position(); ok && c > column {
			n.SetPosition(c-1, row)
		}
	}
}

// gridOrder returns the positioned nodes sorted by (column, row).
func gridOrder(r *schema.Routine) []*schema.Node {
	nodes := make([]*schema.Node, 0, len(r.Nodes))
	for i := range r.Nodes {
		if r.Nodes[i].Positioned() {
			nodes = append(nodes, &r.Nodes[i])
		}
	}
	sort.SliceStable(nodes, func(a, b int) bool {
		ca, ra, _ := nodes[a].Position()
		cb, rb, _ := nodes[b].Position()
		if ca != cb {
			return ca < cb
		}
		return ra < rb
	})
	return nodes
}

func hasLink(links []schema.Link, from, to string) bool {
	for _, l := range links {
		if l.FromID == from && l.ToID == to {
			return true
		}
	}
	return false
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
