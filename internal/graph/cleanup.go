package graph

import (
	"sort"

	"github.com/rendis/routinekit/pkg/schema"
)

// CleanUp normalizes a routine: links to missing or off-graph nodes are dropped,
// rows in each column are renumbered 0..k-1 in their existing order, and every
// positioned non-End node without an outgoing link gets an End node one column to
// its right. Running CleanUp on its own output changes nothing.
func CleanUp(r *schema.Routine, newID IDFunc) *schema.Routine {
	if r == nil {
		return nil
	}
	out, _ := pruneLinks(r.Clone())
	if out.NodeLinks == nil {
		out.NodeLinks = []schema.Link{}
	}

	densifyRows(out)

	idx := newIndex(out)
	var leaves []string
	for _, n := range gridOrder(out) {
		if n.Type != schema.NodeTypeEnd && len(idx.out[n.ID]) == 0 {
			leaves = append(leaves, n.ID)
		}
	}

	for _, id := range leaves {
		col, _, _ := out.NodeByID(id).Position()
		end := schema.NewNode(newID(), schema.NodeTypeEnd)
		end.SetPosition(col+1, maxRow(out, col+1)+1)
		out.Nodes = append(out.Nodes, end)
		out.NodeLinks = append(out.NodeLinks, schema.Link{ID: newID(), FromID: id, ToID: end.ID})
	}
	return out
}

// densifyRows renumbers each column's rows consecutively from 0. Ties keep ID order.
func densifyRows(r *schema.Routine) {
	byColumn := make(map[int][]*schema.Node)
	for i := range r.Nodes {
		if c, _, ok := r.Nodes[i].Position(); ok {
			byColumn[c] = append(byColumn[c], &r.Nodes[i])
		}
	}
	for c, nodes := range byColumn {
		sort.SliceStable(nodes, func(a, b int) bool {
			ra, rb := *nodes[a].RowIndex, *nodes[b].RowIndex
			if ra != rb {
				return ra < rb
			}
			return nodes[a].ID < nodes[b].ID
		})
		for row, n := range nodes {
			n.SetPosition(c, row)
		}
	}
}

// Seed returns the starter graph for an empty routine: Start at (0,0) linked to
// End at (1,0). ID and complexity are kept from r when it is non-nil.
func Seed(r *schema.Routine, newID IDFunc) *schema.Routine {
	out := &schema.Routine{}
	if r != nil {
		out = r.Clone()
	}

	start := schema.NewNode(newID(), schema.NodeTypeStart)
	start.SetPosition(0, 0)
	end := schema.NewNode(newID(), schema.NodeTypeEnd)
	end.Data = schema.EndData{WasSuccessful: true}
	end.SetPosition(1, 0)

	out.Nodes = []schema.Node{start, end}
	out.NodeLinks = []schema.Link{{ID: newID(), FromID: start.ID, ToID: end.ID}}
	return out
}
