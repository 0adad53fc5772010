package graph

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/routinekit/pkg/schema"
)

func seqIDs(prefix string) IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func placed(id string, t schema.NodeType, col, row int) schema.Node {
	n := schema.NewNode(id, t)
	n.SetPosition(col, row)
	return n
}

func loose(id string, t schema.NodeType) schema.Node {
	return schema.NewNode(id, t)
}

func link(id, from, to string) schema.Link {
	return schema.Link{ID: id, FromID: from, ToID: to}
}

func routine(nodes []schema.Node, links ...schema.Link) *schema.Routine {
	if links == nil {
		links = []schema.Link{}
	}
	return &schema.Routine{ID: "r1", Complexity: 1, Nodes: nodes, NodeLinks: links}
}

// edges lists links as "from->to", sorted.
func edges(r *schema.Routine) []string {
	out := make([]string, 0, len(r.NodeLinks))
	for _, l := range r.NodeLinks {
		out = append(out, l.FromID+"->"+l.ToID)
	}
	sort.Strings(out)
	return out
}

func cellOf(t *testing.T, r *schema.Routine, id string) Cell {
	t.Helper()
	n := r.NodeByID(id)
	if n == nil {
		t.Fatalf("node %s not found", id)
	}
	c, row, ok := n.Position()
	if !ok {
		t.Fatalf("node %s is off the grid", id)
	}
	return Cell{Column: c, Row: row}
}

func assertLinkIntegrity(t *testing.T, r *schema.Routine) {
	t.Helper()
	for _, l := range r.NodeLinks {
		assert.NotNil(t, r.NodeByID(l.FromID), "link %s: missing from node %s", l.ID, l.FromID)
		assert.NotNil(t, r.NodeByID(l.ToID), "link %s: missing to node %s", l.ID, l.ToID)
	}
}

func assertNoSharedCells(t *testing.T, r *schema.Routine) {
	t.Helper()
	seen := map[Cell]string{}
	for i := range r.Nodes {
		c, row, ok := r.Nodes[i].Position()
		if !ok {
			continue
		}
		cell := Cell{Column: c, Row: row}
		if other, dup := seen[cell]; dup {
			t.Fatalf("nodes %s and %s share cell %+v", other, r.Nodes[i].ID, cell)
		}
		seen[cell] = r.Nodes[i].ID
	}
}
