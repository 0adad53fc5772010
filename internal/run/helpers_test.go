package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/routinekit/pkg/schema"
)

func en(title string) schema.Translations {
	return schema.Translations{{Language: "en", Title: title}}
}

func placed(id string, t schema.NodeType, col, row int) schema.Node {
	n := schema.NewNode(id, t)
	n.SetPosition(col, row)
	return n
}

func listNode(id string, col, row int, ordered bool, items ...schema.RoutineListItem) schema.Node {
	n := placed(id, schema.NodeTypeRoutineList, col, row)
	n.Translations = en(id)
	n.Data = schema.RoutineListData{IsOrdered: ordered, Items: items}
	return n
}

// item references a summary routine; complexity above 1 makes it need hydration.
func item(id string, index int, title string, complexity int) schema.RoutineListItem {
	return schema.RoutineListItem{
		ID:           id,
		Index:        index,
		Translations: en(title),
		Routine:      &schema.Routine{ID: "r-" + id, Complexity: complexity},
	}
}

func link(id, from, to string) schema.Link {
	return schema.Link{ID: id, FromID: from, ToID: to}
}

// branching is Start → A → {End, C → End2}. A is unordered with items titled
// "B" then "A"; C is ordered.
func branching() *schema.Routine {
	return &schema.Routine{
		ID:           "main",
		Complexity:   5,
		Translations: en("Main"),
		Nodes: []schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			listNode("A", 1, 0, false, item("b", 0, "B", 1), item("a", 1, "A", 1)),
			placed("e", schema.NodeTypeEnd, 2, 0),
			listNode("C", 2, 1, true, item("y", 1, "Y", 1), item("x", 0, "X", 1)),
			placed("e2", schema.NodeTypeEnd, 3, 0),
		},
		NodeLinks: []schema.Link{
			link("l1", "s", "A"), link("l2", "A", "e"), link("l3", "A", "C"), link("l4", "C", "e2"),
		},
	}
}

// single is Start → L → End with the given items.
func single(items ...schema.RoutineListItem) *schema.Routine {
	return &schema.Routine{
		ID:         "main",
		Complexity: 10,
		Nodes: []schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			listNode("L", 1, 0, true, items...),
			placed("e", schema.NodeTypeEnd, 2, 0),
		},
		NodeLinks: []schema.Link{link("l1", "s", "L"), link("l2", "L", "e")},
	}
}

// deep is the full graph fetched for a hydrated subroutine.
func deep(id string) *schema.Routine {
	return &schema.Routine{
		ID:         id,
		Complexity: 3,
		Nodes: []schema.Node{
			placed("ds", schema.NodeTypeStart, 0, 0),
			listNode("inner", 1, 0, true, item("i1", 0, "One", 1), item("i2", 1, "Two", 2)),
			placed("de", schema.NodeTypeEnd, 2, 0),
		},
		NodeLinks: []schema.Link{link("d1", "ds", "inner"), link("d2", "inner", "de")},
	}
}

func mustBuild(t *testing.T, r *schema.Routine) *RoutineListStep {
	t.Helper()
	root, err := NewBuilder(nil).Build(r)
	require.NoError(t, err)
	return root
}

func titles(steps []Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		switch v := s.(type) {
		case *SubroutineStep:
			out = append(out, v.Title)
		case *RoutineListStep:
			out = append(out, v.Title)
		case *DecisionStep:
			out = append(out, "decision:"+v.NodeID)
		}
	}
	return out
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var gErr *schema.GraphError
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, code, gErr.Code)
}

// leaves walks the tree with Next from its first terminal step.
func leaves(t *testing.T, root Step) []Path {
	t.Helper()
	p, ok := FirstLeaf(root, Path{})
	require.True(t, ok)
	out := []Path{p}
	for {
		next, ok := Next(root, p)
		if !ok {
			return out
		}
		out = append(out, next)
		p = next
	}
}
