package validation

import (
	"context"
	"errors"

	"github.com/rendis/routinekit/pkg/schema"
)

// mockChecker rejects the expressions it lists.
type mockChecker struct {
	bad map[string]bool
}

func (m *mockChecker) Check(_ context.Context, cond schema.Condition) error {
	if m.bad[cond.Expression] {
		return errors.New("cannot compile " + cond.Expression)
	}
	return nil
}

func newMockChecker(bad ...string) *mockChecker {
	m := &mockChecker{bad: make(map[string]bool)}
	for _, b := range bad {
		m.bad[b] = true
	}
	return m
}

func placed(id string, t schema.NodeType, col, row int) schema.Node {
	n := schema.NewNode(id, t)
	n.SetPosition(col, row)
	return n
}

func link(id, from, to string) schema.Link {
	return schema.Link{ID: id, FromID: from, ToID: to}
}

// validRoutine is Start → RoutineList → End with one loaded subroutine.
func validRoutine() *schema.Routine {
	list := placed("rl", schema.NodeTypeRoutineList, 1, 0)
	list.Data = schema.RoutineListData{
		IsOrdered: true,
		Items: []schema.RoutineListItem{
			{ID: "i1", Index: 0, Routine: &schema.Routine{ID: "sub-1", Complexity: 1},
				Translations: schema.Translations{{Language: "en", Title: "Stretch"}}},
			{ID: "i2", Index: 1, Routine: &schema.Routine{
				ID:         "sub-2",
				Complexity: 2,
				Nodes:      []schema.Node{placed("s", schema.NodeTypeStart, 0, 0), placed("e", schema.NodeTypeEnd, 1, 0)},
				NodeLinks:  []schema.Link{link("l", "s", "e")},
			}},
		},
	}
	return &schema.Routine{
		ID:           "main",
		Complexity:   3,
		Translations: schema.Translations{{Language: "en", Title: "Morning"}, {Language: "es", Title: "Mañana"}},
		Nodes: []schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			list,
			placed("e", schema.NodeTypeEnd, 2, 0),
		},
		NodeLinks: []schema.Link{
			link("l1", "s", "rl"),
			{ID: "l2", FromID: "rl", ToID: "e", Whens: []schema.Condition{{Engine: "cel", Expression: "true"}}},
		},
	}
}
