package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/routinekit/pkg/schema"
)

func TestBuild_UnorderedItemsAreAlphabetical(t *testing.T) {
	root := mustBuild(t, branching())

	require.Len(t, root.Steps, 2)
	a := root.Steps[0].(*RoutineListStep)
	assert.Equal(t, "A", a.NodeID)
	assert.False(t, a.IsOrdered)
	assert.Equal(t, []string{"A", "B", "decision:A"}, titles(a.Steps))
}

func TestBuild_OrderedItemsFollowIndex(t *testing.T) {
	root := mustBuild(t, branching())

	c := root.Steps[1].(*RoutineListStep)
	assert.Equal(t, "C", c.NodeID)
	assert.True(t, c.IsOrdered)
	assert.Equal(t, []string{"X", "Y"}, titles(c.Steps))
}

func TestBuild_TrailingDecisionForBranchingNode(t *testing.T) {
	root := mustBuild(t, branching())

	a := root.Steps[0].(*RoutineListStep)
	d, ok := a.Steps[len(a.Steps)-1].(*DecisionStep)
	require.True(t, ok)
	assert.Len(t, d.Links, 2)
	assert.Equal(t, map[string]schema.NodeType{
		"e": schema.NodeTypeEnd,
		"C": schema.NodeTypeRoutineList,
	}, d.Targets)
}

func TestBuild_RootWrapsMainRoutine(t *testing.T) {
	root := mustBuild(t, branching())

	assert.Equal(t, "main", root.RoutineID)
	assert.Equal(t, "Main", root.Title)
	assert.True(t, root.IsOrdered)
	assert.Equal(t, 5, Complexity(root))
}

func TestBuild_StartDecision(t *testing.T) {
	r := &schema.Routine{
		ID: "main",
		Nodes: []schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			listNode("P", 1, 0, true, item("p", 0, "P", 1)),
			listNode("Q", 1, 1, true, item("q", 0, "Q", 1)),
			placed("e", schema.NodeTypeEnd, 2, 0),
			placed("e2", schema.NodeTypeEnd, 2, 1),
		},
		NodeLinks: []schema.Link{
			link("l1", "s", "P"), link("l2", "s", "Q"), link("l3", "P", "e"), link("l4", "Q", "e2"),
		},
	}

	root := mustBuild(t, r)

	assert.Equal(t, []string{"decision:s", "P", "Q"}, titles(root.Steps))
}

func TestBuild_SkipsOffGraphLists(t *testing.T) {
	r := single(item("a", 0, "A", 1))
	loose := schema.NewNode("loose", schema.NodeTypeRoutineList)
	loose.Data = schema.RoutineListData{Items: []schema.RoutineListItem{item("z", 0, "Z", 1)}}
	r.Nodes = append(r.Nodes, loose)

	root := mustBuild(t, r)
	assert.Equal(t, []string{"L"}, titles(root.Steps))
}

func TestBuild_ExpandsLoadedSubroutines(t *testing.T) {
	sub := item("sub", 0, "Sub", 3)
	sub.Routine = deep("r-sub")
	root := mustBuild(t, single(sub, item("flat", 1, "Flat", 1)))

	l := root.Steps[0].(*RoutineListStep)
	nested, ok := l.Steps[0].(*RoutineListStep)
	require.True(t, ok)
	assert.Equal(t, "r-sub", nested.RoutineID)
	assert.Equal(t, "sub", nested.ItemID)
	assert.Equal(t, "Sub", nested.Title)
	assert.Equal(t, []string{"inner"}, titles(nested.Steps))

	_, ok = l.Steps[1].(*SubroutineStep)
	assert.True(t, ok)
}

func TestBuild_SummariesStayLeaves(t *testing.T) {
	root := mustBuild(t, single(item("big", 0, "Big", 4)))

	leaf := root.Steps[0].(*RoutineListStep).Steps[0].(*SubroutineStep)
	assert.True(t, leaf.NeedsHydration())
	assert.Equal(t, "r-big", leaf.RoutineID())
	assert.Equal(t, 4, Complexity(leaf))
}

func TestBuild_RefusesPositionConflicts(t *testing.T) {
	r := single(item("a", 0, "A", 1))
	r.Nodes = append(r.Nodes, placed("dup", schema.NodeTypeEnd, 2, 0))

	_, err := NewBuilder(nil).Build(r)
	assertCode(t, err, schema.ErrCodeValidation)
}

func TestBuild_NilRoutine(t *testing.T) {
	_, err := NewBuilder(nil).Build(nil)
	assertCode(t, err, schema.ErrCodeValidation)
}

func TestBuild_EmptyRoutineHasNoSteps(t *testing.T) {
	root := mustBuild(t, &schema.Routine{ID: "empty"})
	assert.Empty(t, root.Steps)
	assert.True(t, IsTerminal(root))
}

func TestBuild_PrefersRequestedLanguage(t *testing.T) {
	r := single(schema.RoutineListItem{
		ID: "a",
		Translations: schema.Translations{
			{Language: "en", Title: "Stretch"},
			{Language: "es", Title: "Estirar"},
		},
		Routine: &schema.Routine{ID: "r-a", Complexity: 1},
	})

	root, err := NewBuilder(NewLocalizer("es-CL")).Build(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"Estirar"}, titles(root.Steps[0].(*RoutineListStep).Steps))
}

func TestExpand_FlatRoutineStaysLeaf(t *testing.T) {
	leaf := &SubroutineStep{ItemID: "x", Title: "X", Routine: &schema.Routine{ID: "r-x", Complexity: 2}}
	full := &schema.Routine{
		ID:         "r-x",
		Complexity: 2,
		Nodes:      []schema.Node{placed("s", schema.NodeTypeStart, 0, 0), placed("e", schema.NodeTypeEnd, 1, 0)},
		NodeLinks:  []schema.Link{link("l", "s", "e")},
	}

	got, err := NewBuilder(nil).Expand(leaf, full, 2)
	require.NoError(t, err)
	sub, ok := got.(*SubroutineStep)
	require.True(t, ok)
	assert.Same(t, full, sub.Routine)
	assert.False(t, sub.NeedsHydration())
	assert.True(t, leaf.NeedsHydration(), "the original leaf is untouched")
}
