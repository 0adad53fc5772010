package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/routinekit/pkg/schema"
)

// hub builds A,B → X → C,D with the given sources and targets around X.
func hub(froms, tos []string) *schema.Routine {
	nodes := []schema.Node{placed("X", schema.NodeTypeRoutineList, 1, 0)}
	var links []schema.Link
	for i, f := range froms {
		nodes = append(nodes, placed(f, schema.NodeTypeRoutineList, 0, i))
		links = append(links, link("in-"+f, f, "X"))
	}
	for i, to := range tos {
		nodes = append(nodes, placed(to, schema.NodeTypeEnd, 2, i))
		links = append(links, link("out-"+to, "X", to))
	}
	return routine(nodes, links...)
}

func TestRemoveNode_FanOut(t *testing.T) {
	r := hub([]string{"A"}, []string{"B", "C", "D"})

	out, err := RemoveNode(r, "X", seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A->B", "A->C", "A->D"}, edges(out))
	assert.Nil(t, out.NodeByID("X"))
	assertLinkIntegrity(t, out)

	// input unchanged
	assert.NotNil(t, r.NodeByID("X"))
	assert.Len(t, r.NodeLinks, 4)
}

func TestRemoveNode_FanIn(t *testing.T) {
	out, err := RemoveNode(hub([]string{"A", "B"}, []string{"C"}), "X", seqIDs("L"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A->C", "B->C"}, edges(out))
}

func TestRemoveNode_AmbiguousJunctionLeftOpen(t *testing.T) {
	out, err := RemoveNode(hub([]string{"A", "B"}, []string{"C", "D"}), "X", seqIDs("L"))
	require.NoError(t, err)
	assert.Empty(t, out.NodeLinks)
	assert.Len(t, out.Nodes, 4)
}

func TestRemoveNode_NoDuplicateOrSelfLinks(t *testing.T) {
	r := hub([]string{"A"}, []string{"B"})
	r.NodeLinks = append(r.NodeLinks, link("direct", "A", "B"), link("self", "X", "X"))

	out, err := RemoveNode(r, "X", seqIDs("L"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A->B"}, edges(out))
	assert.Equal(t, "direct", out.NodeLinks[0].ID)
}

func TestRemoveNode_UsesFreshIDs(t *testing.T) {
	out, err := RemoveNode(hub([]string{"A"}, []string{"B", "C"}), "X", seqIDs("L"))
	require.NoError(t, err)
	var ids []string
	for _, l := range out.NodeLinks {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"L1", "L2"}, ids)
}

func TestRemoveNode_NotFound(t *testing.T) {
	_, err := RemoveNode(hub(nil, nil), "missing", seqIDs("L"))
	require.Error(t, err)

	var gErr *schema.GraphError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, schema.ErrCodeNotFound, gErr.Code)
	assert.Equal(t, "missing", gErr.NodeID)
}

func TestUnlinkNode_KeepsNodeOffGraph(t *testing.T) {
	out, err := UnlinkNode(hub([]string{"A"}, []string{"B", "C"}), "X", seqIDs("L"))
	require.NoError(t, err)

	x := out.NodeByID("X")
	require.NotNil(t, x)
	assert.False(t, x.Positioned())
	assert.Equal(t, []string{"A->B", "A->C"}, edges(out))

	l := ComputeLayout(out)
	assert.Len(t, l.OffGraph, 1)
	assert.Contains(t, l.Status.Messages, "Routine is not fully connected: 1 node(s) are not linked.")
}

func startEnd() *schema.Routine {
	return routine(
		[]schema.Node{placed("s", schema.NodeTypeStart, 0, 0), placed("e", schema.NodeTypeEnd, 1, 0)},
		link("l1", "s", "e"),
	)
}

func TestInsertNodeOnLink(t *testing.T) {
	out, err := InsertNodeOnLink(startEnd(), "l1", schema.NewNode("rl", schema.NodeTypeRoutineList), seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "rl"))
	assert.Equal(t, Cell{Column: 2, Row: 0}, cellOf(t, out, "e"))
	assert.Equal(t, Cell{Column: 0, Row: 0}, cellOf(t, out, "s"))
	assert.Equal(t, []string{"rl->e", "s->rl"}, edges(out))
	assert.Nil(t, out.LinkByID("l1"))
	assert.IsType(t, schema.RoutineListData{}, out.NodeByID("rl").Data)
	assertLinkIntegrity(t, out)

	assert.Equal(t, schema.StatusValid, ComputeLayout(out).Status.Level)
}

func TestInsertNodeOnLink_AssignsIDAndRejectsDuplicates(t *testing.T) {
	out, err := InsertNodeOnLink(startEnd(), "l1", schema.Node{Type: schema.NodeTypeDecision}, seqIDs("N"))
	require.NoError(t, err)
	assert.NotNil(t, out.NodeByID("N1"))

	_, err = InsertNodeOnLink(startEnd(), "l1", schema.NewNode("e", schema.NodeTypeDecision), seqIDs("N"))
	require.Error(t, err)

	_, err = InsertNodeOnLink(startEnd(), "nope", schema.NewNode("x", schema.NodeTypeDecision), seqIDs("N"))
	var gErr *schema.GraphError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, schema.ErrCodeNotFound, gErr.Code)
}

func TestInsertBranch(t *testing.T) {
	out, err := InsertBranch(startEnd(), "l1",
		schema.NewNode("rl", schema.NodeTypeRoutineList), schema.NewNode("e2", schema.NodeTypeEnd), seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 1, Row: 1}, cellOf(t, out, "rl"))
	assert.Equal(t, Cell{Column: 2, Row: 1}, cellOf(t, out, "e2"))
	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "e"))
	assert.NotNil(t, out.LinkByID("l1"))

	idx := newIndex(out)
	assert.Empty(t, idx.out["e2"])
	assert.Equal(t, []string{"e2"}, idx.out["rl"])
	assert.Equal(t, []string{"s"}, idx.in["rl"])
	assertLinkIntegrity(t, out)
	assertNoSharedCells(t, out)

	assert.Equal(t, schema.StatusValid, ComputeLayout(out).Status.Level)
}

func TestInsertBranch_EndMovesToNextFreeRow(t *testing.T) {
	r := routine(
		[]schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			placed("a", schema.NodeTypeRoutineList, 1, 0),
			placed("b", schema.NodeTypeRoutineList, 1, 1),
			placed("e1", schema.NodeTypeEnd, 2, 0),
			placed("e2", schema.NodeTypeEnd, 2, 2),
		},
		link("l1", "s", "a"), link("l2", "s", "b"), link("l3", "a", "e1"), link("l4", "b", "e2"),
	)

	out, err := InsertBranch(r, "l1", schema.NewNode("c", schema.NodeTypeDecision), schema.Node{}, seqIDs("N"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 1, Row: 2}, cellOf(t, out, "c"))
	end := out.NodeByID("N1")
	require.NotNil(t, end)
	assert.Equal(t, schema.NodeTypeEnd, end.Type)
	assert.Equal(t, Cell{Column: 2, Row: 3}, cellOf(t, out, "N1"))
	assertNoSharedCells(t, out)
}

func TestInsertBranch_RejectsNonEndTerminator(t *testing.T) {
	_, err := InsertBranch(startEnd(), "l1",
		schema.NewNode("rl", schema.NodeTypeRoutineList), schema.NewNode("x", schema.NodeTypeDecision), seqIDs("L"))
	require.Error(t, err)
}

func chain(ids ...string) *schema.Routine {
	var nodes []schema.Node
	var links []schema.Link
	for i, id := range ids {
		t := schema.NodeTypeRoutineList
		switch i {
		case 0:
			t = schema.NodeTypeStart
		case len(ids) - 1:
			t = schema.NodeTypeEnd
		}
		nodes = append(nodes, placed(id, t, i, 0))
		if i > 0 {
			links = append(links, link("l"+id, ids[i-1], id))
		}
	}
	return routine(nodes, links...)
}

func TestDropNode_NilTargetUnlinks(t *testing.T) {
	out, err := DropNode(chain("s", "a", "e"), "a", nil, seqIDs("L"))
	require.NoError(t, err)
	assert.False(t, out.NodeByID("a").Positioned())
	assert.Equal(t, []string{"s->e"}, edges(out))
}

func TestDropNode_ColumnZeroOpensColumnOne(t *testing.T) {
	out, err := DropNode(chain("s", "a", "b", "e"), "b", &Cell{Column: 0, Row: 0}, seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 0, Row: 0}, cellOf(t, out, "s"))
	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "b"))
	assert.Equal(t, Cell{Column: 2, Row: 0}, cellOf(t, out, "a"))
	assert.Equal(t, Cell{Column: 3, Row: 0}, cellOf(t, out, "e"))
	assertNoSharedCells(t, out)
}

func column1(rows ...string) *schema.Routine {
	nodes := []schema.Node{placed("s", schema.NodeTypeStart, 0, 0)}
	for i, id := range rows {
		if id == "" {
			continue
		}
		nodes = append(nodes, placed(id, schema.NodeTypeRoutineList, 1, i))
	}
	return routine(nodes)
}

func TestDropNode_SameColumnShiftsDown(t *testing.T) {
	out, err := DropNode(column1("", "a", "b"), "b", &Cell{Column: 1, Row: 0}, seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "b"))
	assert.Equal(t, Cell{Column: 1, Row: 2}, cellOf(t, out, "a"))
}

func TestDropNode_SameColumnSwapsWithNearestAbove(t *testing.T) {
	out, err := DropNode(column1("a", "b", "c"), "c", &Cell{Column: 1, Row: 1}, seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "a"))
	assert.Equal(t, Cell{Column: 1, Row: 1}, cellOf(t, out, "c"))
	assert.Equal(t, Cell{Column: 1, Row: 2}, cellOf(t, out, "b"))
	assertNoSharedCells(t, out)
}

func TestDropNode_OwnCellIsNoOp(t *testing.T) {
	r := column1("a", "b")
	for _, id := range []string{"s", "a", "b"} {
		t.Run(id, func(t *testing.T) {
			origin := cellOf(t, r, id)
			out, err := DropNode(r, id, &origin, seqIDs("L"))
			require.NoError(t, err)

			assert.Equal(t, r, out)
			assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "a"))
			assert.Equal(t, Cell{Column: 1, Row: 1}, cellOf(t, out, "b"))
		})
	}
}

func TestDropNode_OtherColumnMakesRoom(t *testing.T) {
	r := routine([]schema.Node{
		placed("s", schema.NodeTypeStart, 0, 0),
		placed("a", schema.NodeTypeRoutineList, 1, 0),
		placed("b", schema.NodeTypeRoutineList, 1, 1),
		placed("e", schema.NodeTypeEnd, 2, 0),
	})

	out, err := DropNode(r, "b", &Cell{Column: 2, Row: 0}, seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 2, Row: 0}, cellOf(t, out, "b"))
	assert.Equal(t, Cell{Column: 2, Row: 1}, cellOf(t, out, "e"))
	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "a"))
}

func TestDropNode_CompactsEmptiedColumn(t *testing.T) {
	out, err := DropNode(chain("s", "a", "e"), "a", &Cell{Column: 2, Row: 1}, seqIDs("L"))
	require.NoError(t, err)

	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "e"))
	assert.Equal(t, Cell{Column: 1, Row: 1}, cellOf(t, out, "a"))
	assert.Equal(t, []string{"a->e", "s->a"}, edges(out))
}

func TestDropNode_ClampsPastLastColumn(t *testing.T) {
	out, err := DropNode(column1("a", "b"), "b", &Cell{Column: 9, Row: 0}, seqIDs("L"))
	require.NoError(t, err)
	assert.Equal(t, Cell{Column: 2, Row: 0}, cellOf(t, out, "b"))
}

func TestDropNode_PlacesOffGraphNode(t *testing.T) {
	r := startEnd()
	r.Nodes = append(r.Nodes, loose("x", schema.NodeTypeDecision))

	out, err := DropNode(r, "x", &Cell{Column: 1, Row: 0}, seqIDs("L"))
	require.NoError(t, err)
	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, out, "x"))
	assert.Equal(t, Cell{Column: 1, Row: 1}, cellOf(t, out, "e"))
}

func TestDropNode_RejectsNegativeTarget(t *testing.T) {
	_, err := DropNode(startEnd(), "e", &Cell{Column: -1, Row: 0}, seqIDs("L"))
	var gErr *schema.GraphError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, schema.ErrCodeValidation, gErr.Code)
}
