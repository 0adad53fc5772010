package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/routinekit/pkg/schema"
)

func columnIDs(l *Layout) [][]string {
	out := make([][]string, len(l.Columns))
	for i, col := range l.Columns {
		out[i] = []string{}
		for _, n := range col {
			out[i] = append(out[i], n.ID)
		}
	}
	return out
}

func TestComputeLayout_StartToEnd(t *testing.T) {
	r := routine(
		[]schema.Node{placed("s", schema.NodeTypeStart, 0, 0), placed("e", schema.NodeTypeEnd, 1, 0)},
		link("l1", "s", "e"),
	)

	l := ComputeLayout(r)

	assert.Equal(t, schema.StatusValid, l.Status.Level)
	assert.Empty(t, l.Status.Messages)
	assert.Equal(t, [][]string{{"s"}, {"e"}, {}}, columnIDs(l))
	assert.Empty(t, l.OffGraph)
	assert.False(t, l.Changed)
	assert.Same(t, r, l.Routine)
	assert.Len(t, l.NodesByID, 2)
}

func TestComputeLayout_UnpositionedNodesAreIncomplete(t *testing.T) {
	r := routine([]schema.Node{
		placed("s", schema.NodeTypeStart, 0, 0),
		loose("a", schema.NodeTypeRoutineList),
		loose("b", schema.NodeTypeDecision),
	})

	l := ComputeLayout(r)

	assert.Equal(t, schema.StatusIncomplete, l.Status.Level)
	require.Len(t, l.Status.Messages, 1)
	assert.Contains(t, l.Status.Messages[0], "not fully connected")
	assert.Len(t, l.OffGraph, 2)
	assert.Equal(t, [][]string{{"s"}, {}}, columnIDs(l))
	assert.Len(t, l.NodesByID, 3)
}

func TestComputeLayout_LoneStartIsInvalid(t *testing.T) {
	l := ComputeLayout(routine([]schema.Node{placed("s", schema.NodeTypeStart, 0, 0)}))

	assert.Equal(t, schema.StatusInvalid, l.Status.Level)
	assert.Equal(t, []string{MsgUnterminated}, l.Status.Messages)
	assert.False(t, l.Status.Runnable())
	assert.Empty(t, l.OffGraph)
}

func TestComputeLayout_EmptyGraphIsCritical(t *testing.T) {
	for name, r := range map[string]*schema.Routine{
		"nil":      nil,
		"no nodes": routine(nil),
	} {
		t.Run(name, func(t *testing.T) {
			l := ComputeLayout(r)
			assert.Equal(t, schema.StatusInvalid, l.Status.Level)
			assert.Equal(t, schema.CriticalEmptyGraph, l.Status.Critical)
			assert.Equal(t, []string{MsgEmptyGraph}, l.Status.Messages)
			assert.Equal(t, [][]string{{}}, columnIDs(l))
		})
	}
}

func TestComputeLayout_PositionConflictResetsGraph(t *testing.T) {
	r := routine(
		[]schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			placed("a", schema.NodeTypeRoutineList, 1, 0),
			placed("b", schema.NodeTypeRoutineList, 1, 0),
			placed("e", schema.NodeTypeEnd, 2, 0),
		},
		link("l1", "s", "a"), link("l2", "a", "e"),
	)

	l := ComputeLayout(r)

	assert.True(t, l.Changed)
	assert.Equal(t, schema.StatusInvalid, l.Status.Level)
	assert.Equal(t, schema.CriticalPositionConflict, l.Status.Critical)
	assert.Equal(t, []string{MsgPositionConflict}, l.Status.Messages)
	assert.Empty(t, l.Routine.NodeLinks)
	assert.Len(t, l.OffGraph, 4)
	for i := range l.Routine.Nodes {
		assert.False(t, l.Routine.Nodes[i].Positioned())
	}

	// the caller's routine is untouched
	assert.Len(t, r.NodeLinks, 2)
	assert.Equal(t, Cell{Column: 1, Row: 0}, cellOf(t, r, "a"))
}

func TestComputeLayout_NegativeIndexIsConflict(t *testing.T) {
	r := routine([]schema.Node{
		placed("s", schema.NodeTypeStart, 0, 0),
		placed("e", schema.NodeTypeEnd, -1, 0),
	})

	l := ComputeLayout(r)
	assert.Equal(t, schema.CriticalPositionConflict, l.Status.Critical)
}

func TestComputeLayout_PrunesLinksToOffGraphNodes(t *testing.T) {
	r := routine(
		[]schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			placed("e", schema.NodeTypeEnd, 1, 0),
			loose("x", schema.NodeTypeRoutineList),
		},
		link("l1", "s", "e"), link("l2", "s", "x"), link("l3", "x", "ghost"),
	)

	l := ComputeLayout(r)

	assert.True(t, l.Changed)
	assert.NotSame(t, r, l.Routine)
	assert.Equal(t, []string{"s->e"}, edges(l.Routine))
	assert.Len(t, r.NodeLinks, 3)
	assert.Equal(t, schema.StatusIncomplete, l.Status.Level)
}

func TestComputeLayout_StructuralFindingsInOrder(t *testing.T) {
	tests := []struct {
		name     string
		routine  *schema.Routine
		messages []string
	}{
		{
			name: "no start node",
			routine: routine(
				[]schema.Node{placed("a", schema.NodeTypeRoutineList, 0, 0), placed("e", schema.NodeTypeEnd, 1, 0)},
				link("l1", "a", "e"),
			),
			messages: []string{MsgStartCount, MsgNoStart},
		},
		{
			name: "second source",
			routine: routine(
				[]schema.Node{
					placed("s", schema.NodeTypeStart, 0, 0),
					placed("e", schema.NodeTypeEnd, 1, 0),
					placed("a", schema.NodeTypeRoutineList, 1, 1),
					placed("e2", schema.NodeTypeEnd, 2, 0),
				},
				link("l1", "s", "e"), link("l2", "a", "e2"),
			),
			messages: []string{MsgNotConnected},
		},
		{
			name: "cycle has no source",
			routine: routine(
				[]schema.Node{placed("s", schema.NodeTypeStart, 0, 0), placed("a", schema.NodeTypeRoutineList, 1, 0)},
				link("l1", "s", "a"), link("l2", "a", "s"),
			),
			messages: []string{MsgNoStart},
		},
		{
			name: "dangling branch",
			routine: routine(
				[]schema.Node{
					placed("s", schema.NodeTypeStart, 0, 0),
					placed("a", schema.NodeTypeRoutineList, 1, 0),
					placed("e", schema.NodeTypeEnd, 1, 1),
				},
				link("l1", "s", "a"), link("l2", "s", "e"),
			),
			messages: []string{MsgUnterminated},
		},
		{
			name: "two starts",
			routine: routine(
				[]schema.Node{
					placed("s", schema.NodeTypeStart, 0, 0),
					placed("e", schema.NodeTypeEnd, 1, 0),
					loose("s2", schema.NodeTypeStart),
				},
				link("l1", "s", "e"),
			),
			messages: []string{MsgStartCount, "Routine is not fully connected: 1 node(s) are not linked."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ComputeLayout(tt.routine)
			assert.Equal(t, schema.StatusInvalid, l.Status.Level)
			assert.Equal(t, tt.messages, l.Status.Messages)
			assert.Equal(t, schema.CriticalNone, l.Status.Critical)
		})
	}
}

func TestComputeLayout_ColumnsAreDenseAndSorted(t *testing.T) {
	r := routine(
		[]schema.Node{
			placed("s", schema.NodeTypeStart, 0, 0),
			placed("b", schema.NodeTypeEnd, 3, 4),
			placed("a", schema.NodeTypeEnd, 3, 1),
		},
		link("l1", "s", "a"), link("l2", "s", "b"),
	)

	l := ComputeLayout(r)

	assert.Equal(t, [][]string{{"s"}, {}, {}, {"a", "b"}, {}}, columnIDs(l))
	for _, col := range l.Columns {
		for k := 1; k < len(col); k++ {
			assert.Less(t, *col[k-1].RowIndex, *col[k].RowIndex)
		}
	}
}
