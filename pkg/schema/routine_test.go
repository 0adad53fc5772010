package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRoutine = `{
  "id": "r1",
  "complexity": 3,
  "nodes": [
    {"id": "start", "type": "Start", "columnIndex": 0, "rowIndex": 0},
    {"id": "list", "type": "RoutineList", "columnIndex": 1, "rowIndex": 0,
     "data": {"isOrdered": false, "items": [
       {"id": "i1", "index": 0, "routine": {"id": "sub1", "complexity": 1, "nodes": [], "nodeLinks": []}}
     ]}},
    {"id": "end", "type": "End", "columnIndex": 2, "rowIndex": 0, "data": {"wasSuccessful": true}},
    {"id": "loose", "type": "Decision", "columnIndex": null, "rowIndex": null}
  ],
  "nodeLinks": [
    {"id": "l1", "fromId": "start", "toId": "list"},
    {"id": "l2", "fromId": "list", "toId": "end", "whens": [{"expression": "inputs.ok"}]}
  ]
}`

func TestRoutine_DecodeNodeDataVariants(t *testing.T) {
	var r Routine
	require.NoError(t, json.Unmarshal([]byte(sampleRoutine), &r))

	require.Len(t, r.Nodes, 4)
	assert.Equal(t, StartData{}, r.Nodes[0].Data)

	list, ok := r.Nodes[1].RoutineList()
	require.True(t, ok)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "sub1", list.Items[0].Routine.ID)

	assert.Equal(t, EndData{WasSuccessful: true}, r.Nodes[2].Data)
	assert.Equal(t, DecisionData{}, r.Nodes[3].Data)
	assert.False(t, r.Nodes[3].Positioned())

	col, row, ok := r.Nodes[2].Position()
	require.True(t, ok)
	assert.Equal(t, 2, col)
	assert.Equal(t, 0, row)

	require.Len(t, r.NodeLinks[1].Whens, 1)
	assert.Equal(t, "inputs.ok", r.NodeLinks[1].Whens[0].Expression)
}

func TestRoutine_DecodeUnknownType(t *testing.T) {
	var r Routine
	err := json.Unmarshal([]byte(`{"id":"r","nodes":[{"id":"x","type":"Teleport"}],"nodeLinks":[]}`), &r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestRoutine_CloneIsolatesPositionsAndLinks(t *testing.T) {
	var r Routine
	require.NoError(t, json.Unmarshal([]byte(sampleRoutine), &r))

	cp := r.Clone()
	cp.Nodes[0].SetPosition(5, 5)
	cp.NodeLinks = cp.NodeLinks[:1]
	cp.NodeLinks[0].ToID = "end"

	col, row, _ := r.Nodes[0].Position()
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)
	assert.Len(t, r.NodeLinks, 2)
	assert.Equal(t, "list", r.NodeLinks[0].ToID)
}

func TestRoutine_NeedsHydration(t *testing.T) {
	assert.True(t, (&Routine{ID: "a", Complexity: 4}).NeedsHydration())
	assert.False(t, (&Routine{ID: "a", Complexity: 1}).NeedsHydration())
	assert.False(t, (&Routine{ID: "a", Complexity: 4, Nodes: []Node{NewNode("s", NodeTypeStart)}}).NeedsHydration())

	var nilRoutine *Routine
	assert.False(t, nilRoutine.NeedsHydration())
}

func TestTranslations_ByLanguage(t *testing.T) {
	tr := Translations{{Language: "en", Title: "Hello"}, {Language: "es", Title: "Hola"}}
	require.NotNil(t, tr.ByLanguage("es"))
	assert.Equal(t, "Hola", tr.ByLanguage("es").Title)
	assert.Nil(t, tr.ByLanguage("de"))
	assert.Equal(t, []string{"en", "es"}, tr.Languages())
}
