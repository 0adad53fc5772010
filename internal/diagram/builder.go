package diagram

import (
	"fmt"
	"sort"

	"github.com/rendis/routinekit/internal/graph"
	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/pkg/schema"
)

// Options controls how a layout becomes a DiagramModel.
type Options struct {
	Language string      // preferred translation language for labels
	Run      *RunOverlay // optional run progress
}

// RunOverlay marks the nodes and items a run has touched.
type RunOverlay struct {
	Visited     map[string]bool // node IDs and qualified item IDs
	Current     string          // node ID under the cursor
	CurrentItem string          // qualified item ID under the cursor
	Awaiting    bool
}

// OverlayFromRun projects a run's cursor and progress history onto the nodes of
// its main routine. Paths are anchored at their first two levels: the top-level
// step names the node, the second level names the item.
func OverlayFromRun(tree run.Step, cursor run.Path, progress []run.Path, status schema.RunStatus) *RunOverlay {
	o := &RunOverlay{Visited: make(map[string]bool)}
	for _, p := range progress {
		node, item := anchor(tree, p)
		if node != "" {
			o.Visited[node] = true
		}
		if item != "" {
			o.Visited[item] = true
		}
	}

	node, item := anchor(tree, cursor)
	if status == schema.RunStatusComplete {
		if node != "" {
			o.Visited[node] = true
		}
		if item != "" {
			o.Visited[item] = true
		}
		return o
	}
	o.Current, o.CurrentItem = node, item
	o.Awaiting = status == schema.RunStatusAwaitingHydration
	return o
}

func anchor(tree run.Step, p run.Path) (node, item string) {
	if len(p) == 0 {
		return "", ""
	}
	top, ok := run.StepAt(tree, p[:1])
	if !ok {
		return "", ""
	}
	switch s := top.(type) {
	case *run.RoutineListStep:
		node = s.NodeID
	case *run.DecisionStep:
		node = s.NodeID
	}
	if len(p) < 2 || node == "" {
		return node, ""
	}
	second, ok := run.StepAt(tree, p[:2])
	if !ok {
		return node, ""
	}
	switch s := second.(type) {
	case *run.SubroutineStep:
		item = qualify(node, s.ItemID)
	case *run.RoutineListStep:
		if s.ItemID != "" {
			item = qualify(node, s.ItemID)
		}
	}
	return node, item
}

func qualify(nodeID, itemID string) string {
	return nodeID + "." + itemID
}

// Build constructs a DiagramModel from a computed layout. Positioned nodes are laid
// out by column; off-graph nodes are listed separately with an off_graph overlay.
func Build(l *graph.Layout, opts Options) *DiagramModel {
	loc := run.NewLocalizer(opts.Language)
	model := &DiagramModel{Status: l.Status}
	if l.Routine == nil {
		return model
	}
	model.Title, _ = loc.Text(l.Routine.Translations)
	if model.Title == "" {
		model.Title = l.Routine.ID
	}

	for c, col := range l.Columns {
		if len(col) == 0 {
			continue
		}
		level := make([]string, 0, len(col))
		for _, n := range col {
			node := toNode(loc, n)
			_, row, _ := n.Position()
			node.Column, node.Row = c, row
			applyRun(node, opts.Run)
			model.Nodes = append(model.Nodes, node)
			level = append(level, node.ID)
		}
		model.Levels = append(model.Levels, level)
	}

	for _, n := range l.OffGraph {
		node := toNode(loc, n)
		node.Column, node.Row = -1, -1
		node.Status = &StatusOverlay{State: StateOffGraph, Detail: "not linked"}
		model.OffGraph = append(model.OffGraph, node)
	}

	for _, link := range l.Routine.NodeLinks {
		if _, ok := l.NodesByID[link.FromID]; !ok {
			continue
		}
		if _, ok := l.NodesByID[link.ToID]; !ok {
			continue
		}
		model.Edges = append(model.Edges, Edge{From: link.FromID, To: link.ToID, Label: edgeLabel(loc, link)})
	}
	return model
}

// toNode maps a routine node to a diagram Node.
func toNode(loc *run.Localizer, n *schema.Node) *Node {
	node := &Node{ID: n.ID, Label: nodeLabel(loc, n), Kind: nodeTypeToKind(n.Type)}

	data, ok := n.RoutineList()
	if !ok || len(data.Items) == 0 {
		return node
	}
	items := make([]schema.RoutineListItem, len(data.Items))
	copy(items, data.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })

	sg := &SubGraph{Label: node.Label, Ordered: data.IsOrdered}
	for i, it := range items {
		var routineTr schema.Translations
		if it.Routine != nil {
			routineTr = it.Routine.Translations
		}
		label, _ := loc.Text(it.Translations, routineTr)
		if label == "" {
			label = it.ID
		}
		if it.IsOptional {
			label += " (optional)"
		}
		sg.Nodes = append(sg.Nodes, &Node{ID: qualify(n.ID, it.ID), Label: label, Kind: NodeKindItem, Row: i})
		if data.IsOrdered && i > 0 {
			sg.Edges = append(sg.Edges, Edge{From: qualify(n.ID, items[i-1].ID), To: qualify(n.ID, it.ID)})
		}
	}
	node.Children = append(node.Children, sg)
	return node
}

// nodeTypeToKind converts a schema.NodeType to a NodeKind.
func nodeTypeToKind(t schema.NodeType) NodeKind {
	switch t {
	case schema.NodeTypeStart:
		return NodeKindStart
	case schema.NodeTypeEnd:
		return NodeKindEnd
	case schema.NodeTypeDecision:
		return NodeKindDecision
	case schema.NodeTypeLoop:
		return NodeKindLoop
	case schema.NodeTypeRedirect:
		return NodeKindRedirect
	case schema.NodeTypeCombine:
		return NodeKindCombine
	default:
		return NodeKindRoutineList
	}
}

// nodeLabel creates a human-readable label for a node.
func nodeLabel(loc *run.Localizer, n *schema.Node) string {
	if title, _ := loc.Text(n.Translations); title != "" {
		return title
	}
	switch n.Type {
	case schema.NodeTypeStart:
		return "Start"
	case schema.NodeTypeEnd:
		if d, ok := n.Data.(schema.EndData); ok && !d.WasSuccessful {
			return "End (unsuccessful)"
		}
		return "End"
	}
	return n.ID
}

// edgeLabel names the link's guard: the title or expression of a single
// condition, or a count.
func edgeLabel(loc *run.Localizer, link schema.Link) string {
	switch len(link.Whens) {
	case 0:
		return ""
	case 1:
		if title, _ := loc.Text(link.Whens[0].Translations); title != "" {
			return title
		}
		return link.Whens[0].Expression
	default:
		return fmt.Sprintf("%d conditions", len(link.Whens))
	}
}

func applyRun(node *Node, o *RunOverlay) {
	if o == nil {
		return
	}
	switch {
	case node.ID == o.Current && o.Awaiting:
		node.Status = &StatusOverlay{State: StateAwaiting, Detail: "loading subroutine"}
	case node.ID == o.Current:
		node.Status = &StatusOverlay{State: StateCurrent}
	case o.Visited[node.ID]:
		node.Status = &StatusOverlay{State: StateVisited}
	}
	for _, sg := range node.Children {
		for _, item := range sg.Nodes {
			switch {
			case item.ID == o.CurrentItem && o.Awaiting:
				item.Status = &StatusOverlay{State: StateAwaiting}
			case item.ID == o.CurrentItem:
				item.Status = &StatusOverlay{State: StateCurrent}
			case o.Visited[item.ID]:
				item.Status = &StatusOverlay{State: StateVisited}
			}
		}
	}
}
