package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a DiagramModel as a PNG image using graphviz.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	return RenderGraphviz(ctx, model, graphviz.PNG)
}

// RenderGraphviz renders a DiagramModel in the given graphviz output format.
func RenderGraphviz(ctx context.Context, model *DiagramModel, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	// Items of each routine list become a cluster hanging off their node.
	for _, node := range model.Nodes {
		for _, sg := range node.Children {
			sub, subErr := graph.CreateSubGraphByName("cluster_" + node.ID)
			if subErr != nil {
				continue
			}
			sub.SetLabel(sg.Label)
			sub.SetStyle(cgraph.DashedGraphStyle)

			for _, item := range sg.Nodes {
				gvItem, nErr := sub.CreateNodeByName(item.ID)
				if nErr != nil {
					continue
				}
				gvItem.SetLabel(firstLine(item.Label))
				applyNodeStyle(gvItem, item)
				gvNodes[item.ID] = gvItem
			}
			for _, edge := range sg.Edges {
				createEdge(graph, gvNodes, edge)
			}
			if len(sg.Nodes) > 0 {
				if from, to := gvNodes[node.ID], gvNodes[sg.Nodes[0].ID]; from != nil && to != nil {
					if e, eErr := graph.CreateEdgeByName("", from, to); eErr == nil {
						e.SetStyle(cgraph.DashedEdgeStyle)
					}
				}
			}
		}
	}

	if len(model.OffGraph) > 0 {
		if sub, subErr := graph.CreateSubGraphByName("cluster_off_graph"); subErr == nil {
			sub.SetLabel("Not linked")
			sub.SetStyle(cgraph.DashedGraphStyle)
			for _, node := range model.OffGraph {
				gvNode, nErr := sub.CreateNodeByName(node.ID)
				if nErr != nil {
					continue
				}
				gvNode.SetLabel(firstLine(node.Label))
				applyNodeStyle(gvNode, node)
			}
		}
	}

	for _, edge := range model.Edges {
		createEdge(graph, gvNodes, edge)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, format, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

func createEdge(graph *cgraph.Graph, gvNodes map[string]*cgraph.Node, edge Edge) {
	fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
	if fromGV == nil || toGV == nil {
		return
	}
	e, err := graph.CreateEdgeByName("", fromGV, toGV)
	if err == nil && edge.Label != "" {
		e.SetLabel(edge.Label)
	}
}

// applyNodeStyle sets graphviz attributes based on node kind and overlay.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindRoutineList:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeKindItem:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindDecision:
		gvNode.SetShape(cgraph.DiamondShape)
	case NodeKindLoop:
		gvNode.SetShape(cgraph.HexagonShape)
	case NodeKindRedirect, NodeKindCombine:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindStart, NodeKindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	}

	if node.Status != nil {
		applyStatusColor(gvNode, node.Status.State)
	}
}

// applyStatusColor sets fill color and style based on overlay state.
func applyStatusColor(gvNode *cgraph.Node, state string) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch state {
	case StateVisited:
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case StateCurrent:
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
	case StateAwaiting:
		gvNode.SetFillColor("#b7791a")
		gvNode.SetFontColor("white")
	case StateOffGraph:
		gvNode.SetFillColor("#e8e8e8")
		gvNode.SetFontColor("#888888")
		gvNode.SetStyle(cgraph.DashedNodeStyle)
	}
}
