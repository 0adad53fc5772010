package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string, left to
// right by layout column.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph LR\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, node := range model.Nodes {
		writeMermaidNode(&b, node)
	}

	if len(model.OffGraph) > 0 {
		b.WriteString("    subgraph off_graph[\"Not linked\"]\n")
		for _, node := range model.OffGraph {
			b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(node)))
		}
		b.WriteString("    end\n")
	}

	for _, edge := range model.Edges {
		writeMermaidEdge(&b, "    ", edge)
	}

	b.WriteString("\n")
	b.WriteString("    classDef visited fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef current fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef awaiting fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef off_graph fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")

	for _, node := range allNodes(model) {
		if node.Status != nil {
			if cls := mermaidStatusClass(node.Status.State); cls != "" {
				b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
			}
		}
	}

	return b.String()
}

func writeMermaidNode(b *strings.Builder, node *Node) {
	b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))

	for _, sg := range node.Children {
		b.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n",
			mermaidSafeID(node.ID+"_items"), mermaidEscapeLabel(sg.Label)))
		if sg.Ordered {
			b.WriteString("        direction TB\n")
		}
		for _, item := range sg.Nodes {
			b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(item)))
		}
		for _, edge := range sg.Edges {
			writeMermaidEdge(b, "        ", edge)
		}
		b.WriteString("    end\n")
		b.WriteString(fmt.Sprintf("    %s -.- %s\n", mermaidSafeID(node.ID), mermaidSafeID(node.ID+"_items")))
	}
}

func writeMermaidEdge(b *strings.Builder, indent string, edge Edge) {
	label := ""
	if edge.Label != "" {
		label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
	}
	b.WriteString(fmt.Sprintf("%s%s -->%s %s\n", indent, mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindDecision:
		return fmt.Sprintf("%s{\"%s\"}", id, label)
	case NodeKindLoop:
		return fmt.Sprintf("%s{{\"%s\"}}", id, label)
	case NodeKindRedirect:
		return fmt.Sprintf("%s>\"%s\"]", id, label)
	case NodeKindCombine:
		return fmt.Sprintf("%s[/\"%s\"\\]", id, label)
	case NodeKindRoutineList:
		return fmt.Sprintf("%s[[\"%s\"]]", id, label)
	case NodeKindItem:
		return fmt.Sprintf("%s(\"%s\")", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((\"%s\"))", id, label)
	default:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return "n_" + r.Replace(id)
}

// mermaidEscapeLabel escapes characters that end a quoted Mermaid label.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}

// mermaidStatusClass maps an overlay state to a Mermaid class name.
func mermaidStatusClass(state string) string {
	switch state {
	case StateVisited, StateCurrent, StateAwaiting, StateOffGraph:
		return state
	default:
		return ""
	}
}
