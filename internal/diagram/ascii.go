package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// statusTag returns a short ASCII indicator for an overlay state.
func statusTag(state string) string {
	switch state {
	case StateVisited:
		return "[OK]"
	case StateCurrent:
		return "[HERE]"
	case StateAwaiting:
		return "[WAIT]"
	case StateOffGraph:
		return "[OFF]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text diagram. Each layout column
// becomes one row of boxes, top to bottom.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n", model.Title))
	}
	if model.Status.Level != "" {
		b.WriteString(fmt.Sprintf("status: %s\n", model.Status.Level))
		for _, msg := range model.Status.Messages {
			b.WriteString(fmt.Sprintf("  ! %s\n", msg))
		}
	}
	b.WriteByte('\n')

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	for _, node := range model.Nodes {
		for _, sg := range node.Children {
			b.WriteString(fmt.Sprintf("\n--- %s items ---\n", node.Label))
			renderSubGraph(&b, sg)
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- links ---\n")
		for _, edge := range model.Edges {
			label := ""
			if edge.Label != "" {
				label = fmt.Sprintf(" [%s]", edge.Label)
			}
			b.WriteString(fmt.Sprintf("  %s ─→ %s%s\n", edge.From, edge.To, label))
		}
	}

	if len(model.OffGraph) > 0 {
		b.WriteString("\n--- not linked ---\n")
		for _, node := range model.OffGraph {
			b.WriteString(fmt.Sprintf("  %s (%s) %s\n", firstLine(node.Label), node.Kind, statusTag(StateOffGraph)))
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}
	if node.Kind != NodeKindStart && node.Kind != NodeKindEnd {
		contentLines = append(contentLines, "<"+string(node.Kind)+">")
	}
	if node.Status != nil {
		if tag := statusTag(node.Status.State); tag != "" {
			contentLines = append(contentLines, tag)
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		if n := utf8.RuneCountInString(line); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-utf8.RuneCountInString(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// renderSubGraph renders the items of a routine list.
func renderSubGraph(b *strings.Builder, sg *SubGraph) {
	for i, node := range sg.Nodes {
		tag := ""
		if node.Status != nil {
			tag = " " + statusTag(node.Status.State)
		}
		bullet := "-"
		if sg.Ordered {
			bullet = fmt.Sprintf("%d.", i+1)
		}
		b.WriteString(fmt.Sprintf("  %s %s%s\n", bullet, firstLine(node.Label), tag))
	}
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// allNodes lists every node of the model, items and off-graph nodes included.
func allNodes(model *DiagramModel) []*Node {
	var out []*Node
	for _, n := range model.Nodes {
		out = append(out, n)
		for _, sg := range n.Children {
			out = append(out, sg.Nodes...)
		}
	}
	return append(out, model.OffGraph...)
}
