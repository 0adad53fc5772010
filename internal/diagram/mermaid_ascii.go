package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RenderASCIIAuto renders through the mermaid-ascii binary in binDir when present,
// falling back to RenderASCII.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, "mermaid-ascii")
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(ctx, model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	mermaid := RenderMermaidForCLI(model)

	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(mermaid)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates simplified Mermaid syntax compatible with the
// mermaid-ascii CLI tool, which cannot parse ["label"] declarations or subgraph
// blocks. Node IDs carry the label and overlay tag; ordered items are chained
// after their routine list node.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	displayID := make(map[string]string, len(model.Nodes))
	for _, node := range allNodes(model) {
		displayID[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return mermaidSafeID(id)
	}
	edge := func(from, to, label string) {
		if label != "" {
			label = fmt.Sprintf("|%s|", label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", resolve(from), label, resolve(to)))
	}

	for _, e := range model.Edges {
		edge(e.From, e.To, e.Label)
	}
	for _, node := range model.Nodes {
		for _, sg := range node.Children {
			if len(sg.Nodes) == 0 {
				continue
			}
			if !sg.Ordered {
				for _, item := range sg.Nodes {
					edge(node.ID, item.ID, "")
				}
				continue
			}
			edge(node.ID, sg.Nodes[0].ID, "")
			for _, e := range sg.Edges {
				edge(e.From, e.To, e.Label)
			}
		}
	}
	for _, node := range model.OffGraph {
		b.WriteString(fmt.Sprintf("    %s\n", resolve(node.ID)))
	}

	return b.String()
}

// cliNodeID builds a display ID for the mermaid-ascii CLI.
func cliNodeID(node *Node) string {
	id := firstLine(node.Label)
	if id == "" {
		id = node.ID
	}
	if node.Status != nil {
		if tag := cliStatusTag(node.Status.State); tag != "" {
			id += "-" + tag
		}
	}
	return strings.NewReplacer(" ", "-", "|", "-", "(", "", ")", "").Replace(id)
}

// cliStatusTag returns a compact overlay indicator for node IDs.
func cliStatusTag(state string) string {
	switch state {
	case StateVisited:
		return "OK"
	case StateCurrent:
		return "HERE"
	case StateAwaiting:
		return "WAIT"
	case StateOffGraph:
		return "OFF"
	default:
		return ""
	}
}
