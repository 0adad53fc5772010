package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/routinekit/pkg/schema"
)

// validateDAG analyses the link graph of r: cycle detection with Kahn's algorithm,
// then reachability from the Start node. Unreachable nodes are warnings since an
// incomplete routine may still be saved.
func validateDAG(r *schema.Routine) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodeIDs := make(map[string]bool, len(r.Nodes))
	for i := range r.Nodes {
		nodeIDs[r.Nodes[i].ID] = true
	}

	out := make(map[string][]string, len(r.Nodes))
	inDegree := make(map[string]int, len(r.Nodes))
	for id := range nodeIDs {
		inDegree[id] = 0
	}
	seen := make(map[[2]string]bool, len(r.NodeLinks))
	for _, l := range r.NodeLinks {
		key := [2]string{l.FromID, l.ToID}
		if !nodeIDs[l.FromID] || !nodeIDs[l.ToID] || seen[key] {
			continue // bad refs already reported by the semantic stage
		}
		seen[key] = true
		out[l.FromID] = append(out[l.FromID], l.ToID)
		inDegree[l.ToID]++
	}

	queue := make([]string, 0, len(nodeIDs))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, to := range out[id] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if visited != len(nodeIDs) {
		result.AddError("nodeLinks", schema.ErrCodeValidation, "routine links contain a cycle")
		return result
	}

	var starts []string
	for i := range r.Nodes {
		if r.Nodes[i].Type == schema.NodeTypeStart {
			starts = append(starts, r.Nodes[i].ID)
		}
	}
	switch {
	case len(r.Nodes) == 0:
		return result
	case len(starts) == 0:
		result.AddWarning("nodes", schema.ErrCodeValidation, "routine has no Start node")
		return result
	case len(starts) > 1:
		result.AddWarning("nodes", schema.ErrCodeValidation,
			fmt.Sprintf("routine has %d Start nodes", len(starts)))
	}

	reachable := make(map[string]bool, len(nodeIDs))
	bfs := append([]string(nil), starts...)
	for _, s := range starts {
		reachable[s] = true
	}
	for len(bfs) > 0 {
		id := bfs[0]
		bfs = bfs[1:]
		for _, to := range out[id] {
			if !reachable[to] {
				reachable[to] = true
				bfs = append(bfs, to)
			}
		}
	}

	for i := range r.Nodes {
		n := &r.Nodes[i]
		if !reachable[n.ID] {
			result.AddWarning(fmt.Sprintf("nodes[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("node %q is unreachable from the Start node", n.ID))
		}
	}
	return result
}
