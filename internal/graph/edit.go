package graph

import (
	"github.com/rendis/routinekit/pkg/schema"
)

// RemoveNode deletes a node and repairs the links around it.
//
// Let F be the other endpoints of links entering the node and T those of links
// leaving it. With exactly one source, that source is linked to every target
// (fan-out). Otherwise, with exactly one target, every source is linked to it
// (fan-in). An N:M junction is left disconnected; the next layout pass reports it.
func RemoveNode(r *schema.Routine, nodeID string, newID IDFunc) (*schema.Routine, error) {
	out := r.Clone()
	pos := nodeIndex(out, nodeID)
	if pos < 0 {
		return nil, nodeNotFound(nodeID)
	}

	out.Nodes = append(out.Nodes[:pos:pos], out.Nodes[pos+1:]...)
	out.NodeLinks = relink(out.NodeLinks, nodeID, newID)
	return out, nil
}

// UnlinkNode moves a node off the grid without deleting it. Its links are removed
// and repaired with the same rule as RemoveNode.
func UnlinkNode(r *schema.Routine, nodeID string, newID IDFunc) (*schema.Routine, error) {
	out := r.Clone()
	node := out.NodeByID(nodeID)
	if node == nil {
		return nil, nodeNotFound(nodeID)
	}

	node.ClearPosition()
	out.NodeLinks = relink(out.NodeLinks, nodeID, newID)
	return out, nil
}

// relink removes the links touching nodeID and adds the replacement links.
func relink(links []schema.Link, nodeID string, newID IDFunc) []schema.Link {
	var froms, tos []string
	kept := make([]schema.Link, 0, len(links))
	for _, l := range links {
		if l.FromID != nodeID && l.ToID != nodeID {
			kept = append(kept, l)
			continue
		}
		if l.ToID == nodeID && l.FromID != nodeID {
			froms = appendUnique(froms, l.FromID)
		}
		if l.FromID == nodeID && l.ToID != nodeID {
			tos = appendUnique(tos, l.ToID)
		}
	}

	var pairs [][2]string
	switch {
	case len(froms) == 1:
		for _, to := range tos {
			pairs = append(pairs, [2]string{froms[0], to})
		}
	case len(tos) == 1:
		for _, from := range froms {
			pairs = append(pairs, [2]string{from, tos[0]})
		}
	}

	for _, p := range pairs {
		if p[0] == p[1] || hasLink(kept, p[0], p[1]) {
			continue
		}
		kept = append(kept, schema.Link{ID: newID(), FromID: p[0], ToID: p[1]})
	}
	return kept
}

// InsertNodeOnLink splits a link with a new node. The node takes the target's cell
// and every node from that column onward moves one column right.
func InsertNodeOnLink(r *schema.Routine, linkID string, node schema.Node, newID IDFunc) (*schema.Routine, error) {
	out := r.Clone()
	link, to, err := linkTarget(out, linkID)
	if err != nil {
		return nil, err
	}
	col, row, _ := to.Position()

	node, err = prepareNode(out, node, newID)
	if err != nil {
		return nil, err
	}

	shiftColumns(out, col, "")
	node.SetPosition(col, row)
	out.Nodes = append(out.Nodes, node)

	from, toID := link.FromID, link.ToID
	out.NodeLinks = removeLink(out.NodeLinks, linkID)
	out.NodeLinks = append(out.NodeLinks,
		schema.Link{ID: newID(), FromID: from, ToID: node.ID},
		schema.Link{ID: newID(), FromID: node.ID, ToID: toID},
	)
	return out, nil
}

// InsertBranch adds a new branch off the link's source: the node goes to a new row
// in the target's column and is immediately terminated by an End node one column to
// the right. The original link stays in place.
//
// The End node shares the new row unless that cell is taken, in which case it goes
// to the next free row of its column.
func InsertBranch(r *schema.Routine, linkID string, node, end schema.Node, newID IDFunc) (*schema.Routine, error) {
	out := r.Clone()
	link, to, err := linkTarget(out, linkID)
	if err != nil {
		return nil, err
	}
	col, _, _ := to.Position()

	if end.Type == "" {
		end.Type = schema.NodeTypeEnd
	}
	if end.Type != schema.NodeTypeEnd {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "branch terminator must be an End node, got %s", end.Type)
	}

	node, err = prepareNode(out, node, newID)
	if err != nil {
		return nil, err
	}
	end, err = prepareNode(out, end, newID)
	if err != nil {
		return nil, err
	}
	if end.ID == node.ID {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node ID: %s", end.ID)
	}

	row := maxRow(out, col) + 1
	node.SetPosition(col, row)

	endRow := row
	if occupant(out, Cell{Column: col + 1, Row: row}) != nil {
		endRow = maxRow(out, col+1) + 1
	}
	end.SetPosition(col+1, endRow)

	out.Nodes = append(out.Nodes, node, end)
	out.NodeLinks = append(out.NodeLinks,
		schema.Link{ID: newID(), FromID: link.FromID, ToID: node.ID},
		schema.Link{ID: newID(), FromID: node.ID, ToID: end.ID},
	)
	return out, nil
}

// DropNode moves a node to target. A nil target unlinks the node.
//
// Column 0 is reserved: dropping there opens a new column 1 for the node. Within the
// node's own column it either pushes the rows below the target down (nothing sits at
// or above the target) or swaps with the nearest node at or above the target. In any
// other column the rows from the target down make room. A column emptied by the move
// is closed up. Dropping a node on its own cell changes nothing.
func DropNode(r *schema.Routine, nodeID string, target *Cell, newID IDFunc) (*schema.Routine, error) {
	if target == nil {
		return UnlinkNode(r, nodeID, newID)
	}
	if target.Column < 0 || target.Row < 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid drop target (%d, %d)", target.Column, target.Row).WithNode(nodeID)
	}

	out := r.Clone()
	node := out.NodeByID(nodeID)
	if node == nil {
		return nil, nodeNotFound(nodeID)
	}

	originCol, originRow, placed := node.Position()
	col, row := target.Column, target.Row
	if last := maxColumn(out) + 1; col > last {
		col = last
	}

	if placed && col == originCol && row == originRow {
		return out, nil
	}

	switch {
	case col == 0:
		shiftColumns(out, 1, nodeID)
		if placed && originCol != 0 {
			originCol++
		}
		node.SetPosition(1, row)

	case placed && col == originCol:
		if above := nearestAtOrAbove(out, col, row, nodeID); above != nil {
			_, aboveRow, _ := above.Position()
			above.SetPosition(col, originRow)
			node.SetPosition(col, aboveRow)
		} else {
			shiftRows(out, col, row, nodeID)
			node.SetPosition(col, row)
		}

	default:
		shiftRows(out, col, row, nodeID)
		node.SetPosition(col, row)
	}

	if placed && columnEmpty(out, originCol) {
		compactColumn(out, originCol)
	}
	return out, nil
}

// nearestAtOrAbove returns the node in column with the greatest row not below row.
func nearestAtOrAbove(r *schema.Routine, column, row int, skip string) *schema.Node {
	var best *schema.Node
	bestRow := -1
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if n.ID == skip {
			continue
		}
		if c, rw, ok := n.Position(); ok && c == column && rw <= row && rw > bestRow {
			best, bestRow = n, rw
		}
	}
	return best
}

// linkTarget resolves a link and its positioned target node.
func linkTarget(r *schema.Routine, linkID string) (*schema.Link, *schema.Node, error) {
	link := r.LinkByID(linkID)
	if link == nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeNotFound, "link %s not found", linkID)
	}
	if r.NodeByID(link.FromID) == nil {
		return nil, nil, nodeNotFound(link.FromID)
	}
	to := r.NodeByID(link.ToID)
	if to == nil {
		return nil, nil, nodeNotFound(link.ToID)
	}
	if !to.Positioned() {
		return nil, nil, schema.NewErrorf(schema.ErrCodeValidation,
			"link %s targets a node that is not on the grid", linkID).WithNode(to.ID)
	}
	return link, to, nil
}

// prepareNode assigns an ID and default payload to a node about to be inserted.
func prepareNode(r *schema.Routine, node schema.Node, newID IDFunc) (schema.Node, error) {
	node = node.Clone()
	if node.ID == "" {
		node.ID = newID()
	}
	if r.NodeByID(node.ID) != nil {
		return node, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node ID: %s", node.ID)
	}
	if !node.Type.Valid() {
		return node, schema.NewErrorf(schema.ErrCodeValidation, "unknown node type %q", node.Type)
	}
	if node.Data == nil {
		node.Data, _ = schema.DataFor(node.Type, nil)
	}
	return node, nil
}

func removeLink(links []schema.Link, linkID string) []schema.Link {
	out := make([]schema.Link, 0, len(links))
	for _, l := range links {
		if l.ID != linkID {
			out = append(out, l)
		}
	}
	return out
}

func nodeIndex(r *schema.Routine, id string) int {
	for i := range r.Nodes {
		if r.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func nodeNotFound(id string) *schema.GraphError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "node %s not found", id).WithNode(id)
}
