package run

import (
	"sort"

	"github.com/rendis/routinekit/internal/graph"
	"github.com/rendis/routinekit/pkg/schema"
)

// Builder projects routine graphs into step trees.
type Builder struct {
	loc *Localizer
}

// NewBuilder returns a builder that resolves titles with loc. A nil loc uses English.
func NewBuilder(loc *Localizer) *Builder {
	if loc == nil {
		loc = NewLocalizer("en")
	}
	return &Builder{loc: loc}
}

// Build projects r into a tree rooted at an ordered RoutineListStep.
//
// The root holds, in order: a DecisionStep for the Start node when it has more
// than one outgoing link, then one RoutineListStep per positioned RoutineList node
// in (column, row) order. Each of those lists its items as subroutine steps,
// ordered by index or, when unordered, alphabetically by title, and ends with a
// DecisionStep when the node has more than one outgoing link.
//
// Subroutines whose routines are already loaded and have complexity above 1 are
// expanded in place. A routine whose positions conflict is rejected: it must be
// laid out and corrected first.
func (b *Builder) Build(r *schema.Routine) (*RoutineListStep, error) {
	return b.build(r, 0)
}

// Expand replaces a subroutine leaf with the tree of its now loaded routine. A
// routine without routine lists of its own stays a leaf carrying the full routine.
// depth is the length of the leaf's path.
func (b *Builder) Expand(leaf *SubroutineStep, r *schema.Routine, depth int) (Step, error) {
	sub, err := b.build(r, depth)
	if err != nil {
		return nil, err
	}
	if len(sub.Steps) == 0 {
		cp := *leaf
		cp.Routine = r
		return &cp, nil
	}
	sub.ItemID = leaf.ItemID
	if leaf.Title != "" {
		sub.Title, sub.Description = leaf.Title, leaf.Description
	}
	return sub, nil
}

func (b *Builder) build(r *schema.Routine, depth int) (*RoutineListStep, error) {
	if r == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "routine is required")
	}
	if depth > MaxPathDepth {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidPath,
			"routine %s is nested deeper than %d levels", r.ID, MaxPathDepth)
	}

	layout := graph.ComputeLayout(r)
	if layout.Status.Critical == schema.CriticalPositionConflict {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"routine %s has conflicting node positions; correct its layout before running it", r.ID)
	}

	title, desc := b.loc.Text(r.Translations)
	root := &RoutineListStep{
		RoutineID:   r.ID,
		Title:       title,
		Description: desc,
		IsOrdered:   true,
		Steps:       []Step{},
	}

	out := make(map[string][]schema.Link)
	if layout.Routine != nil {
		for _, l := range layout.Routine.NodeLinks {
			out[l.FromID] = append(out[l.FromID], l)
		}
	}

	for _, col := range layout.Columns {
		for _, n := range col {
			if n.Type == schema.NodeTypeStart && len(out[n.ID]) > 1 {
				root.Steps = append(root.Steps, b.decision(n, out[n.ID], layout.NodesByID))
				break
			}
		}
	}

	for _, col := range layout.Columns {
		for _, n := range col {
			data, ok := n.RoutineList()
			if !ok {
				continue
			}
			step, err := b.listStep(n, data, out[n.ID], layout.NodesByID, depth+1)
			if err != nil {
				return nil, err
			}
			root.Steps = append(root.Steps, step)
		}
	}
	return root, nil
}

func (b *Builder) listStep(n *schema.Node, data schema.RoutineListData, links []schema.Link,
	nodes map[string]*schema.Node, depth int) (*RoutineListStep, error) {
	title, desc := b.loc.Text(n.Translations)
	step := &RoutineListStep{
		NodeID:      n.ID,
		Title:       title,
		Description: desc,
		IsOrdered:   data.IsOrdered,
		Steps:       make([]Step, 0, len(data.Items)+1),
	}

	for _, leaf := range b.sortItems(data) {
		if r := leaf.Routine; r != nil && len(r.Nodes) > 0 && r.Complexity > 1 {
			expanded, err := b.Expand(leaf, r, depth+1)
			if err != nil {
				return nil, err
			}
			step.Steps = append(step.Steps, expanded)
			continue
		}
		step.Steps = append(step.Steps, leaf)
	}

	if len(links) > 1 {
		step.Steps = append(step.Steps, b.decision(n, links, nodes))
	}
	return step, nil
}

func (b *Builder) sortItems(data schema.RoutineListData) []*SubroutineStep {
	leaves := make([]*SubroutineStep, len(data.Items))
	for i, item := range data.Items {
		sets := []schema.Translations{item.Translations}
		if item.Routine != nil {
			sets = append(sets, item.Routine.Translations)
		}
		title, desc := b.loc.Text(sets...)
		leaves[i] = &SubroutineStep{
			ItemID:      item.ID,
			Index:       item.Index,
			IsOptional:  item.IsOptional,
			Title:       title,
			Description: desc,
			Routine:     item.Routine,
		}
	}

	if data.IsOrdered {
		sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].Index < leaves[j].Index })
		return leaves
	}

	coll := b.loc.Collator()
	sort.SliceStable(leaves, func(i, j int) bool {
		if c := b.loc.Compare(coll, leaves[i].Title, leaves[j].Title); c != 0 {
			return c < 0
		}
		return leaves[i].Index < leaves[j].Index
	})
	return leaves
}

func (b *Builder) decision(n *schema.Node, links []schema.Link, nodes map[string]*schema.Node) *DecisionStep {
	title, _ := b.loc.Text(n.Translations)
	d := &DecisionStep{
		NodeID:  n.ID,
		Title:   title,
		Links:   append([]schema.Link(nil), links...),
		Targets: make(map[string]schema.NodeType, len(links)),
	}
	for _, l := range links {
		if to, ok := nodes[l.ToID]; ok {
			d.Targets[l.ToID] = to.Type
		}
	}
	return d
}
