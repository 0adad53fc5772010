package validation

import (
	"context"
	"fmt"

	"github.com/rendis/routinekit/pkg/schema"
)

// validateSemantic checks what the JSON Schema cannot express: unique IDs, link
// endpoints, payloads matching node types, one translation per language, item
// references and condition syntax. Loaded subroutines are checked recursively.
func validateSemantic(ctx context.Context, r *schema.Routine, checker ConditionChecker) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	validateRoutineSemantic(ctx, r, "", checker, 0, result)
	return result
}

// maxNesting bounds recursion into loaded subroutines.
const maxNesting = 20

func validateRoutineSemantic(ctx context.Context, r *schema.Routine, path string, checker ConditionChecker, depth int, result *schema.ValidationResult) {
	if depth > maxNesting {
		result.AddError(path, schema.ErrCodeValidation,
			fmt.Sprintf("subroutines nested deeper than %d levels", maxNesting))
		return
	}

	validateTranslations(r.Translations, path+"translations", result)
	if r.Complexity < 1 && len(r.Nodes) > 0 {
		result.AddWarning(path+"complexity", schema.ErrCodeValidation,
			"complexity below 1 is counted as 1 for progress")
	}

	nodeIDs := make(map[string]bool, len(r.Nodes))
	for i := range r.Nodes {
		n := &r.Nodes[i]
		np := fmt.Sprintf("%snodes[%d]", path, i)
		if nodeIDs[n.ID] {
			result.AddError(np+".id", schema.ErrCodeValidation, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodeIDs[n.ID] = true
	}

	for i := range r.Nodes {
		validateNode(ctx, &r.Nodes[i], fmt.Sprintf("%snodes[%d]", path, i), nodeIDs, checker, depth, result)
	}

	linkIDs := make(map[string]bool, len(r.NodeLinks))
	for i, l := range r.NodeLinks {
		lp := fmt.Sprintf("%snodeLinks[%d]", path, i)
		if linkIDs[l.ID] {
			result.AddError(lp+".id", schema.ErrCodeValidation, fmt.Sprintf("duplicate link id %q", l.ID))
		}
		linkIDs[l.ID] = true

		if !nodeIDs[l.FromID] {
			result.AddError(lp+".fromId", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", l.FromID))
		}
		if !nodeIDs[l.ToID] {
			result.AddError(lp+".toId", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", l.ToID))
		}
		if l.FromID == l.ToID {
			result.AddError(lp, schema.ErrCodeValidation, fmt.Sprintf("node %q links to itself", l.FromID))
		}
		validateConditions(ctx, l.Whens, lp+".whens", checker, result)
	}
}

func validateNode(ctx context.Context, n *schema.Node, path string, nodeIDs map[string]bool, checker ConditionChecker, depth int, result *schema.ValidationResult) {
	if !n.Type.Valid() {
		result.AddError(path+".type", schema.ErrCodeValidation, fmt.Sprintf("unknown node type %q", n.Type))
		return
	}
	if n.Data == nil || n.Data.NodeType() != n.Type {
		result.AddError(path+".data", schema.ErrCodeValidation,
			fmt.Sprintf("data payload does not match node type %s", n.Type))
		return
	}

	if (n.ColumnIndex == nil) != (n.RowIndex == nil) {
		result.AddError(path, schema.ErrCodeValidation, "columnIndex and rowIndex must be set together")
	} else if col, row, ok := n.Position(); ok && (col < 0 || row < 0) {
		result.AddWarning(path, schema.ErrCodeValidation,
			"negative position will reset the layout of every node")
	}
	validateTranslations(n.Translations, path+".translations", result)

	switch d := n.Data.(type) {
	case schema.RoutineListData:
		validateItems(ctx, d, path+".data", checker, depth, result)
	case schema.DecisionData:
		validateConditions(ctx, d.Conditions, path+".data.conditions", checker, result)
	case schema.LoopData:
		validateConditions(ctx, d.Whiles, path+".data.whiles", checker, result)
	case schema.RedirectData:
		if d.TargetNodeID != "" && !nodeIDs[d.TargetNodeID] {
			result.AddError(path+".data.targetNodeId", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", d.TargetNodeID))
		}
	case schema.CombineData:
		for j, id := range d.FromIDs {
			if !nodeIDs[id] {
				result.AddError(fmt.Sprintf("%s.data.fromIds[%d]", path, j), schema.ErrCodeValidation,
					fmt.Sprintf("references non-existent node %q", id))
			}
		}
	}
}

func validateItems(ctx context.Context, d schema.RoutineListData, path string, checker ConditionChecker, depth int, result *schema.ValidationResult) {
	ids := make(map[string]bool, len(d.Items))
	indexes := make(map[int]string, len(d.Items))
	for i := range d.Items {
		item := &d.Items[i]
		ip := fmt.Sprintf("%s.items[%d]", path, i)

		if ids[item.ID] {
			result.AddError(ip+".id", schema.ErrCodeValidation, fmt.Sprintf("duplicate item id %q", item.ID))
		}
		ids[item.ID] = true

		if other, dup := indexes[item.Index]; dup && d.IsOrdered {
			result.AddWarning(ip+".index", schema.ErrCodeValidation,
				fmt.Sprintf("index %d is shared with item %q; order between them is arbitrary", item.Index, other))
		}
		indexes[item.Index] = item.ID

		validateTranslations(item.Translations, ip+".translations", result)

		if item.Routine == nil {
			result.AddError(ip+".routine", schema.ErrCodeValidation, "item does not reference a routine")
			continue
		}
		if item.Routine.ID == "" {
			result.AddError(ip+".routine.id", schema.ErrCodeValidation, "referenced routine has no id")
		}
		if len(item.Routine.Nodes) > 0 {
			validateRoutineSemantic(ctx, item.Routine, ip+".routine.", checker, depth+1, result)
		}
	}
}

func validateTranslations(tr schema.Translations, path string, result *schema.ValidationResult) {
	seen := make(map[string]bool, len(tr))
	for i, t := range tr {
		if seen[t.Language] {
			result.AddError(fmt.Sprintf("%s[%d].language", path, i), schema.ErrCodeValidation,
				fmt.Sprintf("more than one translation for language %q", t.Language))
		}
		seen[t.Language] = true
	}
}

func validateConditions(ctx context.Context, conds []schema.Condition, path string, checker ConditionChecker, result *schema.ValidationResult) {
	for i, c := range conds {
		cp := fmt.Sprintf("%s[%d]", path, i)
		validateTranslations(c.Translations, cp+".translations", result)
		if checker == nil {
			continue
		}
		if err := checker.Check(ctx, c); err != nil {
			result.AddError(cp+".expression", schema.ErrCodeExpression, err.Error())
		}
	}
}
