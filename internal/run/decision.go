package run

import (
	"context"

	"github.com/rendis/routinekit/pkg/schema"
)

// ConditionEvaluator decides whether a link condition holds. *expressions.Registry
// satisfies it.
type ConditionEvaluator interface {
	Holds(ctx context.Context, cond schema.Condition, data map[string]any) (bool, error)
}

// AvailableLinks returns the links whose conditions all hold against data. Links
// without conditions are always available. A nil evaluator offers every link.
func (d *DecisionStep) AvailableLinks(ctx context.Context, ev ConditionEvaluator, data map[string]any) ([]schema.Link, error) {
	if ev == nil {
		return append([]schema.Link(nil), d.Links...), nil
	}
	out := make([]schema.Link, 0, len(d.Links))
	for _, l := range d.Links {
		ok, err := allHold(ctx, ev, l.Whens, data)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"link %s: %s", l.ID, err.Error()).WithNode(d.NodeID).WithCause(err)
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// Link returns the link with the given ID, or reports false.
func (d *DecisionStep) Link(linkID string) (schema.Link, bool) {
	for _, l := range d.Links {
		if l.ID == linkID {
			return l, true
		}
	}
	return schema.Link{}, false
}

func allHold(ctx context.Context, ev ConditionEvaluator, whens []schema.Condition, data map[string]any) (bool, error) {
	for _, cond := range whens {
		ok, err := ev.Holds(ctx, cond, data)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
