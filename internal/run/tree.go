package run

import "github.com/rendis/routinekit/pkg/schema"

// StepAt resolves p against root. It fails when an index is out of range, when a
// non-list step would have to be descended into, or when p is malformed.
func StepAt(root Step, p Path) (Step, bool) {
	if root == nil || !p.valid() {
		return nil, false
	}
	cur := root
	for _, i := range p {
		rl, ok := cur.(*RoutineListStep)
		if !ok || i >= len(rl.Steps) {
			return nil, false
		}
		cur = rl.Steps[i]
	}
	return cur, true
}

// FindPath returns the path of the first step, in pre-order, that satisfies match.
// The search does not descend past MaxPathDepth.
func FindPath(root Step, match func(Step) bool) (Path, bool) {
	if root == nil {
		return nil, false
	}
	return findPath(root, Path{}, match)
}

func findPath(s Step, at Path, match func(Step) bool) (Path, bool) {
	if match(s) {
		return at, true
	}
	rl, ok := s.(*RoutineListStep)
	if !ok || len(at) >= MaxPathDepth {
		return nil, false
	}
	for i, child := range rl.Steps {
		if p, found := findPath(child, at.Child(i), match); found {
			return p, true
		}
	}
	return nil, false
}

// ReplaceAt returns a tree equal to root except that the step at p is repl. Only the
// routine lists along p are copied; every other subtree is shared with root.
func ReplaceAt(root Step, p Path, repl Step) (Step, error) {
	if _, ok := StepAt(root, p); !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidPath, "no step at path %q", p.String())
	}
	return replaceAt(root, p, repl), nil
}

func replaceAt(cur Step, p Path, repl Step) Step {
	if len(p) == 0 {
		return repl
	}
	rl := cur.(*RoutineListStep)
	cp := *rl
	cp.Steps = make([]Step, len(rl.Steps))
	copy(cp.Steps, rl.Steps)
	cp.Steps[p[0]] = replaceAt(rl.Steps[p[0]], p[1:], repl)
	return &cp
}

// FirstLeaf descends from the step at p along first children to a terminal step.
func FirstLeaf(root Step, p Path) (Path, bool) {
	return descend(root, p, func(n int) int { return 0 })
}

// LastLeaf descends from the step at p along last children to a terminal step.
func LastLeaf(root Step, p Path) (Path, bool) {
	return descend(root, p, func(n int) int { return n - 1 })
}

func descend(root Step, p Path, pick func(n int) int) (Path, bool) {
	cur, ok := StepAt(root, p)
	if !ok {
		return nil, false
	}
	out := p.Clone()
	for !IsTerminal(cur) {
		if len(out) >= MaxPathDepth {
			return nil, false
		}
		rl := cur.(*RoutineListStep)
		i := pick(len(rl.Steps))
		out = append(out, i)
		cur = rl.Steps[i]
	}
	return out, true
}
