package run

// Next returns the terminal step that follows p in pre-order. It reports false
// when p is the last terminal step, which completes the run, or when p does not
// resolve.
func Next(root Step, p Path) (Path, bool) {
	if _, ok := StepAt(root, p); !ok {
		return nil, false
	}
	for i := len(p) - 1; i >= 0; i-- {
		parent, _ := StepAt(root, p[:i])
		siblings := len(parent.(*RoutineListStep).Steps)
		if p[i]+1 < siblings {
			q := p[:i].Child(p[i] + 1)
			return FirstLeaf(root, q)
		}
	}
	return nil, false
}

// Previous returns the terminal step that precedes p in pre-order. It reports
// false when p is already the first step or does not resolve.
func Previous(root Step, p Path) (Path, bool) {
	if _, ok := StepAt(root, p); !ok {
		return nil, false
	}
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] > 0 {
			q := p[:i].Child(p[i] - 1)
			return LastLeaf(root, q)
		}
	}
	return nil, false
}
