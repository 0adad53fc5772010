package run

// Complexity weighs a step for progress accounting: a decision counts 1, a
// subroutine its routine's complexity (at least 1), and a routine list the sum
// of its children.
func Complexity(s Step) int {
	switch v := s.(type) {
	case *DecisionStep:
		return 1
	case *SubroutineStep:
		if v.Routine == nil || v.Routine.Complexity < 1 {
			return 1
		}
		return v.Routine.Complexity
	case *RoutineListStep:
		total := 0
		for _, child := range v.Steps {
			total += Complexity(child)
		}
		return total
	}
	return 0
}

// Progress summarizes how far a run has come.
type Progress struct {
	Percentage float64 `json:"percentage"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Stale      []Path  `json:"stale,omitempty"`
	Clamped    bool    `json:"clamped,omitempty"`
}

// MeasureProgress sums the complexity of every history path that still resolves
// and relates it to total. A non-positive total falls back to the tree's own
// complexity. Paths that no longer resolve are returned in Stale; a sum above
// total is clamped to 100%.
func MeasureProgress(root Step, history []Path, total int) Progress {
	if total <= 0 {
		total = Complexity(root)
	}
	pr := Progress{Total: total}

	for _, p := range history {
		s, ok := StepAt(root, p)
		if !ok {
			pr.Stale = append(pr.Stale, p)
			continue
		}
		pr.Completed += Complexity(s)
	}

	if total <= 0 {
		return pr
	}
	pr.Percentage = float64(pr.Completed) / float64(total) * 100
	if pr.Percentage > 100 {
		pr.Percentage = 100
		pr.Clamped = true
	}
	return pr
}

// ProgressPercentage is MeasureProgress reduced to its percentage.
func ProgressPercentage(root Step, history []Path, total int) float64 {
	return MeasureProgress(root, history, total).Percentage
}

// record appends p to history unless an equal path is already present.
func record(history []Path, p Path) []Path {
	for _, h := range history {
		if h.Equal(p) {
			return history
		}
	}
	return append(history, p.Clone())
}
