package plan

// ActiveIndex returns the index of the first step that is not completed.
// Steps run strictly in order, so this is the only step that may be worked.
func ActiveIndex(steps []Step) (int, bool) {
	for i, s := range steps {
		if s.Status != StepCompleted {
			return i, true
		}
	}
	return -1, false
}

// AllCompleted returns true if every step is completed.
// An empty plan is never complete.
func AllCompleted(steps []Step) bool {
	if len(steps) == 0 {
		return false
	}
	_, ok := ActiveIndex(steps)
	return !ok
}

// CountByStatus returns how many steps are in the given status.
func CountByStatus(steps []Step, status StepStatus) int {
	n := 0
	for _, s := range steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Clone deep-copies a slice of steps.
func Clone(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s.Clone()
	}
	return out
}
