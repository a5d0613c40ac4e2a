package agent

import (
	"fmt"

	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// Validate checks the structural invariants of a state.
// Stores call it before accepting a snapshot they did not produce.
func (s State) Validate() error {
	if !s.Status.IsValid() {
		return violation("unknown status %q", s.Status)
	}
	if len(s.Plan) == 0 {
		return violation("plan is empty")
	}
	if s.Iteration < 0 {
		return violation("iteration %d is negative", s.Iteration)
	}

	if err := validateSteps(s.Plan); err != nil {
		return err
	}

	allDone := plan.AllCompleted(s.Plan)
	if s.Status == StatusSuccess && !allDone {
		return violation("status is success but not every step is completed")
	}
	if s.Status == StatusRunning && allDone {
		return violation("every step is completed but status is running")
	}

	return validateEvents(s)
}

func validateSteps(steps []plan.Step) error {
	ids := make(map[string]bool, len(steps))
	seenOpen := false
	inProgress := 0
	for i, st := range steps {
		if st.ID == "" {
			return violation("step %d has no id", i)
		}
		if ids[st.ID] {
			return violation("duplicate step id %q", st.ID)
		}
		ids[st.ID] = true

		if !st.Status.IsValid() {
			return violation("step %q has unknown status %q", st.ID, st.Status)
		}
		if st.Attempts < 0 {
			return violation("step %q has negative attempts", st.ID)
		}

		switch st.Status {
		case plan.StepCompleted:
			if seenOpen {
				return violation("step %q is completed after an unfinished step", st.ID)
			}
		case plan.StepInProgress:
			if seenOpen {
				return violation("step %q is in progress after an unfinished step", st.ID)
			}
			inProgress++
			seenOpen = true
		case plan.StepPending:
			if st.Attempts != 0 {
				return violation("pending step %q has %d attempts", st.ID, st.Attempts)
			}
			seenOpen = true
		}
	}
	if inProgress > 1 {
		return violation("%d steps are in progress", inProgress)
	}
	return nil
}

func validateEvents(s State) error {
	if len(s.Events) == 0 {
		return violation("timeline is empty")
	}
	ids := make(map[string]bool, len(s.Events))
	for i, e := range s.Events {
		if e.ID == "" {
			return violation("event %d has no id", i)
		}
		if ids[e.ID] {
			return violation("duplicate event id %q", e.ID)
		}
		ids[e.ID] = true
		if !e.Type.IsValid() {
			return violation("event %q has unknown type %q", e.ID, e.Type)
		}
		if i > 0 && e.Timestamp.Before(s.Events[i-1].Timestamp) {
			return violation("event %q is earlier than its predecessor", e.ID)
		}
	}
	return nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolated, fmt.Sprintf(format, args...))
}
