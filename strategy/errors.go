package strategy

import "fmt"

// DuplicateIDError reports a step_id, loop_id, or terminate_id reused
// elsewhere in the strategy (invariant 1 in spec.md §3).
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("strategy: duplicate instruction id %q", e.ID)
}

// NestedLoopError reports a Loop whose body (directly or transitively)
// contains another Loop, violating the single-level nesting invariant
// (invariant 2 in spec.md §3).
type NestedLoopError struct {
	LoopID string
}

func (e *NestedLoopError) Error() string {
	return fmt.Sprintf("strategy: loop %q nests another loop", e.LoopID)
}

// UnresolvedPlaceholderError reports a Step or Terminate template
// referencing an identifier that cannot be resolved from task,
// previous_output, a prior step output, a prior output_key, or an
// externally supplied key (invariant 3 in spec.md §3).
type UnresolvedPlaceholderError struct {
	StepID      string
	Placeholder string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("strategy: step %q references unresolvable placeholder %q", e.StepID, e.Placeholder)
}

// InvalidMaxIterationsError reports a Loop with MaxIterations < 1
// (invariant 4 in spec.md §3).
type InvalidMaxIterationsError struct {
	LoopID string
	Value  int
}

func (e *InvalidMaxIterationsError) Error() string {
	return fmt.Sprintf("strategy: loop %q has invalid max_iterations %d (must be >= 1)", e.LoopID, e.Value)
}
