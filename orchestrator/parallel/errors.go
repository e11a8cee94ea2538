package parallel

import "fmt"

// NonStepInstructionError reports a strategy element the parallel
// orchestrator cannot schedule: it operates over a flat dependency graph
// of Step instructions only, since Loop and Terminate have no natural DAG
// dependency semantics (spec.md §4.6 describes the scheduler purely in
// terms of steps and their producers).
type NonStepInstructionError struct {
	Index int
}

func (e *NonStepInstructionError) Error() string {
	return fmt.Sprintf("parallel: element %d is not a Step; the parallel orchestrator only schedules flat step sets", e.Index)
}

// CycleError reports a dependency cycle detected while building the DAG.
type CycleError struct {
	StepIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("parallel: dependency cycle among steps %v", e.StepIDs)
}
