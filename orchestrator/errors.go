package orchestrator

import (
	"errors"
	"fmt"
)

// MaxStepRemediationsExceededError aborts the run when a single step's
// remediation counter reaches Config.MaxStepRemediations (spec.md
// §4.5.2).
type MaxStepRemediationsExceededError struct {
	StepIndex int
	StepID    string
	Limit     int
}

func (e *MaxStepRemediationsExceededError) Error() string {
	return fmt.Sprintf("orchestrator: MaxStepRemediationsExceeded: step %d (%q) exceeded limit %d", e.StepIndex, e.StepID, e.Limit)
}

// MaxTotalRedesignsExceededError aborts the run when the run-wide
// redesign counter reaches Config.MaxTotalRedesigns (spec.md §4.5.2).
type MaxTotalRedesignsExceededError struct {
	Limit int
}

func (e *MaxTotalRedesignsExceededError) Error() string {
	return fmt.Sprintf("orchestrator: MaxTotalRedesignsExceeded: limit %d", e.Limit)
}

// GlobalLoopBudgetExceededError aborts the run when the run-wide loop
// iteration counter reaches Config.MaxTotalLoopIterations (spec.md §4.7).
type GlobalLoopBudgetExceededError struct {
	Limit int
}

func (e *GlobalLoopBudgetExceededError) Error() string {
	return fmt.Sprintf("orchestrator: GlobalLoopBudgetExceeded: limit %d", e.Limit)
}

// ErrCancelled is returned (wrapped) when a caller-supplied context is
// cancelled between step dispatches (spec.md §5's cooperative
// cancellation).
var ErrCancelled = errors.New("orchestrator: cancelled")
