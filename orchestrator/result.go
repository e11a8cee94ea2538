package orchestrator

import (
	"encoding/json"

	"github.com/flowkit/agentflow/journal"
)

// Status is execute's terminal outcome (spec.md §6's user-visible
// surface).
type Status string

const (
	// StatusSuccess indicates the strategy ran to completion (exhausted
	// or a Terminate fired truthy).
	StatusSuccess Status = "success"
	// StatusFailure indicates a non-recoverable error: validation,
	// ceiling, or cancellation.
	StatusFailure Status = "failure"
	// StatusPaused indicates a step returned RequiresApproval; state was
	// persisted and execute returned without advancing.
	StatusPaused Status = "paused"
)

// Result is execute's return value (spec.md §6).
type Result struct {
	Status              Status                    `json:"status"`
	StepsExecuted       int                       `json:"steps_executed"`
	RedesignsTriggered  int                       `json:"redesigns_triggered"`
	FinalOutput         json.RawMessage           `json:"final_output,omitempty"`
	ErrorMessage        string                    `json:"error_message,omitempty"`
	Journal             *journal.ExecutionJournal `json:"journal,omitempty"`
	PauseReason         string                    `json:"pause_reason,omitempty"`
}
