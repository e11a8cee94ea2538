package orchestrator

import (
	"encoding/json"

	"github.com/flowkit/agentflow/ctxstore"
	"github.com/flowkit/agentflow/journal"
	"github.com/flowkit/agentflow/strategy"
)

// StepState is the persisted execution state of one strategy step,
// spec.md §6's tagged union flattened to a single struct: Status
// discriminates, and Error / PausedMessage / PausedPayload are populated
// only for the Failed and PausedForApproval variants respectively.
type StepState struct {
	Status        journal.StepStatus `json:"status"`
	Error         string             `json:"error,omitempty"`
	PausedMessage string             `json:"paused_message,omitempty"`
	PausedPayload json.RawMessage    `json:"paused_payload,omitempty"`
}

// Counters is the persisted remediation/redesign/loop-iteration
// bookkeeping a resumed run restores into its Pacer.
type Counters struct {
	StepRemediations    map[string]int `json:"step_remediations"`
	TotalRedesigns      int            `json:"total_redesigns"`
	TotalLoopIterations int            `json:"total_loop_iterations"`
}

// ExecutionManagerState groups the per-step StepState map with the
// counters and journal that accompany it, matching spec.md §6's
// `execution_manager{ states, counters, journal, redesigns_triggered }`
// wire shape.
type ExecutionManagerState struct {
	States             map[string]StepState      `json:"states"`
	Counters           Counters                  `json:"counters"`
	Journal            *journal.ExecutionJournal `json:"journal"`
	RedesignsTriggered int                       `json:"redesigns_triggered"`
}

// State is the serializable OrchestrationState checkpoint (spec.md §3,
// §6): strategy + context store contents + per-step execution state +
// counters + recorded journal. It round-trips through JSON by
// construction, since every field is plain exported data (spec.md §8
// property 9) — the context store's internal TypeMarker index is not
// persisted directly; it is rebuilt from Context by ctxstore.FromSnapshot
// on load, since it is fully derivable from the stored values.
type State struct {
	Strategy         *strategy.StrategyMap      `json:"strategy"`
	Context          map[string]json.RawMessage `json:"context"`
	ExecutionManager ExecutionManagerState      `json:"execution_manager"`

	// CursorIndex and PausedStepID are not part of spec.md §6's published
	// wire shape but are required to resume mid-strategy without
	// re-deriving them from the journal; they are additive fields a
	// hand-edited state file may simply omit (an omitted cursor reads as 0,
	// so the sequential orchestrator resumes from the first instruction;
	// the per-step states are not consulted to pick a later start).
	CursorIndex  int    `json:"cursor_index,omitempty"`
	PausedStepID string `json:"paused_step_id,omitempty"`
}

// newContextStore rebuilds a *ctxstore.Store from the state's persisted
// context snapshot.
func (s *State) newContextStore() *ctxstore.Store {
	return ctxstore.FromSnapshot(s.Context)
}
