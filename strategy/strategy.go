// Package strategy models the orchestrator's instruction list: a
// StrategyMap of Step, Loop, and Terminate instructions, plus the
// validator that enforces spec.md §3's invariants before any execution.
package strategy

import "github.com/flowkit/agentflow/agent"

// Aggregation selects how a Loop's per-iteration outputs are retained in
// context once the loop exits.
type Aggregation string

const (
	// LastSuccess keeps only the final iteration's per-step outputs. This
	// is the default when Aggregation is the zero value.
	LastSuccess Aggregation = "last_success"
	// FirstSuccess stops the loop the first time its body completes
	// without a Terminate and the loop condition becomes falsy.
	FirstSuccess Aggregation = "first_success"
	// CollectAll stores every iteration's outputs under suffixed keys
	// {step_id}_iter_{n}, in addition to the unsuffixed last-iteration key.
	CollectAll Aggregation = "collect_all"
)

// LoopType selects whether the condition template is evaluated before
// (While) or after (Until) each iteration.
type LoopType string

const (
	While LoopType = "while"
	Until LoopType = "until"
)

// Instruction is one element of a StrategyMap's ordered instruction list:
// a Step, a Loop, or a Terminate. It is implemented as a tagged struct
// rather than three Go types behind an interface so that a single
// encoding/json round trip (whichever of the step/loop/terminate fields is
// set identifies the variant) is enough to
// persist and restore a StrategyMap, matching spec.md §3's JSON
// round-trip requirement for OrchestrationState.
type Instruction struct {
	Step      *Step      `json:"step,omitempty"`
	Loop      *Loop      `json:"loop,omitempty"`
	Terminate *Terminate `json:"terminate,omitempty"`
}

// Step dispatches a single agent call.
type Step struct {
	StepID         string `json:"step_id"`
	Description    string `json:"description,omitempty"`
	AssignedAgent  agent.Ident `json:"assigned_agent"`
	IntentTemplate string `json:"intent_template"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	OutputKey      string `json:"output_key,omitempty"`
}

// Loop executes Body repeatedly, up to MaxIterations times, evaluating
// ConditionTemplate before (While) or after (Until) each iteration.
// Nesting is restricted to a single level: no element of Body may itself
// be a Loop, directly or transitively — enforced by Validate, not by the
// type system, since Go has no native recursive-exclusion construct here.
type Loop struct {
	LoopID            string        `json:"loop_id"`
	MaxIterations     int           `json:"max_iterations"`
	ConditionTemplate string        `json:"condition_template,omitempty"`
	Body              []Instruction `json:"body"`
	Aggregation       Aggregation   `json:"aggregation,omitempty"`
	Description       string        `json:"description,omitempty"`
	LoopType          LoopType      `json:"loop_type,omitempty"`
}

// Terminate ends the enclosing strategy (or, from within a Loop body, the
// loop and the enclosing strategy) when ConditionTemplate renders truthy.
type Terminate struct {
	TerminateID          string `json:"terminate_id"`
	ConditionTemplate    string `json:"condition_template,omitempty"`
	FinalOutputTemplate  string `json:"final_output_template,omitempty"`
	Description          string `json:"description,omitempty"`
}

// StrategyMap is the orchestrator's full plan: a goal and an ordered
// instruction list. It is created by the strategy generator or injected
// by the caller, mutated only between runs, and immutable during a run
// (spec.md §3 Lifecycles).
type StrategyMap struct {
	Goal     string        `json:"goal"`
	Elements []Instruction `json:"elements"`
}

// New builds an empty StrategyMap for the given goal.
func New(goal string) *StrategyMap {
	return &StrategyMap{Goal: goal}
}

// AddInstruction appends an instruction to the strategy's element list and
// returns the StrategyMap for chaining.
func (s *StrategyMap) AddInstruction(i Instruction) *StrategyMap {
	s.Elements = append(s.Elements, i)
	return s
}

// AddStep is a convenience wrapper around AddInstruction for a bare Step.
func (s *StrategyMap) AddStep(step Step) *StrategyMap {
	return s.AddInstruction(Instruction{Step: &step})
}

// AddLoop is a convenience wrapper around AddInstruction for a bare Loop.
func (s *StrategyMap) AddLoop(loop Loop) *StrategyMap {
	return s.AddInstruction(Instruction{Loop: &loop})
}

// AddTerminate is a convenience wrapper around AddInstruction for a bare
// Terminate.
func (s *StrategyMap) AddTerminate(term Terminate) *StrategyMap {
	return s.AddInstruction(Instruction{Terminate: &term})
}
