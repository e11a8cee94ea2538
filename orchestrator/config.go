// Package orchestrator implements the sequential execution engine from
// spec.md §4.5: the execute(task) main loop, per-step execution and
// three-stage remediation (§4.5.1, §4.5.2), the loop executor (§4.7), and
// the OrchestrationState checkpoint (§3, §6) that makes a run resumable.
package orchestrator

import "time"

// DetectionMode selects which context-detection pass runs before each
// step dispatch (spec.md §4.8).
type DetectionMode string

const (
	// DetectionNone disables context detection entirely.
	DetectionNone DetectionMode = "none"
	// DetectionRuleBased runs only the fast, no-external-call rule set.
	DetectionRuleBased DetectionMode = "rule_based"
	// DetectionAgentBased runs only the classifier-agent detector.
	DetectionAgentBased DetectionMode = "agent_based"
)

// Config holds the sequential orchestrator's tunables, all named and
// defaulted per spec.md §4.5.
type Config struct {
	// MaxStepRemediations caps per-step remediation attempts. Default 3.
	MaxStepRemediations int
	// MaxTotalRedesigns caps the run-wide redesign counter. Default 10.
	MaxTotalRedesigns int
	// MinStepInterval is the minimum delay between consecutive step
	// dispatches (skipped before the first step of a run). Default zero.
	MinStepInterval time.Duration
	// MaxTotalLoopIterations caps the run-wide loop-iteration counter.
	// Default 50.
	MaxTotalLoopIterations int
	// EnableFastPathIntentGeneration allows direct template rendering
	// when every placeholder in a step's intent_template is already
	// resolvable, skipping the intent-decision agent call. Default false.
	EnableFastPathIntentGeneration bool
	// DetectionMode selects the context-detection pass. Default
	// DetectionNone.
	DetectionMode DetectionMode
}

// DefaultConfig returns the spec.md §4.5 default tunables.
func DefaultConfig() Config {
	return Config{
		MaxStepRemediations:     3,
		MaxTotalRedesigns:       10,
		MinStepInterval:         0,
		MaxTotalLoopIterations: 50,
		DetectionMode:           DetectionNone,
	}
}
