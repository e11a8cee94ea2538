package orchestrator

import (
	"context"
	"fmt"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
)

// RemediationDecisionKind is the remediation agent's three-way choice
// (spec.md §4.5.2).
type RemediationDecisionKind string

const (
	// RemediationRetry re-runs the same step.
	RemediationRetry RemediationDecisionKind = "retry"
	// RemediationTacticalRedesign asks the strategy generator to rewrite
	// the remaining suffix, preserving completed steps' outputs.
	RemediationTacticalRedesign RemediationDecisionKind = "tactical_redesign"
	// RemediationFullRegenerate discards all pending instructions and
	// starts from a fresh strategy.
	RemediationFullRegenerate RemediationDecisionKind = "full_regenerate"
)

// RemediationDecision is the remediation agent's JSON output shape.
type RemediationDecision struct {
	Decision RemediationDecisionKind `json:"decision"`
	Reason   string                  `json:"reason,omitempty"`
}

// Remediator wraps the internal remediation-decision agent consulted on
// every step failure (spec.md §4.5.2), after the per-step and
// global-redesign ceilings have already been checked.
type Remediator struct {
	Agent agent.Agent[RemediationDecision]
}

// Decide asks the remediation agent how to respond to stepID's failure.
func (r Remediator) Decide(ctx context.Context, stepID, stepDescription, errText string) (RemediationDecision, error) {
	text := fmt.Sprintf(
		"Step %q (%s) failed with: %s\n\nDecide how to proceed: \"retry\" the same step, \"tactical_redesign\" the remaining strategy, or \"full_regenerate\" from scratch. Respond with a JSON object {\"decision\": ..., \"reason\": ...}.",
		stepID, stepDescription, errText,
	)
	out, approval, err := r.Agent.Execute(ctx, payload.FromText(payload.System(), text))
	if err != nil {
		return RemediationDecision{}, err
	}
	if approval != nil {
		return RemediationDecision{}, agent.New(agent.ErrorKindExecution, "remediation agent requested approval instead of deciding")
	}
	return out, nil
}
