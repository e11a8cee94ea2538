package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
)

// IntentResolver wraps the internal "intent decision" agent consulted
// when the fast path is disabled or a step's intent_template has
// unresolvable placeholders (spec.md §4.5.1 step 2). It is handed the
// step and the current context snapshot and returns rendered intent text.
type IntentResolver struct {
	Agent agent.Agent[string]
}

// Resolve asks the intent-decision agent to produce the text to send to
// the step's assigned agent.
func (r IntentResolver) Resolve(ctx context.Context, step strategy.Step, contextSnapshot map[string]json.RawMessage) (string, error) {
	ctxJSON, _ := json.Marshal(contextSnapshot)
	text := fmt.Sprintf(
		"Step %q (assigned to %s) has intent template:\n%s\n\nExpected output: %s\n\nCurrent context:\n%s\n\nProduce the literal text to send to the assigned agent.",
		step.StepID, step.AssignedAgent, step.IntentTemplate, step.ExpectedOutput, string(ctxJSON),
	)
	out, approval, err := r.Agent.Execute(ctx, payload.FromText(payload.System(), text))
	if err != nil {
		return "", err
	}
	if approval != nil {
		return "", agent.New(agent.ErrorKindExecution, "intent resolver requested approval instead of producing intent text")
	}
	return out, nil
}
