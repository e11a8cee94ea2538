package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowkit/agentflow/ctxstore"
	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/template"
)

// runStepWithRemediation executes the step at idx, looping through the
// three-stage remediation ladder (spec.md §4.5.2) on failure until the
// step completes, pauses for approval, or a ceiling/decision ends the
// run. It returns either a terminal *Result (stop), or the cursor to
// continue from.
func (o *Orchestrator) runStepWithRemediation(ctx context.Context, rs *runState, idx int, step strategy.Step) (*Result, int, error) {
	for {
		res := o.executeStep(ctx, rs, step)

		switch res.outcome {
		case outcomeCompleted:
			rs.stepsExecuted++
			return nil, idx + 1, nil

		case outcomePaused:
			o.persist(ctx, rs, idx, step.StepID, res.pauseMessage, res.pausePayload)
			return &Result{
				Status:             StatusPaused,
				StepsExecuted:      rs.stepsExecuted,
				RedesignsTriggered: rs.pacer.TotalRedesigns(),
				Journal:            rs.journal,
				PauseReason:        res.pauseMessage,
			}, 0, nil

		case outcomeFailed:
			decision, terminal := o.decideRemediation(ctx, rs, idx, step.StepID, step.Description, res.failErr)
			if terminal != nil {
				return terminal, 0, nil
			}
			switch decision {
			case RemediationRetry:
				continue
			case RemediationTacticalRedesign:
				return o.applyTacticalRedesign(ctx, rs, idx, res.failErr)
			case RemediationFullRegenerate:
				return o.applyFullRegenerate(ctx, rs, res.failErr)
			}
		}
	}
}

// decideRemediation increments the per-step and global redesign counters
// (spec.md §4.5.2's "On a step failure, increment the step's remediation
// counter and the global redesign counter"), checks both ceilings, and —
// if neither is tripped — consults the remediation agent. A non-nil
// terminal return means the caller must stop the run with that Result.
func (o *Orchestrator) decideRemediation(ctx context.Context, rs *runState, idx int, stepID, stepDescription string, failErr error) (RemediationDecisionKind, *Result) {
	stepCount := rs.pacer.IncStepRemediation(stepID)
	if stepCount >= o.Cfg.MaxStepRemediations {
		return "", o.abortResult(rs, &MaxStepRemediationsExceededError{StepIndex: idx, StepID: stepID, Limit: o.Cfg.MaxStepRemediations})
	}

	totalRedesigns := rs.pacer.IncTotalRedesigns()
	if totalRedesigns >= o.Cfg.MaxTotalRedesigns {
		return "", o.abortResult(rs, &MaxTotalRedesignsExceededError{Limit: o.Cfg.MaxTotalRedesigns})
	}

	if o.Remediator == nil {
		return "", o.abortResult(rs, failErr)
	}
	decision, err := o.Remediator.Decide(ctx, stepID, stepDescription, failErr.Error())
	if err != nil {
		return "", o.abortResult(rs, fmt.Errorf("orchestrator: remediation decision: %w", err))
	}
	switch decision.Decision {
	case RemediationRetry, RemediationTacticalRedesign, RemediationFullRegenerate:
		return decision.Decision, nil
	default:
		return "", o.abortResult(rs, fmt.Errorf("orchestrator: remediation agent returned unknown decision %q", decision.Decision))
	}
}

// applyTacticalRedesign asks the strategy generator for a strategy that
// keeps elements before idx unchanged and rewrites the suffix, then
// resumes from idx — now pointing at the first rewritten instruction
// (spec.md §4.5.2 TacticalRedesign).
func (o *Orchestrator) applyTacticalRedesign(ctx context.Context, rs *runState, idx int, failErr error) (*Result, int, error) {
	if o.Generator == nil {
		return o.abortResult(rs, fmt.Errorf("orchestrator: tactical redesign requested but no StrategyGenerator is configured")), 0, nil
	}
	newStrategy, err := o.Generator.Redesign(ctx, o.Blueprint, rs.strategy, idx, failErr.Error(), o.Registry.ListForGenerator())
	if err != nil {
		return o.abortResult(rs, fmt.Errorf("orchestrator: tactical redesign: %w", err)), 0, nil
	}
	rs.strategy = newStrategy
	rs.journal.Strategy = newStrategy
	return nil, idx, nil
}

// applyFullRegenerate discards all pending instructions, generates a
// fresh strategy from the original blueprint plus a failure summary,
// clears per-step remediation counters (keeping the global redesign
// counter), and restarts the cursor at 0 (spec.md §4.5.2 FullRegenerate).
func (o *Orchestrator) applyFullRegenerate(ctx context.Context, rs *runState, failErr error) (*Result, int, error) {
	if o.Generator == nil {
		return o.abortResult(rs, fmt.Errorf("orchestrator: full regenerate requested but no StrategyGenerator is configured")), 0, nil
	}
	taskRaw, _ := rs.store.Get("task")
	var task string
	_ = json.Unmarshal(taskRaw, &task)

	newStrategy, err := o.Generator.Regenerate(ctx, o.Blueprint, task, failErr.Error(), o.Registry.ListForGenerator())
	if err != nil {
		return o.abortResult(rs, fmt.Errorf("orchestrator: full regenerate: %w", err)), 0, nil
	}
	rs.strategy = newStrategy
	rs.journal.Strategy = newStrategy
	rs.pacer.ResetStepRemediations()
	return nil, 0, nil
}

// evaluateTerminate renders a Terminate instruction's condition_template
// (absent means always truthy), and on truthy renders final_output_template
// (or falls back to previous_output) for the run's final output (spec.md
// §4.5 step 3).
func (o *Orchestrator) evaluateTerminate(store *ctxstore.Store, t strategy.Terminate) (truthy bool, finalOutput json.RawMessage, err error) {
	if t.ConditionTemplate == "" {
		truthy = true
	} else {
		rendered, rerr := template.Render(t.ConditionTemplate, store.All())
		if rerr != nil {
			return false, nil, fmt.Errorf("orchestrator: terminate %q condition: %w", t.TerminateID, rerr)
		}
		truthy = isTruthy(rendered)
	}
	if !truthy {
		return false, nil, nil
	}

	if t.FinalOutputTemplate != "" {
		rendered, rerr := template.Render(t.FinalOutputTemplate, store.All())
		if rerr != nil {
			return true, nil, fmt.Errorf("orchestrator: terminate %q final_output_template: %w", t.TerminateID, rerr)
		}
		raw, _ := json.Marshal(rendered)
		return true, raw, nil
	}

	prev, _ := store.Get("previous_output")
	return true, prev, nil
}

// isTruthy implements spec.md §4.5 step 3's truthiness rule: "truthy
// (non-empty, non-'false', non-'0', non-'null')".
func isTruthy(rendered string) bool {
	switch strings.TrimSpace(strings.ToLower(rendered)) {
	case "", "false", "0", "null":
		return false
	default:
		return true
	}
}
