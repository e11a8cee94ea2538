package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/template"
)

// runLoopInstruction executes a top-level Loop instruction's body
// repeatedly up to MaxIterations, honoring the While/Until condition
// timing and the three aggregation modes (spec.md §4.7). Nesting is
// restricted to a single level by the validator, so loop bodies here
// never themselves contain a Loop instruction.
func (o *Orchestrator) runLoopInstruction(ctx context.Context, rs *runState, idx int, loop strategy.Loop) (*Result, int, error) {
	aggregation := loop.Aggregation
	if aggregation == "" {
		aggregation = strategy.LastSuccess
	}
	loopType := loop.LoopType
	if loopType == "" {
		loopType = strategy.While
	}

	for iteration := 1; iteration <= loop.MaxIterations; iteration++ {
		if loopType == strategy.While && loop.ConditionTemplate != "" {
			truthy, terr := o.renderLoopCondition(rs, loop)
			if terr != nil {
				return o.abortResult(rs, terr), 0, nil
			}
			if !truthy {
				break
			}
		}

		total := rs.pacer.AddLoopIterations(1)
		if total > o.Cfg.MaxTotalLoopIterations {
			return o.abortResult(rs, &GlobalLoopBudgetExceededError{Limit: o.Cfg.MaxTotalLoopIterations}), 0, nil
		}

		terminated, finalOutput, terminal, regenerated := o.runLoopBody(ctx, rs, loop, iteration, aggregation)
		if terminal != nil {
			return terminal, 0, nil
		}
		if regenerated {
			// A body step escalated to FullRegenerate: the loop itself no
			// longer exists in the new strategy, restart from its top.
			return nil, 0, nil
		}
		if terminated {
			return o.successResult(rs, finalOutput), 0, nil
		}

		if loopType == strategy.Until && loop.ConditionTemplate != "" {
			truthy, terr := o.renderLoopCondition(rs, loop)
			if terr != nil {
				return o.abortResult(rs, terr), 0, nil
			}
			if !truthy {
				break
			}
		}

		if aggregation == strategy.FirstSuccess {
			break
		}
	}

	return nil, idx + 1, nil
}

func (o *Orchestrator) renderLoopCondition(rs *runState, loop strategy.Loop) (bool, error) {
	rendered, err := template.Render(loop.ConditionTemplate, rs.store.All())
	if err != nil {
		return false, fmt.Errorf("orchestrator: loop %q condition: %w", loop.LoopID, err)
	}
	return isTruthy(rendered), nil
}

// runLoopBody executes one iteration of loop.Body in order. A Terminate
// instruction inside the body exits both the loop and the surrounding
// strategy (spec.md §4.7). A step failure that escalates past Retry is
// always treated as FullRegenerate — tactical redesign has no well
// defined meaning for a strategy suffix that lives inside a loop body —
// documented in DESIGN.md.
func (o *Orchestrator) runLoopBody(ctx context.Context, rs *runState, loop strategy.Loop, iteration int, aggregation strategy.Aggregation) (terminated bool, finalOutput json.RawMessage, terminal *Result, regenerated bool) {
	for _, inst := range loop.Body {
		switch {
		case inst.Step != nil:
			step := *inst.Step
			res, abortOrRegenerate := o.runLoopBodyStep(ctx, rs, step)
			if abortOrRegenerate != nil {
				if abortOrRegenerate.regenerated {
					return false, nil, nil, true
				}
				return false, nil, abortOrRegenerate.terminal, false
			}
			if aggregation == strategy.CollectAll {
				iterKey := fmt.Sprintf("%s_iter_%d", step.StepID, iteration)
				rs.store.Set(iterKey, res.output)
			}

		case inst.Terminate != nil:
			truthy, out, terr := o.evaluateTerminate(rs.store, *inst.Terminate)
			if terr != nil {
				return false, nil, o.abortResult(rs, terr), false
			}
			if truthy {
				return true, out, nil, false
			}
		}
	}
	return false, nil, nil, false
}

// bodyEscalation reports what happened when a loop-body step's failure
// could not be resolved by Retry.
type bodyEscalation struct {
	terminal    *Result
	regenerated bool
}

// runLoopBodyStep executes one body step through the same remediation
// ladder as a top-level step, except TacticalRedesign is treated as
// FullRegenerate (see runLoopBody's doc comment).
func (o *Orchestrator) runLoopBodyStep(ctx context.Context, rs *runState, step strategy.Step) (stepResult, *bodyEscalation) {
	for {
		res := o.executeStep(ctx, rs, step)

		switch res.outcome {
		case outcomeCompleted:
			rs.stepsExecuted++
			return res, nil

		case outcomePaused:
			o.persist(ctx, rs, -1, step.StepID, res.pauseMessage, res.pausePayload)
			return res, &bodyEscalation{terminal: &Result{
				Status:             StatusPaused,
				StepsExecuted:      rs.stepsExecuted,
				RedesignsTriggered: rs.pacer.TotalRedesigns(),
				Journal:            rs.journal,
				PauseReason:        res.pauseMessage,
			}}

		case outcomeFailed:
			decision, terminal := o.decideRemediation(ctx, rs, -1, step.StepID, step.Description, res.failErr)
			if terminal != nil {
				return res, &bodyEscalation{terminal: terminal}
			}
			if decision == RemediationRetry {
				continue
			}
			// TacticalRedesign and FullRegenerate both collapse to a full
			// regenerate of the top-level strategy from this failure.
			terminalResult, _, err := o.applyFullRegenerate(ctx, rs, res.failErr)
			if err != nil {
				return res, &bodyEscalation{terminal: o.abortResult(rs, err)}
			}
			if terminalResult != nil {
				return res, &bodyEscalation{terminal: terminalResult}
			}
			return res, &bodyEscalation{regenerated: true}
		}
	}
}
