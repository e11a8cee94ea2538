package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/ctxstore"
	"github.com/flowkit/agentflow/detect"
	"github.com/flowkit/agentflow/journal"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/template"
)

// stepOutcome discriminates executeStep's three possible results (spec.md
// §4.5.1 steps 6-8).
type stepOutcome int

const (
	outcomeCompleted stepOutcome = iota
	outcomePaused
	outcomeFailed
)

// stepResult is executeStep's return value. Exactly the fields matching
// outcome are populated.
type stepResult struct {
	outcome      stepOutcome
	output       json.RawMessage
	pauseMessage string
	pausePayload payload.Payload
	failErr      error
}

func nowMs() int64 { return time.Now().UnixMilli() }

// executeStep runs a single step end to end: pacing, intent generation,
// context detection, agent dispatch, HIL handling, and success
// enrichment (spec.md §4.5.1 steps 1-7). Failure handling (step 8, the
// remediation ladder) is the caller's responsibility; executeStep only
// reports the failure.
func (o *Orchestrator) executeStep(ctx context.Context, rs *runState, step strategy.Step) stepResult {
	if rs.firstStepDone && o.Cfg.MinStepInterval > 0 {
		if err := rs.pacer.Wait(ctx); err != nil {
			return stepResult{outcome: outcomeFailed, failErr: fmt.Errorf("orchestrator: pacing wait: %w", err)}
		}
	}
	rs.firstStepDone = true

	intentText, err := o.resolveIntent(ctx, step, rs.store)
	if err != nil {
		rec := rs.journal.RecordRunning(step.StepID, step.Description, step.AssignedAgent, nowMs())
		rec.MarkFailed(err.Error(), nowMs())
		return stepResult{outcome: outcomeFailed, failErr: err}
	}

	p := payload.FromText(payload.User("", ""), intentText)
	if o.Cfg.DetectionMode != DetectionNone && len(o.Detectors) > 0 {
		env := o.buildEnvContext(rs)
		if detected, derr := detect.Chain(ctx, env, p, o.Detectors...); derr == nil {
			p = p.WithTimelineEntry(payload.TimelineEntry{Env: env, Detected: &detected})
		} else {
			o.Logger.Warn(ctx, "context detection failed, proceeding undetected", "error", derr)
		}
	}

	dispatched, ok := o.Registry.Lookup(step.AssignedAgent)
	if !ok {
		err := agent.CapabilityMismatch(step.AssignedAgent)
		rec := rs.journal.RecordRunning(step.StepID, step.Description, step.AssignedAgent, nowMs())
		rec.MarkFailed(err.Error(), nowMs())
		return stepResult{outcome: outcomeFailed, failErr: err}
	}

	rec := rs.journal.RecordRunning(step.StepID, step.Description, step.AssignedAgent, nowMs())

	out, err := dispatched.ExecuteDynamic(ctx, p)
	if err != nil {
		rec.MarkFailed(err.Error(), nowMs())
		return stepResult{outcome: outcomeFailed, failErr: err}
	}

	if out.RequiresApproval != nil {
		rec.MarkPausedForApproval(nowMs())
		return stepResult{
			outcome:      outcomePaused,
			pauseMessage: out.RequiresApproval.MessageForHuman,
			pausePayload: out.RequiresApproval.CurrentPayload,
		}
	}

	if sp, ok := dispatched.(agent.SchemaProvider); ok {
		if schema, hasSchema := sp.OutputSchema(); hasSchema {
			if err := agent.ValidateOutput(schema, out.Value); err != nil {
				rec.MarkFailed(err.Error(), nowMs())
				return stepResult{outcome: outcomeFailed, failErr: err}
			}
		}
	}

	rs.store.EnrichAfterStep(step.StepID, step.OutputKey, out.Value, out.Prompt, out.HasPrompt)
	rec.MarkCompleted(out.Value, step.OutputKey, nowMs())
	return stepResult{outcome: outcomeCompleted, output: out.Value}
}

// resolveIntent renders step.IntentTemplate directly when the fast path
// is enabled and every placeholder is already resolvable, otherwise
// delegates to the intent-decision agent (spec.md §4.5.1 step 2).
func (o *Orchestrator) resolveIntent(ctx context.Context, step strategy.Step, store *ctxstore.Store) (string, error) {
	snapshot := store.All()
	if o.Cfg.EnableFastPathIntentGeneration && allPlaceholdersResolvable(step.IntentTemplate, snapshot) {
		return template.Render(step.IntentTemplate, snapshot)
	}
	if o.Intent == nil {
		return "", fmt.Errorf("orchestrator: step %q requires the intent-decision agent but none is configured", step.StepID)
	}
	return o.Intent.Resolve(ctx, step, snapshot)
}

func allPlaceholdersResolvable(tmplStr string, snapshot map[string]json.RawMessage) bool {
	for _, ph := range template.Placeholders(tmplStr) {
		if _, ok := snapshot[ph]; !ok {
			return false
		}
	}
	return true
}

// buildEnvContext derives an EnvContext snapshot from the run's counters
// and journal (spec.md §4.5.1 step 3).
func (o *Orchestrator) buildEnvContext(rs *runState) payload.EnvContext {
	env := payload.EnvContext{
		FailureCountByStep: map[string]int{},
		RedesignCount:      rs.pacer.TotalRedesigns(),
	}
	records := rs.journal.Snapshot()
	env.TotalSteps = len(records)

	var completed, failed, consecutiveFailures int
	for _, r := range records {
		switch r.Status {
		case journal.Completed:
			completed++
			consecutiveFailures = 0
		case journal.Failed:
			failed++
			consecutiveFailures++
			env.FailureCountByStep[r.StepID]++
		}
	}
	env.ConsecutiveFailures = consecutiveFailures
	if total := completed + failed; total > 0 {
		env.SuccessRate = float64(completed) / float64(total)
	} else {
		env.SuccessRate = 1.0
	}
	return env
}

// persist saves an OrchestrationState checkpoint via the configured
// Saver, capturing enough to resume from the paused step (spec.md
// §4.5.1 step 6).
func (o *Orchestrator) persist(ctx context.Context, rs *runState, cursorIndex int, pausedStepID, message string, pausedPayload payload.Payload) {
	if o.Saver == nil {
		return
	}

	states := map[string]StepState{}
	for _, rec := range rs.journal.Snapshot() {
		states[rec.StepID] = StepState{Status: rec.Status, Error: rec.Error}
	}
	var pausedRaw json.RawMessage
	if b, err := json.Marshal(pausedPayload); err == nil {
		pausedRaw = b
	}
	if s, ok := states[pausedStepID]; ok {
		s.PausedMessage = message
		s.PausedPayload = pausedRaw
		states[pausedStepID] = s
	}

	state := &State{
		Strategy: rs.strategy,
		Context:  rs.store.All(),
		ExecutionManager: ExecutionManagerState{
			States: states,
			Counters: Counters{
				StepRemediations:    snapshotStepRemediations(rs),
				TotalRedesigns:      rs.pacer.TotalRedesigns(),
				TotalLoopIterations: rs.pacer.TotalLoopIterations(),
			},
			Journal:            rs.journal,
			RedesignsTriggered: rs.pacer.TotalRedesigns(),
		},
		CursorIndex:  cursorIndex,
		PausedStepID: pausedStepID,
	}

	if err := o.Saver.Save(ctx, state); err != nil {
		o.Logger.Error(ctx, "failed to persist orchestration state", "error", err, "step_id", pausedStepID)
	}
}

// snapshotStepRemediations reconstructs the per-step remediation counter
// map from the journal, since Pacer does not expose its internal map
// directly (only per-key reads).
func snapshotStepRemediations(rs *runState) map[string]int {
	out := map[string]int{}
	for _, rec := range rs.journal.Snapshot() {
		if rec.StepID == "" {
			continue
		}
		if n := rs.pacer.StepRemediationCount(rec.StepID); n > 0 {
			out[rec.StepID] = n
		}
	}
	return out
}
