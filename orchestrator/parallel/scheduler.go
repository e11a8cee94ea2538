package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/ctxstore"
	"github.com/flowkit/agentflow/journal"
	"github.com/flowkit/agentflow/orchestrator"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/telemetry"
	"github.com/flowkit/agentflow/template"
)

// Scheduler is the parallel orchestrator (spec.md §4.6): dispatches a
// pre-validated, flat strategy's steps in dependency waves, bounded by an
// optional concurrency cap, with per-step timeouts and cooperative
// cancellation.
type Scheduler struct {
	Registry *agent.Registry
	Cfg      Config
	Saver    orchestrator.StateSaver

	Logger  telemetry.Logger
	Tracer  telemetry.Tracer
	Metrics telemetry.Metrics
}

// New builds a Scheduler dispatching through registry.
func New(registry *agent.Registry, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		Registry: registry,
		Cfg:      cfg,
		Logger:   telemetry.NewNoopLogger(),
		Tracer:   telemetry.NewNoopTracer(),
		Metrics:  telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithSaver configures the checkpoint persistence backend consulted on
// every HIL pause.
func WithSaver(saver orchestrator.StateSaver) Option {
	return func(s *Scheduler) { s.Saver = saver }
}

// WithTelemetry overrides the Logger/Tracer/Metrics implementations.
func WithTelemetry(logger telemetry.Logger, tracer telemetry.Tracer, metrics telemetry.Metrics) Option {
	return func(s *Scheduler) {
		s.Logger = logger
		s.Tracer = tracer
		s.Metrics = metrics
	}
}

// runState is the mutable working set for one Execute/Resume call: the
// context store, the DAG, and each step's current lifecycle status.
type runState struct {
	store   *ctxstore.Store
	strat   *strategy.StrategyMap
	graph   *dag
	journal *journal.ExecutionJournal

	mu      sync.Mutex
	status  map[string]journal.StepStatus
	records map[string]*journal.StepRecord
}

func (rs *runState) setStatus(id string, st journal.StepStatus) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.status[id] = st
}

func (rs *runState) getStatus(id string) journal.StepStatus {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.status[id]
}

func (rs *runState) setRecord(id string, rec *journal.StepRecord) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.records[id] = rec
}

// Execute runs strat's steps to completion, pause, or failure, seeding
// context with task. strat must already be a flat list of Step
// instructions (spec.md §4.6: "accepts a pre-validated strategy").
func (s *Scheduler) Execute(ctx context.Context, task string, strat *strategy.StrategyMap) (*orchestrator.Result, error) {
	store, err := ctxstore.New(task)
	if err != nil {
		return nil, fmt.Errorf("parallel: seeding context: %w", err)
	}
	graph, err := buildDAG(strat, nil)
	if err != nil {
		return nil, fmt.Errorf("parallel: building dependency graph: %w", err)
	}

	rs := &runState{
		store:   store,
		strat:   strat,
		graph:   graph,
		journal: journal.New(strat),
		status:  make(map[string]journal.StepStatus, len(graph.steps)),
		records: make(map[string]*journal.StepRecord, len(graph.steps)),
	}
	for _, st := range graph.steps {
		rs.status[st.StepID] = journal.Pending
	}

	return s.run(ctx, rs)
}

// Resume reloads a persisted State (with the previously paused step's
// status already flipped to Completed by the human reviewer, per spec.md
// §4.6's resume contract) and continues scheduling from the next eligible
// wave.
func (s *Scheduler) Resume(ctx context.Context, state *orchestrator.State) (*orchestrator.Result, error) {
	if state.Strategy == nil {
		return nil, fmt.Errorf("parallel: resumed state carries no strategy")
	}
	graph, err := buildDAG(state.Strategy, nil)
	if err != nil {
		return nil, fmt.Errorf("parallel: building dependency graph: %w", err)
	}

	jr := state.ExecutionManager.Journal
	if jr == nil {
		jr = journal.New(state.Strategy)
	}

	rs := &runState{
		store:   ctxstore.FromSnapshot(state.Context),
		strat:   state.Strategy,
		graph:   graph,
		journal: jr,
		status:  make(map[string]journal.StepStatus, len(graph.steps)),
		records: make(map[string]*journal.StepRecord, len(graph.steps)),
	}
	for _, st := range graph.steps {
		if saved, ok := state.ExecutionManager.States[st.StepID]; ok {
			rs.status[st.StepID] = saved.Status
		} else {
			rs.status[st.StepID] = journal.Pending
		}
	}

	return s.run(ctx, rs)
}

// run is the wave-scheduler loop shared by Execute and Resume: repeatedly
// dispatch every step whose producers have all completed, wait for the
// wave to drain, propagate Skipped to steps behind a failed producer, and
// stop on pause, cancellation, or completion.
func (s *Scheduler) run(ctx context.Context, rs *runState) (*orchestrator.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.cancelledResult(rs), nil
		}

		ready, pendingRemain := s.computeReadyWave(rs)
		if len(ready) == 0 {
			if !pendingRemain {
				return s.finalResult(rs), nil
			}
			// Nothing ready but steps remain: every remaining step sits
			// behind a Failed producer and was already marked Skipped by
			// computeReadyWave, so the next call will find no pending left.
			continue
		}

		paused := s.dispatchWave(ctx, rs, ready)
		if paused != nil {
			s.persist(ctx, rs, paused.StepID, paused.message, paused.pausedPayload)
			return &orchestrator.Result{
				Status:        orchestrator.StatusPaused,
				StepsExecuted: s.countCompleted(rs),
				Journal:       rs.journal,
				PauseReason:   paused.message,
			}, nil
		}
	}
}

// computeReadyWave returns every Pending step whose producers are all
// Completed, marking any Pending step behind a Failed or Skipped producer
// as Skipped in the process. pendingRemain reports whether any step is
// still Pending or Running after this pass.
func (s *Scheduler) computeReadyWave(rs *runState) (ready []strategy.Step, pendingRemain bool) {
	for _, st := range rs.graph.steps {
		status := rs.getStatus(st.StepID)
		if status != journal.Pending {
			if status == journal.Running {
				pendingRemain = true
			}
			continue
		}

		blocked := false
		for _, dep := range rs.graph.producers[st.StepID] {
			switch rs.getStatus(dep) {
			case journal.Completed:
				continue
			case journal.Failed, journal.Skipped:
				blocked = true
			default:
				pendingRemain = true
				blocked = true
			}
		}
		if blocked {
			if s.hasFailedOrSkippedProducer(rs, st.StepID) {
				rs.setStatus(st.StepID, journal.Skipped)
				rec := rs.journal.RecordRunning(st.StepID, st.Description, st.AssignedAgent, nowMs())
				rec.MarkSkipped(nowMs())
				rs.setRecord(st.StepID, rec)
			}
			continue
		}
		ready = append(ready, st)
	}
	return ready, pendingRemain
}

func (s *Scheduler) hasFailedOrSkippedProducer(rs *runState, stepID string) bool {
	for _, dep := range rs.graph.producers[stepID] {
		switch rs.getStatus(dep) {
		case journal.Failed, journal.Skipped:
			return true
		}
	}
	return false
}

type pauseSignal struct {
	StepID        string
	message       string
	pausedPayload payload.Payload
}

// dispatchWave runs every step in ready concurrently, bounded by
// Cfg.MaxConcurrency, and waits for all of them to resolve before
// returning. Each step's own agent call runs off the context store, but
// the store itself is mutated only after the wave barrier, serially, in
// step order (ctxstore.Store's writer is meant to be single-threaded
// between step executions, spec.md §5) — so no step in a wave ever
// observes a sibling's output, matching the DAG contract that same-wave
// steps have no dependency on one another.
//
// A non-nil return means one of them requested human approval; the
// remaining in-flight siblings are still allowed to finish (spec.md
// §4.6: "Concurrent siblings are allowed to complete before pause is
// finalized"), but no further waves are dispatched afterward.
func (s *Scheduler) dispatchWave(ctx context.Context, rs *runState, ready []strategy.Step) *pauseSignal {
	var sem chan struct{}
	if s.Cfg.MaxConcurrency > 0 {
		sem = make(chan struct{}, s.Cfg.MaxConcurrency)
	}

	var wg sync.WaitGroup
	results := make([]stepRunResult, len(ready))

	for i, st := range ready {
		rs.setStatus(st.StepID, journal.Running)
		wg.Add(1)
		go func(idx int, step strategy.Step) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[idx] = s.runStep(ctx, rs, step)
		}(i, st)
	}
	wg.Wait()

	var pause *pauseSignal
	for _, res := range results {
		if res.completed {
			rs.store.EnrichAfterStep(res.stepID, res.outputKey, res.output, res.prompt, res.hasPrompt)
			rs.setStatus(res.stepID, journal.Completed)
		}
		if res.pause != nil && pause == nil {
			pause = res.pause
		}
	}
	return pause
}

type stepRunResult struct {
	stepID    string
	completed bool
	output    json.RawMessage
	outputKey string
	prompt    string
	hasPrompt bool
	pause     *pauseSignal
}

// runStep dispatches a single step once: render its intent, look up its
// agent, run it under the configured per-step timeout, and record the
// outcome. Unlike the sequential orchestrator, there is no remediation
// ladder here (spec.md §4.6 has no remediation narrative): a failure is
// terminal for that step and cascades to Skipped dependents. A
// successful step's context-store enrichment is deferred to the caller,
// after the wave barrier.
func (s *Scheduler) runStep(ctx context.Context, rs *runState, step strategy.Step) stepRunResult {
	stepCtx := ctx
	var cancel context.CancelFunc
	if s.Cfg.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, s.Cfg.StepTimeout)
		defer cancel()
	}

	rec := rs.journal.RecordRunning(step.StepID, step.Description, step.AssignedAgent, nowMs())
	rs.setRecord(step.StepID, rec)

	intentText, err := template.Render(step.IntentTemplate, rs.store.All())
	if err != nil {
		rs.setStatus(step.StepID, journal.Failed)
		rec.MarkFailed(err.Error(), nowMs())
		return stepRunResult{stepID: step.StepID}
	}

	dispatched, ok := s.Registry.Lookup(step.AssignedAgent)
	if !ok {
		err := agent.CapabilityMismatch(step.AssignedAgent)
		rs.setStatus(step.StepID, journal.Failed)
		rec.MarkFailed(err.Error(), nowMs())
		return stepRunResult{stepID: step.StepID}
	}

	p := payload.FromText(payload.User("", ""), intentText)
	out, err := dispatched.ExecuteDynamic(stepCtx, p)
	if err != nil {
		rs.setStatus(step.StepID, journal.Failed)
		rec.MarkFailed(err.Error(), nowMs())
		return stepRunResult{stepID: step.StepID}
	}

	if out.RequiresApproval != nil {
		rs.setStatus(step.StepID, journal.PausedForApproval)
		rec.MarkPausedForApproval(nowMs())
		return stepRunResult{stepID: step.StepID, pause: &pauseSignal{
			StepID:        step.StepID,
			message:       out.RequiresApproval.MessageForHuman,
			pausedPayload: out.RequiresApproval.CurrentPayload,
		}}
	}

	rec.MarkCompleted(out.Value, step.OutputKey, nowMs())
	return stepRunResult{
		stepID:    step.StepID,
		completed: true,
		output:    out.Value,
		outputKey: step.OutputKey,
		prompt:    out.Prompt,
		hasPrompt: out.HasPrompt,
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func (s *Scheduler) countCompleted(rs *runState) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	n := 0
	for _, st := range rs.status {
		if st == journal.Completed {
			n++
		}
	}
	return n
}

// finalResult builds the terminal Result once no step is left Pending or
// Running: Failure if any step ended Failed (a cascading Skipped chain
// means the run could not reach its goal), Success otherwise.
func (s *Scheduler) finalResult(rs *runState) *orchestrator.Result {
	rs.mu.Lock()
	var failed []string
	for id, st := range rs.status {
		if st == journal.Failed {
			failed = append(failed, id)
		}
	}
	rs.mu.Unlock()

	if len(failed) > 0 {
		return &orchestrator.Result{
			Status:        orchestrator.StatusFailure,
			StepsExecuted: s.countCompleted(rs),
			ErrorMessage:  fmt.Sprintf("parallel: step(s) failed: %v", failed),
			Journal:       rs.journal,
		}
	}

	prev, _ := rs.store.Get("previous_output")
	return &orchestrator.Result{
		Status:        orchestrator.StatusSuccess,
		StepsExecuted: s.countCompleted(rs),
		FinalOutput:   prev,
		Journal:       rs.journal,
	}
}

func (s *Scheduler) cancelledResult(rs *runState) *orchestrator.Result {
	rs.mu.Lock()
	for id, st := range rs.status {
		if st == journal.Pending || st == journal.Running {
			rs.status[id] = journal.Failed
			if rec, ok := rs.records[id]; ok {
				rec.MarkFailed("cancelled", nowMs())
			}
		}
	}
	rs.mu.Unlock()
	return &orchestrator.Result{
		Status:        orchestrator.StatusFailure,
		StepsExecuted: s.countCompleted(rs),
		ErrorMessage:  "cancelled",
		Journal:       rs.journal,
	}
}

// persist saves an OrchestrationState checkpoint capturing every step's
// current status, for a human to edit the paused step to Completed and
// inject its approved output before calling Resume.
func (s *Scheduler) persist(ctx context.Context, rs *runState, pausedStepID, message string, pausedPayload payload.Payload) {
	if s.Saver == nil {
		return
	}

	states := map[string]orchestrator.StepState{}
	for _, rec := range rs.journal.Snapshot() {
		states[rec.StepID] = orchestrator.StepState{Status: rec.Status, Error: rec.Error}
	}
	var pausedRaw json.RawMessage
	if b, err := json.Marshal(pausedPayload); err == nil {
		pausedRaw = b
	}
	if st, ok := states[pausedStepID]; ok {
		st.PausedMessage = message
		st.PausedPayload = pausedRaw
		states[pausedStepID] = st
	}

	state := &orchestrator.State{
		Strategy: rs.strat,
		Context:  rs.store.All(),
		ExecutionManager: orchestrator.ExecutionManagerState{
			States:  states,
			Journal: rs.journal,
		},
		PausedStepID: pausedStepID,
	}

	if err := s.Saver.Save(ctx, state); err != nil {
		s.Logger.Error(ctx, "failed to persist parallel orchestration state", "error", err, "step_id", pausedStepID)
	}
}
