package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/ctxstore"
	"github.com/flowkit/agentflow/detect"
	"github.com/flowkit/agentflow/journal"
	"github.com/flowkit/agentflow/pacer"
	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/telemetry"
)

// Orchestrator is the sequential execution engine (spec.md §4.5): single
// step at a time, cooperative suspension at every agent/LLM call
// boundary, a context store it owns exclusively, and a journal it alone
// writes to (spec.md §5).
type Orchestrator struct {
	Registry   *agent.Registry
	Blueprint  string
	Cfg        Config
	Generator  *StrategyGenerator
	Intent     *IntentResolver
	Remediator *Remediator
	Detectors  []detect.Detector
	Saver      StateSaver

	Logger  telemetry.Logger
	Tracer  telemetry.Tracer
	Metrics telemetry.Metrics

	strategy *strategy.StrategyMap
}

// StateSaver persists an OrchestrationState checkpoint, consulted on
// every HIL pause (spec.md §4.5.1 step 6). A nil Saver means pauses are
// reported but never written to disk.
type StateSaver interface {
	Save(ctx context.Context, s *State) error
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithStrategy pre-sets a validated strategy, skipping the §4.5 step 1
// strategy-generation call entirely.
func WithStrategy(s *strategy.StrategyMap) Option {
	return func(o *Orchestrator) { o.strategy = s }
}

// WithGenerator configures the internal strategy-generation agent,
// required unless a strategy is pre-set via WithStrategy.
func WithGenerator(g *StrategyGenerator) Option {
	return func(o *Orchestrator) { o.Generator = g }
}

// WithIntentResolver configures the internal intent-decision agent,
// required whenever EnableFastPathIntentGeneration is false or a step's
// placeholders are not all resolvable from context.
func WithIntentResolver(r *IntentResolver) Option {
	return func(o *Orchestrator) { o.Intent = r }
}

// WithRemediator configures the internal remediation-decision agent,
// consulted on every step failure.
func WithRemediator(r *Remediator) Option {
	return func(o *Orchestrator) { o.Remediator = r }
}

// WithDetectors configures the context-detection chain run before each
// step dispatch when Config.DetectionMode is not DetectionNone.
func WithDetectors(detectors ...detect.Detector) Option {
	return func(o *Orchestrator) { o.Detectors = detectors }
}

// WithSaver configures the checkpoint persistence backend consulted on
// every HIL pause.
func WithSaver(s StateSaver) Option {
	return func(o *Orchestrator) { o.Saver = s }
}

// WithTelemetry overrides the Logger/Tracer/Metrics implementations,
// which otherwise default to no-ops.
func WithTelemetry(logger telemetry.Logger, tracer telemetry.Tracer, metrics telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.Logger = logger
		o.Tracer = tracer
		o.Metrics = metrics
	}
}

// New builds an Orchestrator dispatching through registry, using
// blueprint as the strategy-generation prompt's fixed preamble.
func New(registry *agent.Registry, blueprint string, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Registry:  registry,
		Blueprint: blueprint,
		Cfg:       cfg,
		Logger:    telemetry.NewNoopLogger(),
		Tracer:    telemetry.NewNoopTracer(),
		Metrics:   telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runState is the mutable working set threaded through a single
// execute/resume call: the context store, the live strategy (which
// tactical redesign and full regenerate may replace wholesale), the
// journal, and the pacer tracking remediation/redesign/loop-iteration
// counters for this run.
type runState struct {
	store         *ctxstore.Store
	strategy      *strategy.StrategyMap
	journal       *journal.ExecutionJournal
	pacer         *pacer.Pacer
	stepsExecuted int
	firstStepDone bool
}

// Execute runs strategy generation (unless a strategy was pre-set) and
// then the §4.5 main loop from scratch, seeding context with task.
func (o *Orchestrator) Execute(ctx context.Context, task string) (*Result, error) {
	store, err := ctxstore.New(task)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: seeding context: %w", err)
	}

	strat := o.strategy
	if strat == nil {
		if o.Generator == nil {
			return nil, fmt.Errorf("orchestrator: no strategy set and no StrategyGenerator configured")
		}
		generated, err := o.Generator.Generate(ctx, o.Blueprint, task, o.Registry.ListForGenerator())
		if err != nil {
			return nil, fmt.Errorf("orchestrator: strategy generation: %w", err)
		}
		strat = generated
	} else if _, err := strategy.Validate(strat, strategy.ValidateOptions{}); err != nil {
		return nil, fmt.Errorf("orchestrator: preset strategy failed validation: %w", err)
	}

	rs := &runState{
		store:    store,
		strategy: strat,
		journal:  journal.New(strat),
		pacer:    pacer.New(o.Cfg.MinStepInterval),
	}
	return o.runFrom(ctx, rs, 0)
}

// Resume reloads a persisted OrchestrationState and continues execution
// from the next eligible instruction (spec.md §4.5 step 1's "If
// resuming, reload journal, context, strategy, counters").
func (o *Orchestrator) Resume(ctx context.Context, state *State) (*Result, error) {
	if state.Strategy == nil {
		return nil, fmt.Errorf("orchestrator: resumed state carries no strategy")
	}
	if _, err := strategy.Validate(state.Strategy, strategy.ValidateOptions{}); err != nil {
		return nil, fmt.Errorf("orchestrator: resumed strategy failed validation: %w", err)
	}

	p := pacer.New(o.Cfg.MinStepInterval)
	p.RestoreCounters(state.ExecutionManager.Counters.StepRemediations, state.ExecutionManager.Counters.TotalRedesigns, state.ExecutionManager.Counters.TotalLoopIterations)

	jr := state.ExecutionManager.Journal
	if jr == nil {
		jr = journal.New(state.Strategy)
	}

	rs := &runState{
		store:         state.newContextStore(),
		strategy:      state.Strategy,
		journal:       jr,
		pacer:         p,
		firstStepDone: true,
	}
	return o.runFrom(ctx, rs, state.CursorIndex)
}

// runFrom is the shared §4.5 "execute(task) main loop" body: iterate the
// live strategy's instruction list from cursor until exhausted or a
// terminal Result is produced by a step, loop, or Terminate instruction.
func (o *Orchestrator) runFrom(ctx context.Context, rs *runState, cursor int) (*Result, error) {
	for cursor < len(rs.strategy.Elements) {
		if err := ctx.Err(); err != nil {
			return o.cancelledResult(rs), nil
		}

		inst := rs.strategy.Elements[cursor]
		switch {
		case inst.Step != nil:
			result, next, err := o.runStepWithRemediation(ctx, rs, cursor, *inst.Step)
			if err != nil {
				return nil, err
			}
			if result != nil {
				return result, nil
			}
			cursor = next

		case inst.Loop != nil:
			result, next, err := o.runLoopInstruction(ctx, rs, cursor, *inst.Loop)
			if err != nil {
				return nil, err
			}
			if result != nil {
				return result, nil
			}
			cursor = next

		case inst.Terminate != nil:
			truthy, finalOutput, terr := o.evaluateTerminate(rs.store, *inst.Terminate)
			if terr != nil {
				return o.abortResult(rs, terr), nil
			}
			if truthy {
				return o.successResult(rs, finalOutput), nil
			}
			cursor++

		default:
			return o.abortResult(rs, fmt.Errorf("orchestrator: empty instruction at index %d", cursor)), nil
		}
	}

	prev, _ := rs.store.Get("previous_output")
	return o.successResult(rs, prev), nil
}

func (o *Orchestrator) successResult(rs *runState, finalOutput json.RawMessage) *Result {
	return &Result{
		Status:             StatusSuccess,
		StepsExecuted:      rs.stepsExecuted,
		RedesignsTriggered: rs.pacer.TotalRedesigns(),
		FinalOutput:        finalOutput,
		Journal:            rs.journal,
	}
}

func (o *Orchestrator) abortResult(rs *runState, err error) *Result {
	return &Result{
		Status:             StatusFailure,
		StepsExecuted:      rs.stepsExecuted,
		RedesignsTriggered: rs.pacer.TotalRedesigns(),
		ErrorMessage:       err.Error(),
		Journal:            rs.journal,
	}
}

func (o *Orchestrator) cancelledResult(rs *runState) *Result {
	return o.abortResult(rs, ErrCancelled)
}
