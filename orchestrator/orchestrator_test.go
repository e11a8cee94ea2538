package orchestrator_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/journal"
	"github.com/flowkit/agentflow/orchestrator"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
)

// fixedAgent always succeeds, echoing back a fixed string value.
type fixedAgent struct {
	name  agent.Ident
	value string
}

func (f fixedAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	return f.value, nil, nil
}
func (f fixedAgent) Expertise() agent.Expertise         { return agent.TextExpertise("returns a fixed value") }
func (f fixedAgent) Description() string                { return "" }
func (f fixedAgent) Capabilities() []payload.Capability { return nil }
func (f fixedAgent) Name() agent.Ident                  { return f.name }

// failingThenSucceedingAgent fails its first N calls, then succeeds.
type failingThenSucceedingAgent struct {
	name      agent.Ident
	failTimes int
	calls     int
	value     string
}

func (f *failingThenSucceedingAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return "", nil, agent.Process(500, "transient failure", false, 0)
	}
	return f.value, nil, nil
}
func (f *failingThenSucceedingAgent) Expertise() agent.Expertise         { return agent.TextExpertise("flaky") }
func (f *failingThenSucceedingAgent) Description() string                { return "" }
func (f *failingThenSucceedingAgent) Capabilities() []payload.Capability { return nil }
func (f *failingThenSucceedingAgent) Name() agent.Ident                  { return f.name }

// approvalAgent always requests human approval.
type approvalAgent struct {
	name    agent.Ident
	message string
}

func (a approvalAgent) Execute(_ context.Context, p payload.Payload) (string, *agent.ApprovalRequest, error) {
	return "", &agent.ApprovalRequest{MessageForHuman: a.message, CurrentPayload: p}, nil
}
func (a approvalAgent) Expertise() agent.Expertise         { return agent.TextExpertise("always pauses") }
func (a approvalAgent) Description() string                { return "" }
func (a approvalAgent) Capabilities() []payload.Capability { return nil }
func (a approvalAgent) Name() agent.Ident                  { return a.name }

// countingAgent returns "more" for its first two calls and "" afterward,
// so an Until-loop condition templated on its output stays truthy for two
// iterations then renders falsy on the third.
type countingAgent struct {
	name  agent.Ident
	calls int
}

func (c *countingAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	c.calls++
	if c.calls < 3 {
		return "more", nil, nil
	}
	return "", nil, nil
}
func (c *countingAgent) Expertise() agent.Expertise         { return agent.TextExpertise("counts calls") }
func (c *countingAgent) Description() string                { return "" }
func (c *countingAgent) Capabilities() []payload.Capability { return nil }
func (c *countingAgent) Name() agent.Ident                  { return c.name }

// decisionAgent wraps a plain Go func as an agent.Agent[RemediationDecision],
// the shape Remediator needs, without requiring a real LLM call in tests.
type decisionAgent struct {
	decide func(context.Context, payload.Payload) (orchestrator.RemediationDecision, error)
}

func (d decisionAgent) Execute(ctx context.Context, p payload.Payload) (orchestrator.RemediationDecision, *agent.ApprovalRequest, error) {
	dec, err := d.decide(ctx, p)
	return dec, nil, err
}
func (d decisionAgent) Expertise() agent.Expertise         { return agent.TextExpertise("decides remediation") }
func (d decisionAgent) Description() string                { return "" }
func (d decisionAgent) Capabilities() []payload.Capability { return nil }
func (d decisionAgent) Name() agent.Ident                  { return "remediator" }

func alwaysRetryRemediator(calls *int) *orchestrator.Remediator {
	return &orchestrator.Remediator{Agent: decisionAgent{decide: func(context.Context, payload.Payload) (orchestrator.RemediationDecision, error) {
		*calls++
		return orchestrator.RemediationDecision{Decision: orchestrator.RemediationRetry}, nil
	}}}
}

func alwaysTacticalRedesignRemediator() *orchestrator.Remediator {
	return &orchestrator.Remediator{Agent: decisionAgent{decide: func(context.Context, payload.Payload) (orchestrator.RemediationDecision, error) {
		return orchestrator.RemediationDecision{Decision: orchestrator.RemediationTacticalRedesign}, nil
	}}}
}

// strategyAgent wraps a plain Go func as an agent.Agent[strategy.StrategyMap],
// the shape StrategyGenerator needs, without requiring a real LLM call in
// tests.
type strategyAgent struct {
	produce func(context.Context, payload.Payload) (strategy.StrategyMap, error)
}

func (s strategyAgent) Execute(ctx context.Context, p payload.Payload) (strategy.StrategyMap, *agent.ApprovalRequest, error) {
	out, err := s.produce(ctx, p)
	return out, nil, err
}
func (s strategyAgent) Expertise() agent.Expertise         { return agent.TextExpertise("generates strategies") }
func (s strategyAgent) Description() string                { return "" }
func (s strategyAgent) Capabilities() []payload.Capability { return nil }
func (s strategyAgent) Name() agent.Ident                  { return "strategist" }

type fakeSaver struct {
	saved *orchestrator.State
}

func (s *fakeSaver) Save(_ context.Context, state *orchestrator.State) error {
	s.saved = state
	return nil
}

// schemaCheckedOutput is a struct agent.Output with a declared JSON Schema,
// used to exercise the orchestrator's optional structured-output
// validation hook (SPEC_FULL.md §4.1).
type schemaCheckedOutput struct {
	Name string `json:"name"`
}

const schemaCheckedOutputSchema = `{
  "type": "object",
  "properties": {"name": {"type": "string"}},
  "required": ["name"]
}`

// schemaAgent returns a fixed schemaCheckedOutput value (or a raw override
// when nonConforming is set) and declares the schema above.
type schemaAgent struct {
	name          agent.Ident
	value         string
	nonConforming bool
}

func (s schemaAgent) Execute(context.Context, payload.Payload) (schemaCheckedOutput, *agent.ApprovalRequest, error) {
	return schemaCheckedOutput{Name: s.value}, nil, nil
}
func (s schemaAgent) Expertise() agent.Expertise         { return agent.TextExpertise("returns a schema-checked struct") }
func (s schemaAgent) Description() string                { return "" }
func (s schemaAgent) Capabilities() []payload.Capability { return nil }
func (s schemaAgent) Name() agent.Ident                  { return s.name }
func (s schemaAgent) OutputSchema() (json.RawMessage, bool) {
	if s.nonConforming {
		return json.RawMessage(`{"type": "object", "required": ["missing_field"]}`), true
	}
	return json.RawMessage(schemaCheckedOutputSchema), true
}

func newRegistry(t *testing.T, agents ...agent.DynamicAgent) *agent.Registry {
	t.Helper()
	r := agent.NewRegistry()
	for _, a := range agents {
		require.NoError(t, r.Register(a))
	}
	return r
}

func withFastPath(cfg orchestrator.Config) orchestrator.Config {
	cfg.EnableFastPathIntentGeneration = true
	return cfg
}

// TestExecuteLinearStrategySucceeds covers scenario S1: a trivial linear
// two-step strategy runs to completion, each step's output lands in
// context, and the run reports success with no redesigns.
func TestExecuteLinearStrategySucceeds(t *testing.T) {
	registry := newRegistry(t,
		agent.Dynamic[string](fixedAgent{name: "greeter", value: "hello"}),
		agent.Dynamic[string](fixedAgent{name: "closer", value: "goodbye"}),
	)

	strat := strategy.New("greet and close").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "greeter", IntentTemplate: "say hi to {{ task }}", OutputKey: "greeting"}).
		AddStep(strategy.Step{StepID: "s2", AssignedAgent: "closer", IntentTemplate: "close using {{ greeting }}"})

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
	)

	res, err := o.Execute(context.Background(), "world")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.StepsExecuted)
	assert.Equal(t, 0, res.RedesignsTriggered)
	require.Len(t, res.Journal.Snapshot(), 2)
	assert.Equal(t, journal.Completed, res.Journal.Snapshot()[0].Status)
	assert.Equal(t, journal.Completed, res.Journal.Snapshot()[1].Status)
}

// TestRetryRecoversFromTransientFailure covers scenario S2: a step that
// fails once is retried by the remediation agent and the run still
// succeeds.
func TestRetryRecoversFromTransientFailure(t *testing.T) {
	flaky := &failingThenSucceedingAgent{name: "flaky", failTimes: 1, value: "recovered"}
	registry := newRegistry(t, agent.Dynamic[string](flaky))

	strat := strategy.New("retry once").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "flaky", IntentTemplate: "do the thing"})

	var calls int
	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
		orchestrator.WithRemediator(alwaysRetryRemediator(&calls)),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.StepsExecuted)
	assert.Equal(t, 1, calls)
}

// TestMaxStepRemediationsExceededAborts covers scenario S4: a step that
// never succeeds trips max_step_remediations and the run aborts with a
// failure status rather than retrying forever.
func TestMaxStepRemediationsExceededAborts(t *testing.T) {
	alwaysFails := &failingThenSucceedingAgent{name: "broken", failTimes: 1000, value: "never"}
	registry := newRegistry(t, agent.Dynamic[string](alwaysFails))

	strat := strategy.New("always fails").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "broken", IntentTemplate: "try anyway"})

	cfg := withFastPath(orchestrator.DefaultConfig())
	cfg.MaxStepRemediations = 2

	var calls int
	o := orchestrator.New(registry, "blueprint", cfg,
		orchestrator.WithStrategy(strat),
		orchestrator.WithRemediator(alwaysRetryRemediator(&calls)),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusFailure, res.Status)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.LessOrEqual(t, alwaysFails.calls, cfg.MaxStepRemediations+1)
}

// TestHILPauseAndResume covers scenario S5: a step requesting approval
// pauses the run and persists a checkpoint via the configured Saver; Resume
// continues execution from the cursor the caller advances to once the
// human has approved.
func TestHILPauseAndResume(t *testing.T) {
	registry := newRegistry(t,
		agent.Dynamic[string](approvalAgent{name: "gatekeeper", message: "please confirm"}),
		agent.Dynamic[string](fixedAgent{name: "closer", value: "done"}),
	)

	strat := strategy.New("needs approval").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "gatekeeper", IntentTemplate: "ask for confirmation"}).
		AddStep(strategy.Step{StepID: "s2", AssignedAgent: "closer", IntentTemplate: "wrap up"})

	saver := &fakeSaver{}
	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
		orchestrator.WithSaver(saver),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusPaused, res.Status)
	assert.Equal(t, "please confirm", res.PauseReason)
	require.NotNil(t, saver.saved)
	assert.Equal(t, 0, saver.saved.CursorIndex)

	resumed := *saver.saved
	resumed.CursorIndex = 1

	res2, err := o.Resume(context.Background(), &resumed)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res2.Status)
	assert.Equal(t, 1, res2.StepsExecuted)
}

// TestLoopWithConditionStopsWhenFalsy covers scenario S6: an Until loop
// re-executes its body while the condition template renders truthy, stops
// once it renders falsy, and the strategy continues past the loop.
func TestLoopWithConditionStopsWhenFalsy(t *testing.T) {
	counter := &countingAgent{name: "counter"}
	registry := newRegistry(t,
		agent.Dynamic[string](counter),
		agent.Dynamic[string](fixedAgent{name: "closer", value: "done"}),
	)

	strat := strategy.New("loop then close").
		AddLoop(strategy.Loop{
			LoopID:            "l1",
			MaxIterations:     5,
			LoopType:          strategy.Until,
			ConditionTemplate: "{{ step_count_output }}",
			Body: []strategy.Instruction{
				{Step: &strategy.Step{StepID: "count", AssignedAgent: "counter", IntentTemplate: "increment"}},
			},
		}).
		AddStep(strategy.Step{StepID: "close", AssignedAgent: "closer", IntentTemplate: "wrap up"})

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	// three loop iterations plus the closing step
	assert.Equal(t, 4, res.StepsExecuted)
	assert.Equal(t, 3, counter.calls)
}

// TestTacticalRedesignRewritesSuffixAfterFailure covers scenario S3:
// a step failure whose remediation decision is tactical_redesign asks the
// strategy generator to rewrite the remaining suffix, then resumes from
// the same index against the replacement strategy, preserving the failed
// attempt's journal record.
func TestTacticalRedesignRewritesSuffixAfterFailure(t *testing.T) {
	registry := newRegistry(t,
		agent.Dynamic[string](&failingThenSucceedingAgent{name: "broken", failTimes: 1000, value: "never"}),
		agent.Dynamic[string](fixedAgent{name: "rescuer", value: "rescued"}),
	)

	strat := strategy.New("needs a redesign").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "broken", IntentTemplate: "try the broken path"})

	var redesignCalls int
	generator := &orchestrator.StrategyGenerator{Agent: strategyAgent{produce: func(context.Context, payload.Payload) (strategy.StrategyMap, error) {
		redesignCalls++
		replacement := strategy.New("needs a redesign").
			AddStep(strategy.Step{StepID: "s1-rescue", AssignedAgent: "rescuer", IntentTemplate: "take the rescue path", OutputKey: "rescued"})
		return *replacement, nil
	}}}

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
		orchestrator.WithRemediator(alwaysTacticalRedesignRemediator()),
		orchestrator.WithGenerator(generator),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Equal(t, 1, redesignCalls)
	assert.Equal(t, 1, res.RedesignsTriggered)
	assert.Equal(t, 1, res.StepsExecuted)
	require.Len(t, res.Journal.Snapshot(), 2)
	assert.Equal(t, journal.Failed, res.Journal.Snapshot()[0].Status)
	assert.Equal(t, "s1", res.Journal.Snapshot()[0].StepID)
	assert.Equal(t, journal.Completed, res.Journal.Snapshot()[1].Status)
	assert.Equal(t, "s1-rescue", res.Journal.Snapshot()[1].StepID)
}

// TestSchemaConformingOutputSucceeds covers SPEC_FULL.md §4.1's optional
// structured-output validation hook: a step whose agent declares a schema
// and returns conforming output completes normally.
func TestSchemaConformingOutputSucceeds(t *testing.T) {
	registry := newRegistry(t, agent.Dynamic[schemaCheckedOutput](schemaAgent{name: "namer", value: "ok"}))

	strat := strategy.New("name something").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "namer", IntentTemplate: "name it", OutputKey: "named"})

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Equal(t, journal.Completed, res.Journal.Snapshot()[0].Status)
}

// TestSchemaViolationFailsStep covers the same hook's failure path: output
// that violates the declared schema is reported as a normal step failure,
// feeding the existing remediation ladder rather than bypassing it.
func TestSchemaViolationFailsStep(t *testing.T) {
	registry := newRegistry(t, agent.Dynamic[schemaCheckedOutput](schemaAgent{name: "namer", value: "ok", nonConforming: true}))

	strat := strategy.New("name something").
		AddStep(strategy.Step{StepID: "s1", AssignedAgent: "namer", IntentTemplate: "name it", OutputKey: "named"})

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusFailure, res.Status)
	assert.Equal(t, journal.Failed, res.Journal.Snapshot()[0].Status)
}
