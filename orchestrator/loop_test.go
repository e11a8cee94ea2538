package orchestrator_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/orchestrator"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
)

// sequenceAgent returns "v1", "v2", "v3", ... across successive calls, used
// to distinguish which iteration produced which stored value.
type sequenceAgent struct {
	name  agent.Ident
	calls int
}

func (s *sequenceAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	s.calls++
	return fmt.Sprintf("v%d", s.calls), nil, nil
}
func (s *sequenceAgent) Expertise() agent.Expertise         { return agent.TextExpertise("returns a new value each call") }
func (s *sequenceAgent) Description() string                { return "" }
func (s *sequenceAgent) Capabilities() []payload.Capability { return nil }
func (s *sequenceAgent) Name() agent.Ident                  { return s.name }

// TestLoopCollectAllStoresEachIteration verifies that a CollectAll loop
// stores every iteration's body output under a {step_id}_iter_{n} key in
// addition to the unsuffixed last-iteration key, surfaced here through an
// approval pause's persisted context snapshot.
func TestLoopCollectAllStoresEachIteration(t *testing.T) {
	counter := &sequenceAgent{name: "counter"}
	registry := newRegistry(t,
		agent.Dynamic[string](counter),
		agent.Dynamic[string](approvalAgent{name: "gatekeeper", message: "confirm"}),
	)

	strat := strategy.New("collect all").
		AddLoop(strategy.Loop{
			LoopID:        "l1",
			MaxIterations: 3,
			Aggregation:   strategy.CollectAll,
			Body: []strategy.Instruction{
				{Step: &strategy.Step{StepID: "count", AssignedAgent: "counter", IntentTemplate: "{{ task }}"}},
			},
		}).
		AddStep(strategy.Step{StepID: "approve", AssignedAgent: "gatekeeper", IntentTemplate: "{{ step_count_output }}"})

	saver := &fakeSaver{}
	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
		orchestrator.WithSaver(saver),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusPaused, res.Status)
	assert.Equal(t, 3, res.StepsExecuted)
	require.NotNil(t, saver.saved)

	assert.Equal(t, `"v1"`, string(saver.saved.Context["count_iter_1"]))
	assert.Equal(t, `"v2"`, string(saver.saved.Context["count_iter_2"]))
	assert.Equal(t, `"v3"`, string(saver.saved.Context["count_iter_3"]))
	assert.Equal(t, `"v3"`, string(saver.saved.Context["step_count_output"]))
}

// TestLoopFirstSuccessStopsAfterOneIteration verifies FirstSuccess exits
// the loop immediately after the first body completion, regardless of
// max_iterations, distinguishing it from LastSuccess.
func TestLoopFirstSuccessStopsAfterOneIteration(t *testing.T) {
	counter := &sequenceAgent{name: "counter"}
	registry := newRegistry(t,
		agent.Dynamic[string](counter),
		agent.Dynamic[string](fixedAgent{name: "closer", value: "done"}),
	)

	strat := strategy.New("first success").
		AddLoop(strategy.Loop{
			LoopID:        "l1",
			MaxIterations: 5,
			Aggregation:   strategy.FirstSuccess,
			Body: []strategy.Instruction{
				{Step: &strategy.Step{StepID: "count", AssignedAgent: "counter", IntentTemplate: "{{ task }}"}},
			},
		}).
		AddStep(strategy.Step{StepID: "close", AssignedAgent: "closer", IntentTemplate: "wrap up"})

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 2, res.StepsExecuted)
}

// TestLoopBodyTerminateExitsStrategy verifies that a Terminate instruction
// inside a loop body exits both the loop and the surrounding strategy,
// skipping any instructions that follow the loop.
func TestLoopBodyTerminateExitsStrategy(t *testing.T) {
	counter := &falsyThenTruthyAgent{name: "counter"}
	var unreachedCalls int
	unreached := agent.Dynamic[string](trackingAgent{name: "unreached", calls: &unreachedCalls})

	registry := newRegistry(t, agent.Dynamic[string](counter), unreached)

	strat := strategy.New("terminate mid loop").
		AddLoop(strategy.Loop{
			LoopID:        "l1",
			MaxIterations: 5,
			Aggregation:   strategy.LastSuccess,
			Body: []strategy.Instruction{
				{Step: &strategy.Step{StepID: "count", AssignedAgent: "counter", IntentTemplate: "{{ task }}"}},
				{Terminate: &strategy.Terminate{TerminateID: "stop", ConditionTemplate: "{{ step_count_output }}"}},
			},
		}).
		AddStep(strategy.Step{StepID: "unreached", AssignedAgent: "unreached", IntentTemplate: "{{ task }}"})

	o := orchestrator.New(registry, "blueprint", withFastPath(orchestrator.DefaultConfig()),
		orchestrator.WithStrategy(strat),
	)

	res, err := o.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSuccess, res.Status)
	assert.Equal(t, 2, counter.calls)
	assert.Equal(t, 0, unreachedCalls)
}

// falsyThenTruthyAgent returns "" on its first call and "yes" afterward,
// so a condition template referencing its output is falsy for exactly one
// iteration before turning truthy.
type falsyThenTruthyAgent struct {
	name  agent.Ident
	calls int
}

func (a *falsyThenTruthyAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	a.calls++
	if a.calls == 1 {
		return "", nil, nil
	}
	return "yes", nil, nil
}
func (a *falsyThenTruthyAgent) Expertise() agent.Expertise         { return agent.TextExpertise("falsy then truthy") }
func (a *falsyThenTruthyAgent) Description() string                { return "" }
func (a *falsyThenTruthyAgent) Capabilities() []payload.Capability { return nil }
func (a *falsyThenTruthyAgent) Name() agent.Ident                  { return a.name }

// trackingAgent records how many times it was called, for asserting an
// instruction was never reached.
type trackingAgent struct {
	name  agent.Ident
	calls *int
}

func (a trackingAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	*a.calls++
	return "unexpected", nil, nil
}
func (a trackingAgent) Expertise() agent.Expertise         { return agent.TextExpertise("should not run") }
func (a trackingAgent) Description() string                { return "" }
func (a trackingAgent) Capabilities() []payload.Capability { return nil }
func (a trackingAgent) Name() agent.Ident                  { return a.name }
