package detect_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/detect"
	"github.com/flowkit/agentflow/payload"
)

func TestRuleBasedFlagsAtRiskOnRedesignCount(t *testing.T) {
	r := detect.NewRuleBased()
	dc, err := r.Detect(context.Background(), payload.EnvContext{RedesignCount: 3}, payload.Payload{})
	require.NoError(t, err)
	assert.Equal(t, payload.TaskHealthAtRisk, dc.TaskHealth)
}

func TestRuleBasedFlagsFrustratedOnConsecutiveFailures(t *testing.T) {
	r := detect.NewRuleBased()
	dc, err := r.Detect(context.Background(), payload.EnvContext{ConsecutiveFailures: 4}, payload.Payload{})
	require.NoError(t, err)
	assert.Contains(t, dc.UserStates, "frustrated")
}

func TestRuleBasedLaterRuleOverridesTaskHealth(t *testing.T) {
	r := detect.NewRuleBased()
	dc, err := r.Detect(context.Background(), payload.EnvContext{RedesignCount: 3, SuccessRate: 0.2}, payload.Payload{})
	require.NoError(t, err)
	assert.Equal(t, payload.TaskHealthOffTrack, dc.TaskHealth)
}

func TestRuleBasedLeavesTaskHealthUnsetWhenNoSignalsFire(t *testing.T) {
	r := detect.NewRuleBased()
	dc, err := r.Detect(context.Background(), payload.EnvContext{SuccessRate: 1.0}, payload.Payload{})
	require.NoError(t, err)
	assert.Equal(t, payload.TaskHealth(""), dc.TaskHealth)
}

type fakeDetector struct {
	name string
	out  payload.DetectedContext
}

func (f fakeDetector) Name() string { return f.name }
func (f fakeDetector) Detect(context.Context, payload.EnvContext, payload.Payload) (payload.DetectedContext, error) {
	return f.out, nil
}

func TestChainUnionsDetectedByInInsertionOrder(t *testing.T) {
	d1 := fakeDetector{name: "rules", out: payload.DetectedContext{TaskHealth: payload.TaskHealthAtRisk}}
	d2 := fakeDetector{name: "llm", out: payload.DetectedContext{TaskType: "research"}}

	dc, err := detect.Chain(context.Background(), payload.EnvContext{}, payload.Payload{}, d1, d2)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules", "llm"}, dc.DetectedBy)
	assert.Equal(t, payload.TaskHealthAtRisk, dc.TaskHealth)
	assert.Equal(t, "research", dc.TaskType)
}

type classifierAgent struct{ agent.Ident }

func (c classifierAgent) Execute(context.Context, payload.Payload) (string, *agent.ApprovalRequest, error) {
	return `{"task_type":"research","task_health":"at_risk","user_states":["frustrated"]}`, nil, nil
}
func (c classifierAgent) Expertise() agent.Expertise        { return agent.TextExpertise("classifies task state") }
func (c classifierAgent) Description() string               { return "" }
func (c classifierAgent) Capabilities() []payload.Capability { return nil }
func (c classifierAgent) Name() agent.Ident                  { return c.Ident }

func TestAgentBasedParsesClassifierOutput(t *testing.T) {
	d := detect.AgentBased{Classifier: classifierAgent{Ident: "classifier"}}
	dc, err := d.Detect(context.Background(), payload.EnvContext{}, payload.Payload{})
	require.NoError(t, err)
	assert.Equal(t, "research", dc.TaskType)
	assert.Equal(t, payload.TaskHealthAtRisk, dc.TaskHealth)
	assert.Contains(t, dc.UserStates, "frustrated")
}
