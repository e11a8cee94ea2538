package payload_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/payload"
)

func TestPrependSystemFIFOOrdering(t *testing.T) {
	params := gopter.DefaultTestParameters()
	props := gopter.NewProperties(params)

	props.Property("prepend_system always leads ToText", prop.ForAll(
		func(x, y string) bool {
			p := payload.FromText(payload.User("alice", "requester"), y)
			p = p.PrependSystem(x)
			return strings.HasPrefix(p.ToText(), x)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString(),
	))

	props.TestingRun(t)
}

func TestAppendAndAttach(t *testing.T) {
	p := payload.FromText(payload.User("bob", "reviewer"), "please check this")
	p = p.AppendMessage(payload.AgentSpeaker("writer", "drafter"), "done")
	p = p.AttachToLast(payload.LocalAttachment("/tmp/report.pdf"))

	require.Len(t, p.Messages, 2)
	last := p.Messages[1]
	require.Len(t, last.Parts, 2)
	assert.Equal(t, payload.PartKindAttachment, last.Parts[1].Kind)
	assert.Contains(t, p.ToText(), "report.pdf")
}

func TestLatestDetectedMergeIsAdditive(t *testing.T) {
	a := payload.DetectedContext{TaskType: "support", UserStates: []string{"confused"}, DetectedBy: []string{"rule"}}
	b := payload.DetectedContext{TaskHealth: payload.TaskHealthAtRisk, UserStates: []string{"frustrated"}, DetectedBy: []string{"agent"}}

	p := payload.Payload{}
	p = p.WithTimelineEntry(payload.TimelineEntry{Detected: &a})
	p = p.WithTimelineEntry(payload.TimelineEntry{Detected: &b})

	merged, ok := p.LatestDetected()
	require.True(t, ok)
	assert.Equal(t, "support", merged.TaskType)
	assert.Equal(t, payload.TaskHealthAtRisk, merged.TaskHealth)
	assert.ElementsMatch(t, []string{"confused", "frustrated"}, merged.UserStates)
	assert.ElementsMatch(t, []string{"rule", "agent"}, merged.DetectedBy)

	// originals must not have been mutated
	assert.Equal(t, []string{"confused"}, a.UserStates)
	assert.Equal(t, []string{"agent"}, b.DetectedBy)
}
