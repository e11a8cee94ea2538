package ctxstore_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/ctxstore"
)

type concept struct {
	Type string `json:"__type"`
	Name string `json:"name"`
}

func TestNewSeedsTask(t *testing.T) {
	s, err := ctxstore.New("summarize this article")
	require.NoError(t, err)

	raw, ok := s.Get("task")
	require.True(t, ok)
	var task string
	require.NoError(t, json.Unmarshal(raw, &task))
	assert.Equal(t, "summarize this article", task)
}

func TestEnrichAfterStepSetsReservedKeys(t *testing.T) {
	s, err := ctxstore.New("t")
	require.NoError(t, err)

	output, _ := json.Marshal("draft text")
	s.EnrichAfterStep("s1", "draft", output, "Draft: draft text", true)

	for _, key := range []string{"step_s1_output", "step_s1_output_prompt", "previous_output", "previous_output_prompt", "draft", "draft_prompt"} {
		_, ok := s.Get(key)
		assert.True(t, ok, "expected key %q to be set", key)
	}

	raw, _ := s.Get("draft")
	var got string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "draft text", got)
}

func TestEnrichAfterStepWithoutOutputKeyOrPrompt(t *testing.T) {
	s, err := ctxstore.New("t")
	require.NoError(t, err)

	output, _ := json.Marshal(map[string]any{"x": 1})
	s.EnrichAfterStep("s1", "", output, "", false)

	_, ok := s.Get("step_s1_output")
	assert.True(t, ok)
	_, ok = s.Get("step_s1_output_prompt")
	assert.False(t, ok)
	_, ok = s.Get("")
	assert.False(t, ok)
}

func TestGetTypedReturnsMostRecentMatch(t *testing.T) {
	s, err := ctxstore.New("t")
	require.NoError(t, err)

	c1, _ := json.Marshal(concept{Type: "Concept", Name: "first"})
	c2, _ := json.Marshal(concept{Type: "Concept", Name: "second"})
	s.EnrichAfterStep("s1", "", c1, "", false)
	s.EnrichAfterStep("s2", "", c2, "", false)

	got, ok := ctxstore.GetTyped[concept](s, "Concept")
	require.True(t, ok)
	assert.Equal(t, "second", got.Name)
}

func TestGetTypedMissesOnUnknownType(t *testing.T) {
	s, err := ctxstore.New("t")
	require.NoError(t, err)

	_, ok := ctxstore.GetTyped[concept](s, "Nonexistent")
	assert.False(t, ok)
}

func TestFromSnapshotRebuildsTypedIndex(t *testing.T) {
	s, err := ctxstore.New("t")
	require.NoError(t, err)
	c1, _ := json.Marshal(concept{Type: "Concept", Name: "only"})
	s.EnrichAfterStep("s1", "", c1, "", false)

	restored := ctxstore.FromSnapshot(s.All())
	got, ok := ctxstore.GetTyped[concept](restored, "Concept")
	require.True(t, ok)
	assert.Equal(t, "only", got.Name)
}

func TestAllReturnsIndependentCopy(t *testing.T) {
	s, err := ctxstore.New("t")
	require.NoError(t, err)

	snapshot := s.All()
	output, _ := json.Marshal("later")
	s.EnrichAfterStep("s1", "", output, "", false)

	_, ok := snapshot["step_s1_output"]
	assert.False(t, ok, "mutating the store after All() must not affect the returned snapshot")
}
