package journal_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/journal"
	"github.com/flowkit/agentflow/strategy"
)

func TestRecordRunningThenMarkCompletedIsOneRecord(t *testing.T) {
	j := journal.New(strategy.New("goal"))
	rec := j.RecordRunning("s1", "do the thing", "writer", 100)
	rec.MarkCompleted(json.RawMessage(`"done"`), "result", 150)

	steps := j.Snapshot()
	require.Len(t, steps, 1)
	assert.Equal(t, journal.Completed, steps[0].Status)
	assert.Equal(t, "result", steps[0].OutputKey)
}

func TestSeparateAttemptsProduceSeparateRecords(t *testing.T) {
	j := journal.New(strategy.New("goal"))
	first := j.RecordRunning("s1", "attempt 1", "writer", 100)
	first.MarkFailed("boom", 110)
	second := j.RecordRunning("s1", "attempt 2 (retry)", "writer", 120)
	second.MarkCompleted(json.RawMessage(`"ok"`), "", 130)

	steps := j.Snapshot()
	require.Len(t, steps, 2)
	assert.Equal(t, journal.Failed, steps[0].Status)
	assert.Equal(t, journal.Completed, steps[1].Status)
}

func TestExecutionJournalJSONRoundTrip(t *testing.T) {
	s := strategy.New("goal")
	s.AddStep(strategy.Step{StepID: "s1", AssignedAgent: "writer", IntentTemplate: "{{ task }}"})
	j := journal.New(s)
	rec := j.RecordRunning("s1", "write", "writer", 100)
	rec.MarkCompleted(json.RawMessage(`"hi"`), "", 110)

	raw, err := json.Marshal(j)
	require.NoError(t, err)

	restored := &journal.ExecutionJournal{}
	require.NoError(t, json.Unmarshal(raw, restored))
	require.Len(t, restored.Steps, 1)
	assert.Equal(t, journal.Completed, restored.Steps[0].Status)
	assert.Equal(t, "goal", restored.Strategy.Goal)
}
