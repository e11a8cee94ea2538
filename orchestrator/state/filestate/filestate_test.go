package filestate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/orchestrator"
	"github.com/flowkit/agentflow/orchestrator/state/filestate"
	"github.com/flowkit/agentflow/strategy"
)

func TestSaveAndLoadRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	store := filestate.New(dir)

	orig := &orchestrator.State{
		Strategy:     strategy.New("demo"),
		PausedStepID: "s1",
		CursorIndex:  2,
	}

	require.NoError(t, store.Save(context.Background(), "run-1", orig))

	loaded, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, orig.PausedStepID, loaded.PausedStepID)
	assert.Equal(t, orig.CursorIndex, loaded.CursorIndex)
	assert.Equal(t, orig.Strategy.Goal, loaded.Strategy.Goal)
}

func TestLoadMissingRunReturnsError(t *testing.T) {
	store := filestate.New(t.TempDir())
	_, err := store.Load(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestSaveRequiresRunID(t *testing.T) {
	store := filestate.New(t.TempDir())
	err := store.Save(context.Background(), "", &orchestrator.State{})
	assert.Error(t, err)
}
