// Package state defines the pluggable checkpoint persistence contract the
// sequential and parallel orchestrators depend on (SPEC_FULL.md's
// "(added) Persistence backends"): a Store saves and loads an
// orchestrator.State keyed by run id. Concrete backends live in the
// filestate, redisstate, and mongostate subpackages; orchestrator code
// never imports a concrete backend directly.
package state

import (
	"context"

	"github.com/flowkit/agentflow/orchestrator"
)

// Store persists and retrieves OrchestrationState checkpoints by run id.
type Store interface {
	Save(ctx context.Context, id string, s *orchestrator.State) error
	Load(ctx context.Context, id string) (*orchestrator.State, error)
}

// Bound adapts a Store plus a fixed run id into an orchestrator.StateSaver,
// the narrower interface the orchestrator and parallel.Scheduler actually
// consume (spec.md §4.5.1 step 6 persists without threading a run id
// through every call site).
type Bound struct {
	Store Store
	RunID string
}

// Bind returns a Bound StateSaver for the given run id.
func Bind(store Store, runID string) Bound {
	return Bound{Store: store, RunID: runID}
}

// Save implements orchestrator.StateSaver.
func (b Bound) Save(ctx context.Context, s *orchestrator.State) error {
	return b.Store.Save(ctx, b.RunID, s)
}

// Load retrieves the checkpoint previously saved under RunID.
func (b Bound) Load(ctx context.Context) (*orchestrator.State, error) {
	return b.Store.Load(ctx, b.RunID)
}
