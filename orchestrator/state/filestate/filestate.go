// Package filestate implements state.Store as one JSON file per run id
// under a configured directory, the default persistence backend
// (spec.md §4.5.1 step 6: "persist ... to the configured save path").
package filestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowkit/agentflow/orchestrator"
)

// Store writes each run's checkpoint to <Dir>/<id>.json.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir. dir is created on first Save if it
// does not already exist.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Save implements state.Store.
func (s *Store) Save(_ context.Context, id string, st *orchestrator.State) error {
	if id == "" {
		return errors.New("filestate: run id is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("filestate: creating %s: %w", s.Dir, err)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("filestate: encoding state: %w", err)
	}
	tmp := s.path(id) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("filestate: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path(id))
}

// Load implements state.Store.
func (s *Store) Load(_ context.Context, id string) (*orchestrator.State, error) {
	if id == "" {
		return nil, errors.New("filestate: run id is required")
	}
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("filestate: reading %s: %w", s.path(id), err)
	}
	var st orchestrator.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("filestate: decoding state: %w", err)
	}
	return &st, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}
