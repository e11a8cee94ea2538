// Package ctxstore implements the orchestrator's context store: a keyed
// JSON mapping with the reserved key conventions from spec.md §3 (task,
// previous_output, step_{id}_output[_prompt], output_key aliases) and a
// TypeMarker index for retrieving outputs by declared type rather than by
// producer.
package ctxstore

import (
	"encoding/json"
	"fmt"
	"sync"
)

const typeMarkerField = "__type"

// typedEntry is one recorded value under the TypeMarker index, kept in
// insertion order so GetTyped can return the most recently stored match.
type typedEntry struct {
	typeName string
	raw      json.RawMessage
}

// Store is a keyed String -> JsonValue mapping owned exclusively by the
// orchestrator instance and mutated only between step executions
// (spec.md §5's shared-resource policy). Every read and write holds an
// internal mutex; the parallel orchestrator still applies a wave's writes
// one at a time after the wave completes.
type Store struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
	typed  []typedEntry
}

// New builds a Store seeded with the initial task under the reserved
// "task" key.
func New(task string) (*Store, error) {
	s := &Store{values: make(map[string]json.RawMessage)}
	raw, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	s.values["task"] = raw
	return s, nil
}

// Set stores raw under key directly, for external context the caller
// injects before execution (spec.md §3 invariant 3).
func (s *Store) Set(key string, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, raw)
}

func (s *Store) setLocked(key string, raw json.RawMessage) {
	s.values[key] = raw
	s.indexTypedLocked(raw)
}

// FromSnapshot rebuilds a Store from a previously captured All() map, used
// when resuming from a persisted OrchestrationState. The TypeMarker index
// is rebuilt from the snapshot's values; insertion order among same-typed
// entries is not preserved across a save/load cycle, only the most recent
// logical value per key.
func FromSnapshot(values map[string]json.RawMessage) *Store {
	s := &Store{values: make(map[string]json.RawMessage, len(values))}
	for k, v := range values {
		s.values[k] = v
		s.indexTypedLocked(v)
	}
	return s
}

// Get returns the raw JSON value stored under key, or ok=false.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.values[key]
	return raw, ok
}

// All returns a shallow copy of the store's full key set, the form the
// template resolver renders against as a single root mapping (spec.md
// §4.4) and the orchestrator checkpoint persists.
func (s *Store) All() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// StepOutputKey returns the reserved context key for a step's raw output,
// "step_{step_id}_output".
func StepOutputKey(stepID string) string {
	return fmt.Sprintf("step_%s_output", stepID)
}

// EnrichAfterStep applies the context enrichment rules in spec.md §4.4
// following a step's successful completion: it records the step's output
// under its reserved key (and prompt rendering, when available), under
// the optional output_key alias, sets previous_output, and indexes the
// value by TypeMarker when applicable.
func (s *Store) EnrichAfterStep(stepID string, outputKey string, output json.RawMessage, prompt string, hasPrompt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepKey := StepOutputKey(stepID)
	s.setLocked(stepKey, output)
	s.setLocked("previous_output", output)

	if hasPrompt {
		promptRaw, _ := json.Marshal(prompt)
		s.values[stepKey+"_prompt"] = promptRaw
		s.values["previous_output_prompt"] = promptRaw
	}

	if outputKey != "" {
		s.setLocked(outputKey, output)
		if hasPrompt {
			promptRaw, _ := json.Marshal(prompt)
			s.values[outputKey+"_prompt"] = promptRaw
		}
	}
}

// indexTypedLocked inspects raw for a top-level "__type" string field and,
// when present, appends it to the TypeMarker index. Callers must hold
// s.mu for writing.
func (s *Store) indexTypedLocked(raw json.RawMessage) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return
	}
	typeRaw, ok := probe[typeMarkerField]
	if !ok {
		return
	}
	var typeName string
	if err := json.Unmarshal(typeRaw, &typeName); err != nil || typeName == "" {
		return
	}
	s.typed = append(s.typed, typedEntry{typeName: typeName, raw: raw})
}

// GetTyped looks up the most recently stored value whose "__type" field
// equals typeName and deserializes it into a new T (spec.md §4.4's
// "get_typed_output<T>()").
func GetTyped[T any](s *Store, typeName string) (T, bool) {
	var zero T
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.typed) - 1; i >= 0; i-- {
		if s.typed[i].typeName != typeName {
			continue
		}
		var out T
		if err := json.Unmarshal(s.typed[i].raw, &out); err != nil {
			return zero, false
		}
		return out, true
	}
	return zero, false
}
