// Package journal implements the append-only per-run execution record
// described in spec.md §3: a StrategyMap snapshot plus an ordered list of
// StepRecords, one per execution attempt.
package journal

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/strategy"
)

// StepStatus is the lifecycle state of a single execution attempt.
type StepStatus string

const (
	Pending           StepStatus = "pending"
	Running           StepStatus = "running"
	Completed         StepStatus = "completed"
	Failed            StepStatus = "failed"
	Skipped           StepStatus = "skipped"
	PausedForApproval StepStatus = "paused_for_approval"
)

// StepRecord is one execution attempt's journal entry. A record is
// appended when an attempt begins (Running) and mutated in place as the
// attempt resolves; it is never removed, and the journal never appends a
// second record for the same attempt (spec.md §8 property 1).
type StepRecord struct {
	ID           string          `json:"id"`
	StepID       string          `json:"step_id"`
	Title        string          `json:"title"`
	Agent        agent.Ident     `json:"agent"`
	Status       StepStatus      `json:"status"`
	OutputKey    string          `json:"output_key,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	RecordedAtMs int64           `json:"recorded_at_ms"`
}

// MarkCompleted finalizes the record as Completed with output and, when
// non-empty, outputKey (spec.md §4.5.1 step 7).
func (r *StepRecord) MarkCompleted(output json.RawMessage, outputKey string, nowMs int64) {
	r.Status = Completed
	r.Output = output
	r.OutputKey = outputKey
	r.RecordedAtMs = nowMs
}

// MarkFailed finalizes the record as Failed with the given error text
// (spec.md §4.5.1 step 8).
func (r *StepRecord) MarkFailed(errMsg string, nowMs int64) {
	r.Status = Failed
	r.Error = errMsg
	r.RecordedAtMs = nowMs
}

// MarkSkipped finalizes the record as Skipped (spec.md §4.6: a step whose
// dependency failed).
func (r *StepRecord) MarkSkipped(nowMs int64) {
	r.Status = Skipped
	r.RecordedAtMs = nowMs
}

// MarkPausedForApproval finalizes the record as PausedForApproval
// (spec.md §4.5.1 step 6, the HIL pause path).
func (r *StepRecord) MarkPausedForApproval(nowMs int64) {
	r.Status = PausedForApproval
	r.RecordedAtMs = nowMs
}

// ExecutionJournal is the full per-run record: a snapshot of the strategy
// that produced it plus the ordered StepRecords appended during
// execution. A new run always creates a fresh journal (spec.md §3
// Lifecycles).
type ExecutionJournal struct {
	mu       sync.Mutex
	Strategy *strategy.StrategyMap `json:"strategy"`
	Steps    []*StepRecord         `json:"steps"`
}

// New creates a fresh ExecutionJournal snapshotting snapshot (typically
// the validated strategy about to execute).
func New(snapshot *strategy.StrategyMap) *ExecutionJournal {
	return &ExecutionJournal{Strategy: snapshot}
}

// RecordRunning appends a new StepRecord in the Running state for the
// given step and returns it so the caller can finalize it in place once
// the attempt resolves.
func (j *ExecutionJournal) RecordRunning(stepID, title string, agentName agent.Ident, nowMs int64) *StepRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := &StepRecord{
		ID:           uuid.NewString(),
		StepID:       stepID,
		Title:        title,
		Agent:        agentName,
		Status:       Running,
		RecordedAtMs: nowMs,
	}
	j.Steps = append(j.Steps, rec)
	return rec
}

// Snapshot returns a shallow copy of the current step records, safe for a
// caller to range over without holding the journal's lock.
func (j *ExecutionJournal) Snapshot() []*StepRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*StepRecord, len(j.Steps))
	copy(out, j.Steps)
	return out
}

// MarshalJSON implements json.Marshaler explicitly because mu (a
// sync.Mutex) must never be part of the encoding and the default
// reflection-based encoder would otherwise need an exported field to see
// Strategy/Steps in a struct that also embeds a mutex correctly; this
// keeps the wire shape stable regardless of internal field ordering.
func (j *ExecutionJournal) MarshalJSON() ([]byte, error) {
	type wire struct {
		Strategy *strategy.StrategyMap `json:"strategy"`
		Steps    []*StepRecord         `json:"steps"`
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.Marshal(wire{Strategy: j.Strategy, Steps: j.Steps})
}

// UnmarshalJSON implements json.Unmarshaler to match MarshalJSON's
// explicit wire shape.
func (j *ExecutionJournal) UnmarshalJSON(data []byte) error {
	type wire struct {
		Strategy *strategy.StrategyMap `json:"strategy"`
		Steps    []*StepRecord         `json:"steps"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	j.Strategy = w.Strategy
	j.Steps = w.Steps
	return nil
}
