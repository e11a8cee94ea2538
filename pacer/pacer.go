// Package pacer implements the orchestrator's inter-step delay and
// cost/redesign ceiling bookkeeping (spec.md §2's "Rate-limit pacer &
// cost limits" component).
package pacer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces min_step_interval between consecutive steps and tracks
// the per-step remediation and global redesign counters the three-stage
// remediation ladder (spec.md §4.5.2) checks against its ceilings.
type Pacer struct {
	limiter *rate.Limiter

	mu                  sync.Mutex
	stepRemediations    map[string]int
	totalRedesigns      int
	totalLoopIterations int
}

// New builds a Pacer enforcing at least interval between calls to Wait.
// An interval of zero disables pacing (every Wait returns immediately),
// matching spec.md §4.5's "min_step_interval (default zero)". The
// orchestrator itself skips the call before the first step of a run
// (spec.md §4.5.1 step 1's "if not the first step").
func New(interval time.Duration) *Pacer {
	p := &Pacer{stepRemediations: make(map[string]int)}
	if interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return p
}

// Wait blocks until min_step_interval has elapsed since the previous
// call, or returns immediately if pacing is disabled or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// IncStepRemediation increments stepID's remediation counter and returns
// the new value, for comparison against max_step_remediations.
func (p *Pacer) IncStepRemediation(stepID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepRemediations[stepID]++
	return p.stepRemediations[stepID]
}

// StepRemediationCount returns stepID's current remediation counter
// without incrementing it.
func (p *Pacer) StepRemediationCount(stepID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stepRemediations[stepID]
}

// ResetStepRemediations clears all per-step remediation counters, used by
// FullRegenerate which "clears per-step counters (but keeps global
// redesign counter)" (spec.md §4.5.2).
func (p *Pacer) ResetStepRemediations() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepRemediations = make(map[string]int)
}

// IncTotalRedesigns increments and returns the global redesign counter,
// for comparison against max_total_redesigns.
func (p *Pacer) IncTotalRedesigns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalRedesigns++
	return p.totalRedesigns
}

// TotalRedesigns returns the current global redesign counter.
func (p *Pacer) TotalRedesigns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalRedesigns
}

// AddLoopIterations increments the monotonic global loop-iteration
// counter by n and returns the new total, for comparison against
// max_total_loop_iterations (spec.md §4.7's global budget).
func (p *Pacer) AddLoopIterations(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalLoopIterations += n
	return p.totalLoopIterations
}

// TotalLoopIterations returns the current global loop-iteration counter.
func (p *Pacer) TotalLoopIterations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalLoopIterations
}

// RestoreCounters seeds a freshly constructed Pacer's counters from a
// persisted OrchestrationState checkpoint, so a resumed run's ceilings
// are checked against the totals accumulated before the pause rather than
// starting over at zero.
func (p *Pacer) RestoreCounters(stepRemediations map[string]int, totalRedesigns, totalLoopIterations int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepRemediations = make(map[string]int, len(stepRemediations))
	for k, v := range stepRemediations {
		p.stepRemediations[k] = v
	}
	p.totalRedesigns = totalRedesigns
	p.totalLoopIterations = totalLoopIterations
}
