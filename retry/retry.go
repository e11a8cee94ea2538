// Package retry wraps an agent.DynamicAgent with the three-priority
// backoff-with-full-jitter policy from spec.md §4.2, grounded on the
// teacher's runtime/a2a/retry.Do loop shape.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
)

const (
	exponentialCap = 60 * time.Second
	linearStep     = 100 * time.Millisecond
)

// Decorator wraps an inner agent.DynamicAgent, retrying transient failures
// up to maxRetries attempts with full jitter. Non-transient errors and
// exhaustion propagate unchanged: the decorator never consults the
// orchestrator, it only handles the narrow retry-eligible case.
type Decorator struct {
	inner      agent.DynamicAgent
	maxRetries int
	// sleep is overridable in tests to avoid real waits.
	sleep func(context.Context, time.Duration) error
	// rand01 returns a uniform random float64 in [0, 1); overridable in
	// tests for deterministic jitter assertions.
	rand01 func() float64
}

// New builds a Decorator around inner with the given maximum retry count.
// maxRetries is the total number of attempts allowed across the whole
// call, matching spec.md §4.2's "n < max_retries" 1-indexed attempt count.
func New(inner agent.DynamicAgent, maxRetries int) *Decorator {
	return &Decorator{
		inner:      inner,
		maxRetries: maxRetries,
		sleep:      ctxSleep,
		rand01:     rand.Float64, //nolint:gosec // jitter does not need crypto rand
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Decorator) Name() agent.Ident                        { return d.inner.Name() }
func (d *Decorator) Description() string                      { return d.inner.Description() }
func (d *Decorator) Expertise() agent.Expertise               { return d.inner.Expertise() }
func (d *Decorator) Capabilities() []payload.Capability        { return d.inner.Capabilities() }

// ExecuteDynamic runs the inner agent, retrying transient failures per
// spec.md §4.2's three-priority delay rule.
func (d *Decorator) ExecuteDynamic(ctx context.Context, p payload.Payload) (agent.AgentOutput, error) {
	maxRetries := d.maxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error
	for n := 1; n <= maxRetries; n++ {
		out, err := d.inner.ExecuteDynamic(ctx, p)
		if err == nil {
			return out, nil
		}
		lastErr = err

		ae, ok := agent.AsError(err)
		if !ok || !ae.IsTransient() || n >= maxRetries {
			return agent.AgentOutput{}, err
		}

		delay := jitteredDelay(ae, n, d.rand01)
		if sleepErr := d.sleep(ctx, delay); sleepErr != nil {
			return agent.AgentOutput{}, sleepErr
		}
	}
	return agent.AgentOutput{}, lastErr
}

// jitteredDelay computes the full-jitter delay for attempt n given the
// transient error ae, following the three-priority rule:
//  1. ae.RetryAfter, when set, is the base.
//  2. Else, a 429/rate-limit signal uses exponential backoff capped at 60s.
//  3. Else, linear backoff of n * 100ms.
//
// The actual delay returned is uniform(0, base), i.e. full jitter.
func jitteredDelay(ae *agent.Error, n int, rand01 func() float64) time.Duration {
	base := baseDelay(ae, n)
	if base <= 0 {
		return 0
	}
	return time.Duration(rand01() * float64(base))
}

func baseDelay(ae *agent.Error, n int) time.Duration {
	if ae.RetryAfter > 0 {
		return ae.RetryAfter
	}
	if isRateLimited(ae) {
		exp := math.Pow(2, float64(n)) * float64(time.Second)
		if exp > float64(exponentialCap) {
			exp = float64(exponentialCap)
		}
		return time.Duration(exp)
	}
	return time.Duration(n) * linearStep
}

func isRateLimited(ae *agent.Error) bool {
	return ae.Kind == agent.ErrorKindProcess && ae.StatusCode == 429
}
