package detect

import (
	"context"

	"github.com/flowkit/agentflow/payload"
)

// Rule mutates acc in place given the observed EnvContext. Rules compose
// in list order; later rules may override earlier ones (spec.md §4.8).
type Rule func(env payload.EnvContext, acc *payload.DetectedContext)

// RuleBased is a fast, no-external-call Detector evaluating a fixed list
// of Rules over an EnvContext snapshot. Name defaults to "rule_based" but
// may be overridden, e.g. to register multiple differently-tuned
// instances.
type RuleBased struct {
	DetectorName string
	Rules        []Rule
}

// DefaultRules returns the three rules spec.md §4.8 names explicitly:
// redesign_count > 2 sets AtRisk, consecutive_failures > 3 adds
// "frustrated", and success_rate < 0.5 sets OffTrack (and so, applied in
// this order, a run that is both redesign-heavy and low-success ends up
// OffTrack, since later rules may override earlier ones).
func DefaultRules() []Rule {
	return []Rule{
		func(env payload.EnvContext, acc *payload.DetectedContext) {
			if env.RedesignCount > 2 {
				acc.TaskHealth = payload.TaskHealthAtRisk
			}
		},
		func(env payload.EnvContext, acc *payload.DetectedContext) {
			if env.ConsecutiveFailures > 3 {
				acc.UserStates = append(acc.UserStates, "frustrated")
			}
		},
		func(env payload.EnvContext, acc *payload.DetectedContext) {
			if env.SuccessRate < 0.5 {
				acc.TaskHealth = payload.TaskHealthOffTrack
			}
		},
	}
}

// NewRuleBased builds a RuleBased detector with DefaultRules.
func NewRuleBased() *RuleBased {
	return &RuleBased{DetectorName: "rule_based", Rules: DefaultRules()}
}

// Name implements Detector.
func (r *RuleBased) Name() string {
	if r.DetectorName == "" {
		return "rule_based"
	}
	return r.DetectorName
}

// Detect implements Detector by running each Rule over env in order.
// preview is accepted to satisfy the Detector interface but unused: rule
// evaluation is purely a function of runtime counters.
func (r *RuleBased) Detect(_ context.Context, env payload.EnvContext, _ payload.Payload) (payload.DetectedContext, error) {
	var acc payload.DetectedContext
	for _, rule := range r.Rules {
		rule(env, &acc)
	}
	return acc, nil
}
