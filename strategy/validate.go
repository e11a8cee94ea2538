package strategy

import (
	"errors"
	"fmt"
)

// ValidateOptions carries inputs to Validate that are not part of the
// StrategyMap itself: caller-injected context keys known to be present
// before execution starts (spec.md §3 invariant 3's "external context the
// caller injected before execution").
type ValidateOptions struct {
	ExternalKeys []string
}

// Validate checks s against the four invariants in spec.md §3, returning
// any accumulated errors joined via errors.Join (so callers may inspect
// individual errors with errors.As) and a slice of non-fatal warnings.
// Validate must be re-run after any mid-run strategy modification
// (tactical redesign, full regenerate) per spec.md §4.3.
func Validate(s *StrategyMap, opts ValidateOptions) (warnings []string, err error) {
	v := &validator{
		ids:     map[string]bool{},
		known:   map[string]bool{"task": true, "previous_output": true},
		maxSeen: map[string]bool{},
	}
	for _, k := range opts.ExternalKeys {
		v.known[k] = true
	}

	var errs []error
	for _, inst := range s.Elements {
		errs = append(errs, v.walk(inst, false)...)
	}

	return v.warnings, errors.Join(errs...)
}

type validator struct {
	ids      map[string]bool
	known    map[string]bool
	maxSeen  map[string]bool
	warnings []string
}

func (v *validator) walk(inst Instruction, insideLoop bool) []error {
	switch {
	case inst.Step != nil:
		return v.walkStep(inst.Step)
	case inst.Loop != nil:
		return v.walkLoop(inst.Loop, insideLoop)
	case inst.Terminate != nil:
		return v.walkTerminate(inst.Terminate)
	}
	return nil
}

func (v *validator) walkStep(s *Step) []error {
	var errs []error
	errs = append(errs, v.claimID(s.StepID)...)

	for _, ph := range placeholders(s.IntentTemplate) {
		if !v.known[ph] {
			errs = append(errs, &UnresolvedPlaceholderError{StepID: s.StepID, Placeholder: ph})
		}
	}

	if s.OutputKey != "" && (s.OutputKey == "task" || s.OutputKey == "previous_output" || hasStepOutputShape(s.OutputKey)) {
		v.warnings = append(v.warnings, fmt.Sprintf("step %q output_key %q collides with a reserved context key", s.StepID, s.OutputKey))
	}

	v.known[stepOutputKey(s.StepID)] = true
	v.known[stepOutputKey(s.StepID)+"_prompt"] = true
	if s.OutputKey != "" {
		v.known[s.OutputKey] = true
		v.known[s.OutputKey+"_prompt"] = true
	}
	return errs
}

func (v *validator) walkLoop(l *Loop, insideLoop bool) []error {
	var errs []error
	errs = append(errs, v.claimID(l.LoopID)...)

	if insideLoop {
		errs = append(errs, &NestedLoopError{LoopID: l.LoopID})
	}
	if l.MaxIterations < 1 {
		errs = append(errs, &InvalidMaxIterationsError{LoopID: l.LoopID, Value: l.MaxIterations})
	}

	// While evaluates condition_template before each iteration, so it must
	// be resolvable from context as known before the loop runs. Until
	// evaluates it after the body, so the body's own outputs are in scope
	// by the time it is first checked.
	checkCondition := func() {
		if l.ConditionTemplate == "" {
			return
		}
		for _, ph := range placeholders(l.ConditionTemplate) {
			if !v.known[ph] {
				errs = append(errs, &UnresolvedPlaceholderError{StepID: l.LoopID, Placeholder: ph})
			}
		}
	}

	if l.LoopType != Until {
		checkCondition()
	}

	for _, body := range l.Body {
		if body.Loop != nil {
			errs = append(errs, &NestedLoopError{LoopID: l.LoopID})
			continue
		}
		errs = append(errs, v.walk(body, true)...)
	}

	if l.LoopType == Until {
		checkCondition()
	}
	return errs
}

func (v *validator) walkTerminate(t *Terminate) []error {
	var errs []error
	errs = append(errs, v.claimID(t.TerminateID)...)

	for _, tmpl := range []string{t.ConditionTemplate, t.FinalOutputTemplate} {
		if tmpl == "" {
			continue
		}
		for _, ph := range placeholders(tmpl) {
			if !v.known[ph] {
				errs = append(errs, &UnresolvedPlaceholderError{StepID: t.TerminateID, Placeholder: ph})
			}
		}
	}
	return errs
}

func (v *validator) claimID(id string) []error {
	if id == "" {
		return nil
	}
	if v.ids[id] {
		return []error{&DuplicateIDError{ID: id}}
	}
	v.ids[id] = true
	return nil
}

func stepOutputKey(stepID string) string {
	return "step_" + stepID + "_output"
}

func hasStepOutputShape(key string) bool {
	return len(key) > len("step_") && key[:5] == "step_"
}
