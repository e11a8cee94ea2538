package parallel

import (
	"github.com/flowkit/agentflow/strategy"
	"github.com/flowkit/agentflow/template"
)

// dag is the step dependency graph the wave scheduler walks: step ->
// producer step IDs whose output it references.
type dag struct {
	steps     []strategy.Step
	producers map[string][]string
}

// buildDAG extracts the flat Step list from a strategy (rejecting Loop and
// Terminate elements) and, for each step, resolves its intent_template's
// placeholders to producer step IDs via the reserved step_{id}_output[_prompt]
// keys and any declared output_key alias (spec.md §4.6: "Parse each step's
// intent_template for placeholder identifiers referring to other steps'
// outputs or aliases").
//
// Unlike strategy.Validate, this does not require producers to appear
// earlier in the element list: a DAG has no inherent ordering, so a known
// set is built from every step before placeholders are checked. A
// placeholder matching neither a step output nor an externalKey is
// assumed to be caller-injected context and is not treated as a
// dependency.
func buildDAG(strat *strategy.StrategyMap, externalKeys []string) (*dag, error) {
	steps := make([]strategy.Step, 0, len(strat.Elements))
	for i, inst := range strat.Elements {
		if inst.Step == nil {
			return nil, &NonStepInstructionError{Index: i}
		}
		steps = append(steps, *inst.Step)
	}

	outputKeyToStep := map[string]string{}
	known := map[string]bool{"task": true}
	for _, k := range externalKeys {
		known[k] = true
	}
	for _, s := range steps {
		outputKeyToStep[stepOutputKey(s.StepID)] = s.StepID
		outputKeyToStep[stepOutputKey(s.StepID)+"_prompt"] = s.StepID
		known[stepOutputKey(s.StepID)] = true
		known[stepOutputKey(s.StepID)+"_prompt"] = true
		if s.OutputKey != "" {
			outputKeyToStep[s.OutputKey] = s.StepID
			outputKeyToStep[s.OutputKey+"_prompt"] = s.StepID
			known[s.OutputKey] = true
			known[s.OutputKey+"_prompt"] = true
		}
	}

	producers := make(map[string][]string, len(steps))
	for _, s := range steps {
		var deps []string
		seen := map[string]bool{}
		for _, ph := range template.Placeholders(s.IntentTemplate) {
			producerStep, ok := outputKeyToStep[ph]
			if !ok || producerStep == s.StepID || seen[producerStep] {
				continue
			}
			seen[producerStep] = true
			deps = append(deps, producerStep)
		}
		producers[s.StepID] = deps
	}

	d := &dag{steps: steps, producers: producers}
	if cyc := d.findCycle(); len(cyc) > 0 {
		return nil, &CycleError{StepIDs: cyc}
	}
	return d, nil
}

func stepOutputKey(stepID string) string {
	return "step_" + stepID + "_output"
}

// findCycle returns the IDs involved in a dependency cycle, or nil if the
// graph is acyclic.
func (d *dag) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.steps))
	var cyclePath []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range d.producers[id] {
			switch color[dep] {
			case gray:
				cyclePath = []string{dep, id}
				return true
			case white:
				if visit(dep) {
					cyclePath = append(cyclePath, id)
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, s := range d.steps {
		if color[s.StepID] == white {
			if visit(s.StepID) {
				return cyclePath
			}
		}
	}
	return nil
}
