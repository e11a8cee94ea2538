package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
	"github.com/flowkit/agentflow/strategy"
)

// StrategyGenerator wraps the internal strategy-generation agent
// described in spec.md §4.9: given a blueprint, the registry's
// available-agent listing, and the current task, it produces a
// StrategyMap. The same underlying agent serves three call shapes —
// initial generation, tactical redesign, and full regeneration — each
// built from a different prompt by this wrapper; the agent itself never
// knows which shape it was asked for.
type StrategyGenerator struct {
	Agent agent.Agent[strategy.StrategyMap]
}

// Generate produces the initial strategy for task (spec.md §4.5 step 1).
func (g StrategyGenerator) Generate(ctx context.Context, blueprint, task string, descriptors []agent.Descriptor) (*strategy.StrategyMap, error) {
	prompt := generatePrompt(blueprint, task, descriptors)
	return g.run(ctx, prompt)
}

// Redesign asks for a modified strategy with the suffix from fromIndex
// onward rewritten, preserving completed steps' context (spec.md §4.5.2
// TacticalRedesign).
func (g StrategyGenerator) Redesign(ctx context.Context, blueprint string, current *strategy.StrategyMap, fromIndex int, failureSummary string, descriptors []agent.Descriptor) (*strategy.StrategyMap, error) {
	prompt := redesignPrompt(blueprint, current, fromIndex, failureSummary, descriptors)
	return g.run(ctx, prompt)
}

// Regenerate discards all pending instructions and produces a fresh
// strategy from the original blueprint plus a summary of what failed
// (spec.md §4.5.2 FullRegenerate).
func (g StrategyGenerator) Regenerate(ctx context.Context, blueprint, task, failureSummary string, descriptors []agent.Descriptor) (*strategy.StrategyMap, error) {
	prompt := regeneratePrompt(blueprint, task, failureSummary, descriptors)
	return g.run(ctx, prompt)
}

func (g StrategyGenerator) run(ctx context.Context, prompt payload.Payload) (*strategy.StrategyMap, error) {
	out, approval, err := g.Agent.Execute(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if approval != nil {
		return nil, agent.New(agent.ErrorKindExecution, "strategy generator requested approval instead of producing a strategy")
	}
	if _, err := strategy.Validate(&out, strategy.ValidateOptions{}); err != nil {
		return nil, fmt.Errorf("orchestrator: generated strategy failed validation: %w", err)
	}
	return &out, nil
}

func generatePrompt(blueprint, task string, descriptors []agent.Descriptor) payload.Payload {
	text := fmt.Sprintf(
		"Blueprint:\n%s\n\nAvailable agents:\n%s\n\nTask: %s\n\nProduce a StrategyMap JSON document achieving the task using only the listed agents.",
		blueprint, renderDescriptors(descriptors), task,
	)
	return payload.FromText(payload.System(), text)
}

func redesignPrompt(blueprint string, current *strategy.StrategyMap, fromIndex int, failureSummary string, descriptors []agent.Descriptor) payload.Payload {
	currentJSON, _ := json.Marshal(current)
	text := fmt.Sprintf(
		"Blueprint:\n%s\n\nAvailable agents:\n%s\n\nThe current strategy is:\n%s\n\nStep at index %d failed: %s\n\nReturn a modified StrategyMap that keeps elements before index %d unchanged and rewrites the remaining suffix to work around the failure.",
		blueprint, renderDescriptors(descriptors), string(currentJSON), fromIndex, failureSummary, fromIndex,
	)
	return payload.FromText(payload.System(), text)
}

func regeneratePrompt(blueprint, task, failureSummary string, descriptors []agent.Descriptor) payload.Payload {
	text := fmt.Sprintf(
		"Blueprint:\n%s\n\nAvailable agents:\n%s\n\nTask: %s\n\nA previous strategy for this task failed and is being discarded entirely. Summary of what failed: %s\n\nProduce a fresh StrategyMap from scratch.",
		blueprint, renderDescriptors(descriptors), task, failureSummary,
	)
	return payload.FromText(payload.System(), text)
}

func renderDescriptors(descriptors []agent.Descriptor) string {
	var out string
	for _, d := range descriptors {
		out += fmt.Sprintf("- %s: %s (expertise: %s)\n", d.Name, d.Description, d.ExpertiseText)
	}
	return out
}
