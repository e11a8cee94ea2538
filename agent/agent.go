package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flowkit/agentflow/payload"
)

const descriptionPreviewLen = 100

type (
	// Expertise describes what an agent is good at. It is rendered into the
	// LLM-facing strategy-generation prompt and forwarded to the agent
	// itself; the orchestrator never interprets its content. Expertise may
	// be free-form text or a composed set of priority-weighted fragments
	// that activate conditionally on task-type/user-state/task-health.
	Expertise interface {
		// Render produces the prompt-facing text for the given detected
		// context (nil when no detection ran).
		Render(detected *payload.DetectedContext) string
	}

	// TextExpertise is the simplest Expertise: a fixed string.
	TextExpertise string

	// ExpertiseFragment is one conditionally-activated piece of a composed
	// Expertise.
	ExpertiseFragment struct {
		// Priority controls ordering: higher priority fragments render first.
		Priority int
		// Text is the fragment content.
		Text string
		// ActivateTaskTypes restricts activation to the listed task types.
		// Empty means always eligible on this axis.
		ActivateTaskTypes []string
		// ActivateUserStates restricts activation to detected contexts
		// carrying at least one of the listed user states.
		ActivateUserStates []string
		// ActivateHealth restricts activation to the listed task-health
		// values.
		ActivateHealth []payload.TaskHealth
	}

	// ComposedExpertise renders the highest-priority-first concatenation of
	// fragments whose activation predicates match the detected context.
	ComposedExpertise []ExpertiseFragment

	// AgentOutput is the type-erased result of DynamicAgent.ExecuteDynamic:
	// either a JSON value or a human-approval request.
	AgentOutput struct {
		// Value holds the produced output when the agent did not request
		// approval. String outputs are normalized (accidental JSON-string
		// wrapper quotes stripped) before being stored here as a plain
		// json.RawMessage string value.
		Value json.RawMessage
		// Prompt is the human-readable rendering of Value, populated when
		// the typed Output implements ToPrompt (or a WithToPrompt override
		// was supplied), for step_{id}_output_prompt enrichment (spec.md
		// §4.4). HasPrompt is false when no rendering is available.
		Prompt    string
		HasPrompt bool
		// RequiresApproval is non-nil when the agent is pausing for a human
		// decision instead of producing a final value.
		RequiresApproval *ApprovalRequest
	}

	// ApprovalRequest carries the human-facing message and the payload that
	// was in flight when the agent decided it needed approval.
	ApprovalRequest struct {
		MessageForHuman string
		CurrentPayload  payload.Payload
	}

	// Agent is the typed contract: a unit capable of turning a Payload into
	// a typed Output, or signaling that it requires human approval.
	Agent[Output any] interface {
		// Execute runs the agent against payload p.
		Execute(ctx context.Context, p payload.Payload) (Output, *ApprovalRequest, error)
		// Expertise returns the structured description rendered into the
		// strategy-generation prompt and forwarded to the agent.
		Expertise() Expertise
		// Description returns a short routing summary. When empty, the
		// orchestrator derives one from the first ~100 characters of
		// Expertise().Render(nil).
		Description() string
		// Capabilities returns the agent's declared capability set.
		Capabilities() []payload.Capability
		// Name returns the stable identifier used as assigned_agent.
		Name() Ident
	}

	// ToPrompt is implemented by Output types that can render themselves as
	// a human-readable string for context-store enrichment
	// (step_{id}_output_prompt, spec.md §4.4).
	ToPrompt interface {
		ToPrompt() string
	}

	// SchemaProvider is implemented by agents whose Output is a structured
	// JSON object with a known JSON Schema, enabling optional
	// schema-validated storage (SPEC_FULL.md §4.1).
	SchemaProvider interface {
		// OutputSchema returns the JSON Schema document for this agent's
		// Output type, or ok=false when no schema is declared.
		OutputSchema() (schema json.RawMessage, ok bool)
	}

	// DynamicAgent is the type-erased façade the orchestrator dispatches
	// through. Implementations typically wrap a typed Agent[T]; see
	// Dynamic() below for the adapter.
	DynamicAgent interface {
		ExecuteDynamic(ctx context.Context, p payload.Payload) (AgentOutput, error)
		Expertise() Expertise
		Description() string
		Capabilities() []payload.Capability
		Name() Ident
	}
)

// Render returns the fixed expertise string regardless of detected context.
func (t TextExpertise) Render(*payload.DetectedContext) string { return string(t) }

// Render concatenates fragments in descending priority order, skipping any
// fragment whose activation predicate does not match detected.
func (c ComposedExpertise) Render(detected *payload.DetectedContext) string {
	frags := make([]ExpertiseFragment, len(c))
	copy(frags, c)
	sortFragmentsByPriorityDesc(frags)

	var b strings.Builder
	first := true
	for _, f := range frags {
		if !f.activates(detected) {
			continue
		}
		if !first {
			b.WriteString("\n\n")
		}
		b.WriteString(f.Text)
		first = false
	}
	return b.String()
}

func sortFragmentsByPriorityDesc(frags []ExpertiseFragment) {
	// Simple insertion sort: fragment counts per agent are small and this
	// keeps the package dependency-free.
	for i := 1; i < len(frags); i++ {
		for j := i; j > 0 && frags[j].Priority > frags[j-1].Priority; j-- {
			frags[j], frags[j-1] = frags[j-1], frags[j]
		}
	}
}

func (f ExpertiseFragment) activates(detected *payload.DetectedContext) bool {
	if detected == nil {
		return len(f.ActivateTaskTypes) == 0 && len(f.ActivateUserStates) == 0 && len(f.ActivateHealth) == 0
	}
	if len(f.ActivateTaskTypes) > 0 && !containsString(f.ActivateTaskTypes, detected.TaskType) {
		return false
	}
	if len(f.ActivateHealth) > 0 && !containsHealth(f.ActivateHealth, detected.TaskHealth) {
		return false
	}
	if len(f.ActivateUserStates) > 0 && !anyStringIn(f.ActivateUserStates, detected.UserStates) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsHealth(haystack []payload.TaskHealth, needle payload.TaskHealth) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func anyStringIn(candidates, haystack []string) bool {
	for _, c := range candidates {
		if containsString(haystack, c) {
			return true
		}
	}
	return false
}

// DeriveDescription returns description if non-empty, otherwise the first
// descriptionPreviewLen characters of the rendered expertise.
func DeriveDescription(description string, expertise Expertise) string {
	if description != "" {
		return description
	}
	rendered := expertise.Render(nil)
	if len(rendered) <= descriptionPreviewLen {
		return rendered
	}
	return rendered[:descriptionPreviewLen]
}
