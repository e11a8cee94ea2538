// Package detect implements spec.md §4.8's context detection: building an
// EnvContext snapshot from run counters and inferring a DetectedContext
// from it, either via fast rule evaluation or by prompting an agent.
package detect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
)

// Detector infers a DetectedContext from an EnvContext snapshot and a
// preview of the outbound payload. Name identifies the detector for the
// DetectedContext.DetectedBy trail.
type Detector interface {
	Name() string
	Detect(ctx context.Context, env payload.EnvContext, preview payload.Payload) (payload.DetectedContext, error)
}

// Chain runs detectors in order, merging each result into the previous
// one via DetectedContext.Merge (detectors are additive, spec.md §4.8),
// and returns the combined DetectedContext. An error from any detector
// aborts the chain and returns the error.
func Chain(ctx context.Context, env payload.EnvContext, preview payload.Payload, detectors ...Detector) (payload.DetectedContext, error) {
	var acc payload.DetectedContext
	for _, d := range detectors {
		out, err := d.Detect(ctx, env, preview)
		if err != nil {
			return payload.DetectedContext{}, fmt.Errorf("detect: %s: %w", d.Name(), err)
		}
		if len(out.DetectedBy) == 0 {
			out.DetectedBy = []string{d.Name()}
		}
		acc = acc.Merge(out)
	}
	return acc, nil
}

// AgentBased prompts an Agent[string] to classify the payload and parses
// its JSON output into a DetectedContext.
type AgentBased struct {
	Classifier agent.Agent[string]
}

// Name implements Detector.
func (a AgentBased) Name() string { return string(a.Classifier.Name()) }

// Detect builds a classification prompt describing env and preview, runs
// the classifier agent, and parses its output as a JSON-encoded
// DetectedContext.
func (a AgentBased) Detect(ctx context.Context, env payload.EnvContext, preview payload.Payload) (payload.DetectedContext, error) {
	prompt := classificationPrompt(env, preview)
	out, approval, err := a.Classifier.Execute(ctx, prompt)
	if err != nil {
		return payload.DetectedContext{}, err
	}
	if approval != nil {
		return payload.DetectedContext{}, agent.New(agent.ErrorKindExecution, "classifier agent requested approval instead of classifying")
	}

	var dc DetectedContextWire
	if err := json.Unmarshal([]byte(out), &dc); err != nil {
		return payload.DetectedContext{}, agent.Wrap(agent.ErrorKindParse, err, "classifier output is not a DetectedContext JSON document")
	}
	return dc.ToDetectedContext(), nil
}

func classificationPrompt(env payload.EnvContext, preview payload.Payload) payload.Payload {
	envJSON, _ := json.Marshal(env)
	text := fmt.Sprintf(
		"Classify the current task state as a JSON object with fields task_type, task_health (one of on_track, at_risk, off_track), and user_states (array of strings). Runtime metrics: %s. Conversation so far: %s",
		string(envJSON), preview.ToText(),
	)
	return payload.FromText(payload.System(), text)
}

// DetectedContextWire is the wire shape an AgentBased classifier is
// expected to emit: plain JSON field names rather than the Go-native
// payload.DetectedContext shape (which carries a Confidence map keyed by
// field name that a classifying LLM has no natural way to populate).
type DetectedContextWire struct {
	TaskType   string   `json:"task_type"`
	TaskHealth string   `json:"task_health"`
	UserStates []string `json:"user_states"`
}

// ToDetectedContext converts the wire shape into payload.DetectedContext.
func (w DetectedContextWire) ToDetectedContext() payload.DetectedContext {
	return payload.DetectedContext{
		TaskType:   w.TaskType,
		TaskHealth: payload.TaskHealth(w.TaskHealth),
		UserStates: w.UserStates,
	}
}
