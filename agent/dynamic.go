package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flowkit/agentflow/payload"
)

// dynamicAdapter type-erases an Agent[Output] into a DynamicAgent. A
// conversion function captured at construction time renders the typed
// Output to a human-readable string for context enrichment without the
// orchestrator ever needing runtime type inspection, matching spec.md §9's
// "typed helpers capture a conversion function at registration time".
type dynamicAdapter[Output any] struct {
	inner   Agent[Output]
	toPrompt func(Output) (string, bool)
}

// Dynamic wraps a typed Agent[Output] into a DynamicAgent. If Output
// implements ToPrompt, its ToPrompt() method is used automatically for
// context-store enrichment; pass WithToPrompt to override.
func Dynamic[Output any](a Agent[Output], opts ...DynamicOption[Output]) DynamicAgent {
	ad := &dynamicAdapter[Output]{inner: a, toPrompt: defaultToPrompt[Output]}
	for _, opt := range opts {
		opt(ad)
	}
	return ad
}

func defaultToPrompt[Output any](out Output) (string, bool) {
	if tp, ok := any(out).(ToPrompt); ok {
		return tp.ToPrompt(), true
	}
	return "", false
}

// DynamicOption configures a dynamicAdapter at construction time.
type DynamicOption[Output any] func(*dynamicAdapter[Output])

// WithToPrompt overrides the conversion function used to render Output as
// a human-readable string for step_{id}_output_prompt enrichment.
func WithToPrompt[Output any](fn func(Output) (string, bool)) DynamicOption[Output] {
	return func(a *dynamicAdapter[Output]) { a.toPrompt = fn }
}

func (a *dynamicAdapter[Output]) Name() Ident                          { return a.inner.Name() }
func (a *dynamicAdapter[Output]) Description() string                  { return DeriveDescription(a.inner.Description(), a.inner.Expertise()) }
func (a *dynamicAdapter[Output]) Expertise() Expertise                 { return a.inner.Expertise() }
func (a *dynamicAdapter[Output]) Capabilities() []payload.Capability   { return a.inner.Capabilities() }

// OutputSchema forwards to the wrapped agent when it implements
// SchemaProvider.
func (a *dynamicAdapter[Output]) OutputSchema() (json.RawMessage, bool) {
	if sp, ok := any(a.inner).(SchemaProvider); ok {
		return sp.OutputSchema()
	}
	return nil, false
}

// ToPromptFor renders out as a human-readable string using the captured
// conversion function, when one is available.
func (a *dynamicAdapter[Output]) ToPromptFor(out Output) (string, bool) {
	if a.toPrompt == nil {
		return "", false
	}
	return a.toPrompt(out)
}

func (a *dynamicAdapter[Output]) ExecuteDynamic(ctx context.Context, p payload.Payload) (AgentOutput, error) {
	out, approval, err := a.inner.Execute(ctx, p)
	if err != nil {
		return AgentOutput{}, err
	}
	if approval != nil {
		return AgentOutput{RequiresApproval: approval}, nil
	}
	raw, err := encodeOutput(out)
	if err != nil {
		return AgentOutput{}, Wrap(ErrorKindParse, err, "agent output could not be encoded as JSON")
	}
	prompt, hasPrompt := a.ToPromptFor(out)
	return AgentOutput{Value: raw, Prompt: prompt, HasPrompt: hasPrompt}, nil
}

// encodeOutput marshals out to JSON. String outputs are normalized: if the
// entire marshaled value is a JSON string literal that itself decodes to a
// JSON string (an accidental double-encoding), the outer quotes are
// stripped so the stored value is the plain text, per spec.md §4.1.
func encodeOutput(out any) (json.RawMessage, error) {
	if s, ok := any(out).(string); ok {
		return json.RawMessage(normalizeStringOutput(s)), nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// normalizeStringOutput strips a single layer of accidental JSON-string
// wrapping (e.g. an agent returning `"\"hi\""` instead of `"hi"`) and
// returns a canonical JSON string literal either way.
func normalizeStringOutput(s string) string {
	trimmed := strings.TrimSpace(s)
	var inner string
	if json.Unmarshal([]byte(trimmed), &inner) == nil && strings.HasPrefix(trimmed, `"`) {
		// s was already a valid JSON string literal; re-marshal the inner
		// value in case it was itself wrapped twice.
		var deeper string
		if json.Unmarshal([]byte(inner), &deeper) == nil && strings.HasPrefix(strings.TrimSpace(inner), `"`) {
			inner = deeper
		}
		raw, _ := json.Marshal(inner)
		return string(raw)
	}
	raw, _ := json.Marshal(s)
	return string(raw)
}
