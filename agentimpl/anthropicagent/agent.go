// Package anthropicagent implements agent.Agent[string] on top of the
// Anthropic Claude Messages API, giving the Agent contract one real body
// backed by a direct HTTP client to a specific LLM vendor (spec.md §1's
// explicit external-collaborator carve-out).
package anthropicagent

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
)

// MessagesClient captures the subset of the Anthropic SDK client used by
// the adapter. It is satisfied by *sdk.MessageService so callers can pass
// either a real client or a fake in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures an Agent.
type Options struct {
	// Name is the stable identifier the orchestrator dispatches through.
	Name agent.Ident
	// Model is the Claude model identifier, e.g.
	// string(sdk.ModelClaudeSonnet4_5_20250929).
	Model string
	// MaxTokens bounds the completion length. Required, must be positive.
	MaxTokens int
	// Expertise is rendered into the strategy-generation prompt.
	Expertise agent.Expertise
	// Description is a short routing summary; derived from Expertise when
	// empty.
	Description string
	// Capabilities declares the agent's capability set.
	Capabilities []payload.Capability
}

// Agent adapts a payload.Payload into a single-turn Claude Messages
// request and the response text back into a plain string Output.
type Agent struct {
	msg     MessagesClient
	model   string
	maxTok  int
	name    agent.Ident
	expert  agent.Expertise
	desc    string
	capable []payload.Capability
}

// New builds an Agent from an explicit Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Agent, error) {
	if msg == nil {
		return nil, errors.New("anthropicagent: messages client is required")
	}
	if opts.Name == "" {
		return nil, errors.New("anthropicagent: name is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropicagent: model is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("anthropicagent: max_tokens must be positive")
	}
	expertise := opts.Expertise
	if expertise == nil {
		expertise = agent.TextExpertise("general-purpose Claude-backed agent")
	}
	return &Agent{
		msg: msg, model: opts.Model, maxTok: opts.MaxTokens,
		name: opts.Name, expert: expertise, desc: opts.Description,
		capable: opts.Capabilities,
	}, nil
}

// NewFromAPIKey constructs an Agent using the default Anthropic HTTP
// client, authenticated with the given apiKey via option.WithAPIKey.
func NewFromAPIKey(apiKey string, opts Options) (*Agent, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicagent: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, opts)
}

// Execute implements agent.Agent[string]: it folds p to text, issues a
// single-turn Messages.New call, and returns the concatenated text
// content blocks of the response.
func (a *Agent) Execute(ctx context.Context, p payload.Payload) (string, *agent.ApprovalRequest, error) {
	text := p.ToText()
	if text == "" {
		return "", nil, errors.New("anthropicagent: payload has no renderable content")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(a.maxTok),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(text)),
		},
	}

	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("anthropicagent: messages.new: %w", err)
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += block.Text
		}
	}
	return out, nil, nil
}

// Expertise implements agent.Agent[string].
func (a *Agent) Expertise() agent.Expertise { return a.expert }

// Description implements agent.Agent[string].
func (a *Agent) Description() string { return a.desc }

// Capabilities implements agent.Agent[string].
func (a *Agent) Capabilities() []payload.Capability { return a.capable }

// Name implements agent.Agent[string].
func (a *Agent) Name() agent.Ident { return a.name }
