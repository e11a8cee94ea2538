// Package openaiagent implements agent.Agent[string] on top of the OpenAI
// Chat Completions API. It mirrors agentimpl/anthropicagent's layering so
// the two reference agents give the Agent contract two independently
// real, independently swappable bodies (spec.md §1's external-collaborator
// carve-out).
package openaiagent

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
)

// ChatCompletionsClient captures the subset of the OpenAI SDK client used
// by the adapter. It is satisfied by openai.ChatCompletionService so
// callers can pass either a real client or a fake in tests.
type ChatCompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures an Agent.
type Options struct {
	// Name is the stable identifier the orchestrator dispatches through.
	Name agent.Ident
	// Model is the OpenAI model identifier, e.g. openai.ChatModelGPT4o.
	Model string
	// Temperature controls sampling; zero uses the API default.
	Temperature float64
	// Expertise is rendered into the strategy-generation prompt.
	Expertise agent.Expertise
	// Description is a short routing summary.
	Description string
	// Capabilities declares the agent's capability set.
	Capabilities []payload.Capability
}

// Agent adapts a payload.Payload into a single-turn Chat Completions
// request and the response text back into a plain string Output.
type Agent struct {
	chat    ChatCompletionsClient
	model   string
	temp    float64
	hasTemp bool
	name    agent.Ident
	expert  agent.Expertise
	desc    string
	capable []payload.Capability
}

// New builds an Agent from an explicit Chat Completions client.
func New(chat ChatCompletionsClient, opts Options) (*Agent, error) {
	if chat == nil {
		return nil, errors.New("openaiagent: chat completions client is required")
	}
	if opts.Name == "" {
		return nil, errors.New("openaiagent: name is required")
	}
	if opts.Model == "" {
		return nil, errors.New("openaiagent: model is required")
	}
	expertise := opts.Expertise
	if expertise == nil {
		expertise = agent.TextExpertise("general-purpose GPT-backed agent")
	}
	return &Agent{
		chat: chat, model: opts.Model, temp: opts.Temperature, hasTemp: opts.Temperature != 0,
		name: opts.Name, expert: expertise, desc: opts.Description,
		capable: opts.Capabilities,
	}, nil
}

// NewFromAPIKey constructs an Agent using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Agent, error) {
	if apiKey == "" {
		return nil, errors.New("openaiagent: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(c.Chat.Completions, opts)
}

// Execute implements agent.Agent[string]: it folds p to text, issues a
// single-turn chat completion, and returns the first choice's message
// content.
func (a *Agent) Execute(ctx context.Context, p payload.Payload) (string, *agent.ApprovalRequest, error) {
	text := p.ToText()
	if text == "" {
		return "", nil, errors.New("openaiagent: payload has no renderable content")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(text),
		},
	}
	if a.hasTemp {
		params.Temperature = openai.Float(a.temp)
	}

	resp, err := a.chat.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("openaiagent: chat.completions.new: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, errors.New("openaiagent: response had no choices")
	}
	return resp.Choices[0].Message.Content, nil, nil
}

// Expertise implements agent.Agent[string].
func (a *Agent) Expertise() agent.Expertise { return a.expert }

// Description implements agent.Agent[string].
func (a *Agent) Description() string { return a.desc }

// Capabilities implements agent.Agent[string].
func (a *Agent) Capabilities() []payload.Capability { return a.capable }

// Name implements agent.Agent[string].
func (a *Agent) Name() agent.Ident { return a.name }
