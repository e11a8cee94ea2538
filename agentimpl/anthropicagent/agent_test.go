package anthropicagent

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/agent"
	"github.com/flowkit/agentflow/payload"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestNewRejectsMissingFields(t *testing.T) {
	_, err := New(nil, Options{Name: "a", Model: "m", MaxTokens: 1})
	assert.Error(t, err)

	stub := &stubMessagesClient{}
	_, err = New(stub, Options{Model: "m", MaxTokens: 1})
	assert.Error(t, err)
	_, err = New(stub, Options{Name: "a", MaxTokens: 1})
	assert.Error(t, err)
	_, err = New(stub, Options{Name: "a", Model: "m"})
	assert.Error(t, err)
}

func TestExecuteReturnsConcatenatedText(t *testing.T) {
	stub := &stubMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello"},
				{Type: "tool_use"},
				{Type: "text", Text: "world"},
			},
		},
	}
	a, err := New(stub, Options{Name: "claude", Model: "claude-3.5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	p := payload.FromText(payload.User("caller", "tester"), "say hi")
	out, approval, err := a.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, approval)
	assert.Equal(t, "hello\nworld", out)
	assert.Equal(t, sdk.Model("claude-3.5-sonnet"), stub.lastParams.Model)
	assert.Equal(t, int64(128), stub.lastParams.MaxTokens)
}

func TestExecutePropagatesClientError(t *testing.T) {
	stub := &stubMessagesClient{err: errors.New("rate limited")}
	a, err := New(stub, Options{Name: "claude", Model: "m", MaxTokens: 1})
	require.NoError(t, err)

	_, _, err = a.Execute(context.Background(), payload.FromText(payload.User("caller", "tester"), "hi"))
	assert.Error(t, err)
}

func TestExecuteRejectsEmptyPayload(t *testing.T) {
	a, err := New(&stubMessagesClient{}, Options{Name: "claude", Model: "m", MaxTokens: 1})
	require.NoError(t, err)

	_, _, err = a.Execute(context.Background(), payload.Payload{})
	assert.Error(t, err)
}

func TestAccessorsReturnConfiguredValues(t *testing.T) {
	caps := []payload.Capability{{Category: "text", Action: "summarize"}}
	a, err := New(&stubMessagesClient{}, Options{
		Name: "claude", Model: "m", MaxTokens: 1,
		Description: "a claude agent", Capabilities: caps,
		Expertise: agent.TextExpertise("writes summaries"),
	})
	require.NoError(t, err)

	assert.Equal(t, agent.Ident("claude"), a.Name())
	assert.Equal(t, "a claude agent", a.Description())
	assert.Equal(t, caps, a.Capabilities())
	assert.Equal(t, "writes summaries", a.Expertise().Render(nil))
}
