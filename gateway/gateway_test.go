package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/model"
)

func fastOptions(o *Options) {
	o.Pacing = 0
	o.InitialBackoff = time.Millisecond
	o.MaxBackoff = 5 * time.Millisecond
}

func TestGateway_Complete(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script(`all done`)
	g := New(mock, fastOptions)

	completion, err := g.Complete(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "all done", completion.Text)
	assert.Equal(t, 1, mock.Calls())
}

func TestGateway_RetriesTransientErrors(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.FailNext(errors.New("429 rate limit exceeded"), errors.New("upstream timeout"))
	mock.Script(`recovered`)
	g := New(mock, fastOptions)

	completion, err := g.Complete(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", completion.Text)
	assert.Equal(t, 3, mock.Calls())
}

func TestGateway_FatalErrorNotRetried(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.FailNext(errors.New("invalid api key"))
	g := New(mock, fastOptions)

	_, err := g.Complete(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrUpstreamFatal, core.CodeOf(err))
	assert.Equal(t, 1, mock.Calls())
}

func TestGateway_RetryBudgetExhausted(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.FailNext(
		errors.New("503 unavailable"),
		errors.New("503 unavailable"),
		errors.New("503 unavailable"),
	)
	g := New(mock, fastOptions, func(o *Options) { o.MaxRetries = 2 })

	_, err := g.Complete(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrUpstreamTransient, core.CodeOf(err))
	assert.Equal(t, 3, mock.Calls())
}

func TestGateway_Decide(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script("Here is my decision:\n```json\n" +
		`{"reasoning": "need to search", "next_action": "use_tool", "tool_name": "web_search", "tool_parameters": {"query": "go"}}` +
		"\n```")
	g := New(mock, fastOptions)

	decision, completion, err := g.Decide(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "find go docs"},
	})
	require.NoError(t, err)
	require.NotNil(t, completion)
	assert.Equal(t, core.ActionUseTool, decision.NextAction)
	assert.Equal(t, "web_search", decision.ToolName)
	assert.Equal(t, "go", decision.ToolParameters["query"])
}

func TestGateway_DecideAppendsOutputFormat(t *testing.T) {
	mock := model.NewMockModel("mock")
	// Keyed on last message content; the format instruction must be last.
	mock.AddResponse(metaInstruction, `{"reasoning": "ok", "next_action": "finish"}`)
	g := New(mock, fastOptions)

	decision, _, err := g.Decide(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "anything"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionFinish, decision.NextAction)
}

func TestGateway_DecideMalformedOutput(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script("I refuse to answer in JSON.")
	g := New(mock, fastOptions)

	_, completion, err := g.Decide(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrMalformedModelOutput, core.CodeOf(err))
	// The raw text survives for re-prompting and diagnostics.
	require.NotNil(t, completion)
	assert.Contains(t, completion.Text, "refuse")
}

func TestGateway_DecideNormalizesAction(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script(`{"reasoning": "r", "next_action": "  FINISH "}`)
	g := New(mock, fastOptions)

	decision, _, err := g.Decide(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.ActionFinish, decision.NextAction)
}

func TestGateway_DecideInvalidAction(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script(`{"reasoning": "r", "next_action": "launch_rockets"}`)
	g := New(mock, fastOptions)

	_, _, err := g.Decide(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrMalformedModelOutput, core.CodeOf(err))
}

func TestGateway_ContextCancelled(t *testing.T) {
	mock := model.NewMockModel("mock")
	g := New(mock, fastOptions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Complete(ctx, []core.Message{{Role: core.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
