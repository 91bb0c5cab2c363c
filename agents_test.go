package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedy0526/agents/agent"
	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/model"
	"github.com/speedy0526/agents/tool"
)

func echoTool() tool.Tool {
	return tool.NewFunctionTool("echo", "Echo the input back",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		})
}

func newTestEngine(t *testing.T, mock *model.MockModel) *Engine {
	t.Helper()
	e, err := New(mock, func(o *Options) {
		o.Pacing = 0
		o.Tools = []tool.Tool{echoTool()}
	})
	require.NoError(t, err)
	return e
}

func TestEngine_Run(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script(
		`{"reasoning": "echo it", "next_action": "use_tool", "tool_name": "echo", "tool_parameters": {"text": "hi"}}`,
		`{"reasoning": "All done.", "next_action": "finish"}`,
	)
	e := newTestEngine(t, mock)

	result, err := e.Run(context.Background(), "session-1", "Say hi")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusFinished, result.Status)
	assert.Equal(t, "All done.", result.Reply)
}

func TestEngine_SessionReuse(t *testing.T) {
	e := newTestEngine(t, model.NewMockModel("mock"))

	a, err := e.Session("s1")
	require.NoError(t, err)
	b, err := e.Session("s1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := e.Session("s2")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestEngine_SessionPersistence(t *testing.T) {
	root := t.TempDir()
	e, err := New(model.NewMockModel("mock"), func(o *Options) {
		o.Pacing = 0
		o.SessionRoot = root
	})
	require.NoError(t, err)

	orch, err := e.Session("durable")
	require.NoError(t, err)
	// Session creation checkpoints the system prompt to disk.
	assert.FileExists(t, root+"/durable/session_context.json")
	assert.Positive(t, orch.Store().Len())
}

func TestEngine_HandleEvent(t *testing.T) {
	mock := model.NewMockModel("mock")
	mock.Script(`{"reasoning": "ok", "next_action": "finish"}`)
	e := newTestEngine(t, mock)

	err := e.HandleEvent(context.Background(), core.NewEvent("s1", core.EventUserMessage, "Request"))
	require.NoError(t, err)

	orch, err := e.Session("s1")
	require.NoError(t, err)
	before := orch.Store().Len()
	require.Positive(t, before)

	// clear_context keeps only system entries.
	require.NoError(t, e.HandleEvent(context.Background(), core.NewEvent("s1", core.EventClearContext, "")))
	for _, entry := range orch.Store().Entries() {
		assert.Equal(t, core.EntrySystem, entry.EntryType)
	}

	err = e.HandleEvent(context.Background(), core.NewEvent("s1", "bogus", ""))
	assert.Error(t, err)
}

func TestEngine_GateSharedAcrossSessions(t *testing.T) {
	e, err := New(model.NewMockModel("mock"), func(o *Options) {
		o.Pacing = time.Millisecond
		o.MaxInFlight = 1
	})
	require.NoError(t, err)
	assert.Equal(t, 1, e.gateway.Gate().Capacity())
}
