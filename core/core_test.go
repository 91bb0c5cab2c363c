package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecision_Validate(t *testing.T) {
	cases := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{"finish", Decision{NextAction: ActionFinish, Reasoning: "done"}, false},
		{"think", Decision{NextAction: ActionThink}, false},
		{"respond", Decision{NextAction: ActionRespondToUser}, false},
		{"tool ok", Decision{NextAction: ActionUseTool, ToolName: "search"}, false},
		{"tool missing name", Decision{NextAction: ActionUseTool}, true},
		{"skill ok", Decision{NextAction: ActionUseSkill, SubagentCommand: "research"}, false},
		{"skill missing command", Decision{NextAction: ActionUseSkill}, true},
		{"chain missing command", Decision{NextAction: ActionCallChain}, true},
		{"unknown action", Decision{NextAction: "dance"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				assert.Equal(t, ErrMalformedModelOutput, CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecision_RoutingHelpers(t *testing.T) {
	assert.True(t, Decision{NextAction: ActionFinish}.Terminal())
	assert.True(t, Decision{NextAction: ActionRespondToUser}.Terminal())
	assert.False(t, Decision{NextAction: ActionThink}.Terminal())

	assert.True(t, Decision{NextAction: ActionUseTool}.Dispatches())
	assert.True(t, Decision{NextAction: ActionCallChain}.Dispatches())
	assert.False(t, Decision{NextAction: ActionThink}.Dispatches())
	assert.False(t, Decision{NextAction: ActionFinish}.Dispatches())
}

func TestFailedResult_AlwaysCarriesError(t *testing.T) {
	res := FailedResult(ErrToolNotFound, "", "lookup failed")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, string(ErrToolNotFound), res.Metadata["error_code"])
}

func TestFailedResultFrom_CopiesDetails(t *testing.T) {
	err := NewAgentError(ErrSkillMissingTools, "missing tools").WithDetail("missing", []string{"file_write"})
	res := FailedResultFrom(err, "skill aborted")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "missing tools")
	assert.Equal(t, []string{"file_write"}, res.Metadata["missing"])
}

func TestAgentError_UnwrapAndCode(t *testing.T) {
	cause := errors.New("boom")
	err := WrapAgentError(ErrUpstreamTransient, "rate limited", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrUpstreamTransient, CodeOf(err))
	assert.True(t, Retryable(err))
	assert.False(t, Retryable(NewAgentError(ErrUpstreamFatal, "bad request")))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestParseChainSteps(t *testing.T) {
	steps, err := ParseChainSteps(`[{"type":"tool","command":"search","parameters":{"q":"go"}},{"type":"chain","command":"[]"}]`)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, StepTool, steps[0].Type)
	assert.Equal(t, "search", steps[0].Command)

	_, err = ParseChainSteps(`{"type":"tool"}`)
	assert.Equal(t, ErrChainInvalidFormat, CodeOf(err))

	_, err = ParseChainSteps(`[{"type":"robot","command":"x"}]`)
	assert.Equal(t, ErrChainInvalidFormat, CodeOf(err))
}

func TestGate_BoundsConcurrency(t *testing.T) {
	gate := NewGate(2, 0)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx))
	require.NoError(t, gate.Acquire(ctx))
	assert.Equal(t, 2, gate.InFlight())

	acquired := make(chan struct{})
	go func() {
		_ = gate.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should block while gate is full")
	case <-time.After(20 * time.Millisecond):
	}

	gate.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire should proceed after release")
	}
}

func TestGate_AcquireCancelled(t *testing.T) {
	gate := NewGate(1, 0)
	require.NoError(t, gate.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, gate.InFlight())
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(NewEvent("s", EventAgentInfo, "one"))
	sink.Emit(NewEvent("s", EventAgentInfo, "two")) // dropped, must not block

	ev := <-sink.Events()
	assert.Equal(t, "one", ev.Content)
}

func TestMemorySink_Concurrent(t *testing.T) {
	sink := &MemorySink{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(NewEvent("s", EventAgentResult, "r"))
		}()
	}
	wg.Wait()
	assert.Len(t, sink.ByType(EventAgentResult), 10)
	assert.Empty(t, sink.ByType(EventError))
}
