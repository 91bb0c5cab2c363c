package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/speedy0526/agents/core"
)

// Request captures the normalized model input produced by the gateway.
type Request struct {
	Messages []core.Message `json:"messages"`
	// JSONMode asks the provider for a JSON object response where supported.
	JSONMode bool `json:"json_mode,omitempty"`
	Stream   bool `json:"stream,omitempty"`
}

// TokenUsage captures token accounting for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. For streaming
// calls each partial carries a text delta; exactly one final response with
// the full text closes the stream.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required to drive generation. Generate
// returns a response channel and an error channel; both are closed when the
// call completes. Implementations must respect ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model for tests & examples. Responses
// are matched against the last message content; a scripted queue takes
// precedence so multi-step loops can be driven deterministically.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	script    []string
	calls     int
	failures  []error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: map[string]string{},
	}
}

// AddResponse registers a canned completion keyed by the last message content.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends responses returned in order regardless of input.
func (m *MockModel) Script(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// FailNext queues errors returned before any scripted response is consumed.
func (m *MockModel) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Calls reports how many Generate invocations completed or errored.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		m.mu.Lock()
		m.calls++
		if len(m.failures) > 0 {
			err := m.failures[0]
			m.failures = m.failures[1:]
			m.mu.Unlock()
			errCh <- err
			return
		}
		var full string
		switch {
		case len(m.script) > 0:
			full = m.script[0]
			m.script = m.script[1:]
		case len(req.Messages) > 0:
			last := req.Messages[len(req.Messages)-1].Content
			full = m.responses[last]
		}
		m.mu.Unlock()

		if full == "" {
			if len(req.Messages) == 0 {
				errCh <- fmt.Errorf("no messages provided")
				return
			}
			full = fmt.Sprintf("Mock response to: %s", req.Messages[len(req.Messages)-1].Content)
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop", Usage: &TokenUsage{TotalTokens: len(full) / 4}}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
