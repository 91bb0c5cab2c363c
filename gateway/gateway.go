// Package gateway is the single choke point for model traffic. Every call
// passes the shared admission gate (bounded in-flight slots plus pacing),
// is retried with exponential backoff and jitter on transient upstream
// failures, and, for decision calls, has its JSON payload extracted and
// validated into a core.Decision.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/internal/jsonx"
	"github.com/speedy0526/agents/logging"
	"github.com/speedy0526/agents/model"
)

// metaInstruction is appended to every decision call so the model emits a
// machine-readable action. Kept as one block so prompt and parser stay in
// sync.
const metaInstruction = `<OUTPUT_FORMAT>
You must respond with a single JSON object and nothing else:
{
  "reasoning": "brief explanation of your thinking",
  "next_action": "use_tool" | "use_skill" | "call_chain" | "think" | "respond_to_user" | "finish",
  "tool_name": "name of the tool (required for use_tool)",
  "tool_parameters": {"param": "value"},
  "subagent_type": "tool" | "skill" | "chain" (required for use_skill and call_chain),
  "subagent_command": "the skill name or chain definition to execute"
}
Choose "finish" only when the task is fully complete.
</OUTPUT_FORMAT>`

// Options configure a Gateway.
type Options struct {
	// MaxInFlight bounds concurrent upstream calls across all executors.
	MaxInFlight int
	// Pacing is the minimum spacing applied after admission.
	Pacing time.Duration
	// MaxRetries bounds retry attempts for transient upstream failures.
	MaxRetries int
	// InitialBackoff seeds the exponential backoff schedule.
	InitialBackoff time.Duration
	// MaxBackoff caps a single backoff interval.
	MaxBackoff time.Duration
	Logger     logging.Logger
}

// Completion is the outcome of a successful gateway call.
type Completion struct {
	Text  string
	Usage model.TokenUsage
}

// Gateway mediates all model access. Safe for concurrent use; a single
// Gateway instance is shared by the orchestrator and every sub-execution.
type Gateway struct {
	model  model.Model
	gate   *core.Gate
	logger logging.Logger

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Gateway around a model.
func New(m model.Model, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		MaxInFlight:    2,
		Pacing:         500 * time.Millisecond,
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Gateway{
		model:          m,
		gate:           core.NewGate(opts.MaxInFlight, opts.Pacing),
		logger:         opts.Logger,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
	}
}

// Gate exposes the shared admission gate for observability.
func (g *Gateway) Gate() *core.Gate { return g.gate }

// Info reports the underlying model.
func (g *Gateway) Info() model.Info { return g.model.Info() }

// Complete performs one gated, retried completion and returns the final text.
func (g *Gateway) Complete(ctx context.Context, messages []core.Message) (*Completion, error) {
	return g.call(ctx, model.Request{Messages: messages})
}

// Decide appends the output-format instruction, requests a JSON response and
// parses it into a validated Decision. Extraction failures surface as
// malformed-output errors so the caller can decide whether to re-prompt.
func (g *Gateway) Decide(ctx context.Context, messages []core.Message) (*core.Decision, *Completion, error) {
	prompt := make([]core.Message, 0, len(messages)+1)
	prompt = append(prompt, messages...)
	prompt = append(prompt, core.Message{Role: core.RoleSystem, Content: metaInstruction})

	completion, err := g.call(ctx, model.Request{Messages: prompt, JSONMode: true})
	if err != nil {
		return nil, nil, err
	}

	obj, err := jsonx.ExtractObject(completion.Text)
	if err != nil {
		return nil, completion, core.NewAgentError(core.ErrMalformedModelOutput,
			"model response contains no JSON object").WithDetail("response", truncate(completion.Text, 500))
	}

	raw, _ := json.Marshal(obj)
	var decision core.Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, completion, core.WrapAgentError(core.ErrMalformedModelOutput,
			"model response is not a valid decision", err)
	}
	decision.NextAction = strings.ToLower(strings.TrimSpace(decision.NextAction))
	if err := decision.Validate(); err != nil {
		return nil, completion, err
	}
	return &decision, completion, nil
}

// call runs one admission-gated request with retry. Transient upstream errors
// are retried with exponential backoff and jitter; fatal ones abort at once.
func (g *Gateway) call(ctx context.Context, req model.Request) (*Completion, error) {
	var completion *Completion
	attempt := 0

	operation := func() error {
		attempt++
		if err := g.gate.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}
		defer g.gate.Release()

		start := time.Now()
		result, err := g.generate(ctx, req)
		duration := time.Since(start)
		if err != nil {
			classified := classify(err)
			g.logger.Warn("gateway.call_failed",
				"model", g.model.Info().Name,
				"attempt", attempt,
				"duration", duration,
				"code", core.CodeOf(classified),
				"error", err)
			if !core.Retryable(classified) {
				return backoff.Permanent(classified)
			}
			return classified
		}
		g.logger.Debug("gateway.call_ok",
			"model", g.model.Info().Name,
			"attempt", attempt,
			"duration", duration,
			"tokens", result.Usage.TotalTokens)
		completion = result
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.initialBackoff
	bo.MaxInterval = g.maxBackoff
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(g.maxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// generate drains one model call into a Completion.
func (g *Gateway) generate(ctx context.Context, req model.Request) (*Completion, error) {
	respCh, errCh := g.model.Generate(ctx, req)

	var text strings.Builder
	var usage model.TokenUsage
	for resp := range respCh {
		if resp.Partial {
			continue
		}
		text.WriteString(resp.Text)
		if resp.Usage != nil {
			usage = *resp.Usage
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return &Completion{Text: text.String(), Usage: usage}, nil
}

// classify maps raw upstream errors onto the transient/fatal taxonomy.
// Already-classified errors pass through untouched.
func classify(err error) error {
	if code := core.CodeOf(err); code == core.ErrUpstreamTransient || code == core.ErrUpstreamFatal {
		return err
	}

	msg := strings.ToLower(err.Error())
	transientMarkers := []string{
		"rate limit", "rate_limit", "429",
		"timeout", "deadline exceeded",
		"overloaded", "529",
		"connection", "temporarily",
		"500", "502", "503", "504",
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return core.WrapAgentError(core.ErrUpstreamTransient, "transient upstream failure", err)
		}
	}
	return core.WrapAgentError(core.ErrUpstreamFatal, "upstream call failed", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes truncated)", s[:n], len(s)-n)
}
