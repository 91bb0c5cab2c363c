// Package agent implements the orchestrator: the bounded think→route→
// execute→observe loop that turns one user request into a sequence of
// model-driven decisions and delegated executions.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/executor"
	"github.com/speedy0526/agents/gateway"
	"github.com/speedy0526/agents/logging"
	"github.com/speedy0526/agents/session"
	"github.com/speedy0526/agents/skill"
	"github.com/speedy0526/agents/tool"
)

// tangibleResultsKey is the shared-memory flag signaling that a dispatched
// execution produced real output (files, data, explicit completion).
const tangibleResultsKey = "has_tangible_results"

// Status is the terminal state of one Run.
type Status string

const (
	StatusFinished  Status = "finished"
	StatusAborted   Status = "aborted"
	StatusExhausted Status = "exhausted"
)

// RunResult reports one completed orchestration run.
type RunResult struct {
	Status Status
	// Reply is the reasoning text of the terminal decision, or the standard
	// incomplete message on exhaustion.
	Reply string
	// Complete is true only for a finish decision; respond_to_user ends the
	// run without marking the task complete.
	Complete   bool
	Steps      int
	TokensUsed int
	Elapsed    time.Duration
}

// TangiblePredicate decides whether an execution result counts as tangible
// progress. Best-effort heuristic, pluggable so callers can tighten it.
type TangiblePredicate func(result core.ExecutionResult) bool

// Options configure an Orchestrator.
type Options struct {
	// MaxSteps bounds the outer loop; exhaustion is a normal terminal state.
	MaxSteps int
	// ProgressThreshold is the step index at which the one-shot progress
	// reminder fires when no tangible results exist yet.
	ProgressThreshold int
	// Tangible overrides the default tangible-results heuristic.
	Tangible TangiblePredicate
	Sink     core.Sink
	Logger   logging.Logger
}

// Orchestrator drives one session. A session runs strictly sequentially;
// concurrency lives below it, in the dispatcher and the gateway's shared
// admission gate.
type Orchestrator struct {
	gateway    *gateway.Gateway
	dispatcher *executor.Dispatcher
	store      *session.Store
	tools      *tool.Registry
	skills     *skill.Registry
	sink       core.Sink
	logger     logging.Logger

	maxSteps          int
	progressThreshold int
	tangible          TangiblePredicate
	aborted           atomic.Bool
}

// New creates an orchestrator around an existing session store. The system
// prompt, composed from the tool and skill catalogs, is appended once and is
// never evicted; the initial state is force-saved as a checkpoint.
func New(
	gw *gateway.Gateway,
	dispatcher *executor.Dispatcher,
	store *session.Store,
	tools *tool.Registry,
	skills *skill.Registry,
	optFns ...func(o *Options),
) (*Orchestrator, error) {
	opts := Options{
		MaxSteps:          25,
		ProgressThreshold: 5,
		Sink:              core.NoOpSink{},
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Sink == nil {
		opts.Sink = core.NoOpSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tangible == nil {
		opts.Tangible = DefaultTangible
	}

	o := &Orchestrator{
		gateway:           gw,
		dispatcher:        dispatcher,
		store:             store,
		tools:             tools,
		skills:            skills,
		sink:              opts.Sink,
		logger:            opts.Logger,
		maxSteps:          opts.MaxSteps,
		progressThreshold: opts.ProgressThreshold,
		tangible:          opts.Tangible,
	}

	if store.Len() == 0 {
		store.AppendSystem(o.systemPrompt())
	}
	if err := store.Save(); err != nil {
		return nil, fmt.Errorf("checkpoint session: %w", err)
	}

	o.emit(core.EventNewSession, store.ID(), nil)
	return o, nil
}

// Store exposes the session store, e.g. for transport-driven clear_context.
func (o *Orchestrator) Store() *session.Store { return o.store }

// Abort requests cooperative cancellation. The signal is checked once per
// loop iteration; an in-flight call is allowed to finish.
func (o *Orchestrator) Abort() { o.aborted.Store(true) }

// Run executes one user request to a terminal state.
func (o *Orchestrator) Run(ctx context.Context, userRequest string) (*RunResult, error) {
	start := time.Now()
	o.store.AppendUser(userRequest)
	o.emit(core.EventUserMessage, userRequest, nil)

	result := &RunResult{}
	progressChecked := false

	for step := 0; step < o.maxSteps; step++ {
		result.Steps = step + 1

		if o.aborted.Load() || ctx.Err() != nil {
			result.Status = StatusAborted
			result.Reply = "Run aborted."
			result.Elapsed = time.Since(start)
			o.emit(core.EventAgentInfo, result.Reply, o.stepMeta(step, start))
			return result, ctx.Err()
		}

		// Progress guard: soft one-shot reminder, not a hard stop.
		if step >= o.progressThreshold && !progressChecked && !o.store.SharedBool(tangibleResultsKey) {
			progressChecked = true
			o.store.AppendSystem("Progress check: several steps have passed without tangible results. " +
				"Either produce output with a tool or skill, finish with what you have, or ask the user for clarification.")
			o.logger.Debug("orchestrator.progress_check", "step", step)
		}

		decision, completion, err := o.gateway.Decide(ctx, o.store.Messages(true))
		if completion != nil {
			result.TokensUsed += completion.Usage.TotalTokens
		}
		if err != nil {
			if core.CodeOf(err) == core.ErrMalformedModelOutput {
				// Recoverable: log, record, re-think next iteration.
				o.store.AppendToolResult("decision", err.Error(), true)
				o.emit(core.EventError, err.Error(), o.stepMeta(step, start))
				o.logger.Warn("orchestrator.malformed_decision", "step", step, "error", err)
				continue
			}
			result.Status = StatusAborted
			result.Reply = "Model unavailable."
			result.Elapsed = time.Since(start)
			o.emit(core.EventError, err.Error(), o.stepMeta(step, start))
			return result, err
		}

		o.store.AppendThought(decision.Reasoning)
		o.emit(core.EventAgentThinking, decision.Reasoning, o.stepMeta(step, start))

		switch decision.NextAction {
		case core.ActionFinish:
			result.Status = StatusFinished
			result.Complete = true
			result.Reply = decision.Reasoning
			result.Elapsed = time.Since(start)
			o.store.AppendAssistant(decision.Reasoning)
			o.emit(core.EventAgentComplete, decision.Reasoning, o.stepMeta(step, start))
			return result, o.store.Save()
		case core.ActionRespondToUser:
			result.Status = StatusFinished
			result.Reply = decision.Reasoning
			result.Elapsed = time.Since(start)
			o.store.AppendAssistant(decision.Reasoning)
			o.emit(core.EventAgentResult, decision.Reasoning, o.stepMeta(step, start))
			return result, o.store.Save()
		case core.ActionThink:
			continue
		}

		o.execute(ctx, *decision, step, start, result)

		if _, err := o.store.CompressIfNeeded(); err != nil {
			o.logger.Warn("orchestrator.compress_failed", "error", err)
		}
	}

	result.Status = StatusExhausted
	result.Reply = "Maximum steps reached. Task incomplete."
	result.Elapsed = time.Since(start)
	o.emit(core.EventAgentComplete, result.Reply, map[string]any{
		"total_steps": o.maxSteps,
		"elapsed":     time.Since(start).Seconds(),
	})
	return result, o.store.Save()
}

// execute is the EXECUTE + OBSERVE half of one step: dispatch against a
// snapshot, fold the summary back, maintain the tangible-results flag.
func (o *Orchestrator) execute(ctx context.Context, decision core.Decision, step int, start time.Time, result *RunResult) {
	label := decision.ToolName
	if label == "" {
		label = decision.SubagentCommand
	}
	o.emit(core.EventAgentAction, fmt.Sprintf("%s: %s", decision.NextAction, label), o.stepMeta(step, start))

	// Checkpoint before handing off to a child executor.
	if err := o.store.Save(); err != nil {
		o.logger.Warn("orchestrator.checkpoint_failed", "error", err)
	}

	execResult := o.dispatcher.Dispatch(ctx, decision, o.store.Snapshot())
	result.TokensUsed += execResult.TokensUsed

	if !execResult.Success {
		o.store.AppendToolResult(label, execResult.Error, true)
		o.emit(core.EventErrorEnhanced, execResult.Error, mergeMeta(o.stepMeta(step, start), execResult.Metadata))
		o.logger.Warn("orchestrator.execution_failed", "step", step, "action", decision.NextAction, "error", execResult.Error)
		return
	}

	summary := execResult.Summary
	if summary == "" {
		summary = "Execution succeeded."
	}
	o.store.AppendToolResult(label, summary, false)
	o.emit(core.EventAgentResult, summary, o.stepMeta(step, start))

	if o.tangible(execResult) && !o.store.SharedBool(tangibleResultsKey) {
		o.store.SetShared(tangibleResultsKey, true)
		o.store.AppendSystem("Tangible results have been produced. " +
			"Check whether the task is now complete; if so, finish.")
		o.logger.Debug("orchestrator.tangible_results", "step", step)
	}
}

// systemPrompt composes the session's first entry from the capability
// catalogs.
func (o *Orchestrator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an autonomous agent. Work toward the user's request step by step, ")
	b.WriteString("delegating to tools, skills and chains as needed, and finish when the task is done.\n")
	if o.tools != nil {
		if catalog := o.tools.Describe(); catalog != "" {
			b.WriteString("\n## Available Tools\n\n")
			b.WriteString(catalog)
		}
	}
	if o.skills != nil {
		if catalog := o.skills.Describe(); catalog != "" {
			b.WriteString("\n## Available Skills\n\n")
			b.WriteString(catalog)
		}
	}
	return b.String()
}

func (o *Orchestrator) stepMeta(step int, start time.Time) map[string]any {
	return map[string]any{
		"step_number": step + 1,
		"total_steps": o.maxSteps,
		"elapsed":     time.Since(start).Seconds(),
	}
}

func (o *Orchestrator) emit(eventType core.EventType, content string, metadata map[string]any) {
	event := core.NewEvent(o.store.ID(), eventType, content)
	if metadata != nil {
		event = event.WithMetadata(metadata)
	}
	o.sink.Emit(event)
}

func mergeMeta(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// DefaultTangible is the built-in tangible-results heuristic: skill outcomes
// with artifacts, completed chains, file-bearing tool results, or summaries
// carrying an explicit completion marker.
func DefaultTangible(result core.ExecutionResult) bool {
	if !result.Success {
		return false
	}
	switch v := result.Result.(type) {
	case core.SkillOutcome:
		return len(v.FilePaths)+len(v.Items) > 0
	case core.ChainOutcome:
		return v.StepCount > 0
	case map[string]any:
		for _, key := range []string{"file_path", "path", "items", "results", "data"} {
			if _, ok := v[key]; ok {
				return true
			}
		}
	}
	lower := strings.ToLower(result.Summary)
	return strings.Contains(lower, "complete") || strings.Contains(lower, "saved") ||
		strings.Contains(lower, "generated")
}
