// Package executor implements the execution dispatcher: each routed decision
// runs in exactly one isolated executor (tool, skill or chain) against a
// freshly allocated private context store seeded from the parent snapshot.
// Executors communicate with the orchestrator only through the uniform
// ExecutionResult envelope; failures are captured, never raised across the
// boundary.
package executor

import (
	"context"
	"fmt"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/gateway"
	"github.com/speedy0526/agents/logging"
	"github.com/speedy0526/agents/session"
	"github.com/speedy0526/agents/skill"
	"github.com/speedy0526/agents/tool"
)

// Executor is one isolated unit of work built for a single dispatch. It runs
// to completion and reports through the envelope only.
type Executor interface {
	Execute(ctx context.Context) core.ExecutionResult
}

// Options configure a Dispatcher.
type Options struct {
	// MaxChainDepth bounds recursive chain nesting; a chain step past this
	// depth fails closed.
	MaxChainDepth int
	// InnerStepCap bounds the skill executor's inner loop, independent of the
	// orchestrator's outer budget.
	InnerStepCap int
	// Recognizer maps free-text model output to tool calls inside the skill
	// inner loop. Defaults to the regex recognizer.
	Recognizer CallRecognizer
	Logger     logging.Logger
}

// Dispatcher routes decisions to isolated executors. Safe for concurrent use:
// concurrent dispatches share only the gateway's admission gate and the tool
// registry.
type Dispatcher struct {
	gateway *gateway.Gateway
	tools   *tool.Registry
	skills  *skill.Registry
	logger  logging.Logger

	maxChainDepth int
	innerStepCap  int
	recognizer    CallRecognizer
}

// New creates a Dispatcher. The skill registry may be nil when no skills are
// configured; skill and chain-with-skill dispatches then fail cleanly.
func New(gw *gateway.Gateway, tools *tool.Registry, skills *skill.Registry, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxChainDepth: 3,
		InnerStepCap:  20,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Recognizer == nil {
		opts.Recognizer = NewRegexRecognizer()
	}

	return &Dispatcher{
		gateway:       gw,
		tools:         tools,
		skills:        skills,
		logger:        opts.Logger,
		maxChainDepth: opts.MaxChainDepth,
		innerStepCap:  opts.InnerStepCap,
		recognizer:    opts.Recognizer,
	}
}

// Dispatch builds one executor for the decision and runs it. The private
// store is uniquely identified so concurrent dispatches never share state;
// only the snapshot's plain data crosses the parent→child boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, decision core.Decision, snap session.Snapshot) core.ExecutionResult {
	exec, err := d.executorFor(decision, snap, 0)
	if err != nil {
		return core.FailedResultFrom(err, "dispatch failed")
	}

	result := exec.Execute(ctx)
	d.logger.Debug("dispatcher.executed",
		"action", decision.NextAction,
		"success", result.Success,
		"tokens", result.TokensUsed)
	return result
}

// executorFor is the single factory keyed by action / step type.
func (d *Dispatcher) executorFor(decision core.Decision, snap session.Snapshot, depth int) (Executor, error) {
	switch decision.NextAction {
	case core.ActionUseTool:
		return &toolExecutor{
			tools:  d.tools,
			store:  d.newChildStore(snap),
			name:   decision.ToolName,
			params: decision.ToolParameters,
			logger: d.logger,
		}, nil
	case core.ActionUseSkill:
		return &skillExecutor{
			dispatcher: d,
			store:      d.newChildStore(snap),
			name:       decision.SubagentCommand,
			request:    snap.LastUserRequest,
		}, nil
	case core.ActionCallChain:
		return &chainExecutor{
			dispatcher: d,
			snap:       snap,
			definition: decision.SubagentCommand,
			depth:      depth,
		}, nil
	default:
		return nil, core.NewAgentError(core.ErrMalformedModelOutput,
			fmt.Sprintf("action %q is not dispatchable", decision.NextAction))
	}
}

// newChildStore allocates an in-memory private store seeded from the parent
// snapshot. Child stores never persist; durable state belongs to the session.
func (d *Dispatcher) newChildStore(snap session.Snapshot) *session.Store {
	store, _ := session.NewStore("exec_"+core.ShortID(), func(o *session.Options) {
		o.Logger = d.logger
	})
	store.SeedSnapshot(snap)
	return store
}
