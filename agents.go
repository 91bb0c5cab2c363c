// Package agents provides a high-level façade over the orchestration engine.
// Most applications interact with this package by:
//  1. Creating an Engine via New() with a model and optional skill directory
//  2. Registering tools
//  3. Running user requests against named sessions (Run)
//
// The façade wires the gateway, dispatcher and per-session orchestrators
// together while keeping setup concise. Defaults are safe for local
// development; production deployments typically supply a session root
// directory for durable state and a structured logger.
package agents

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/speedy0526/agents/agent"
	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/executor"
	"github.com/speedy0526/agents/gateway"
	"github.com/speedy0526/agents/logging"
	"github.com/speedy0526/agents/model"
	"github.com/speedy0526/agents/session"
	"github.com/speedy0526/agents/skill"
	"github.com/speedy0526/agents/tool"
)

// Options configure the Engine.
type Options struct {
	// SkillDir is the skill bundle directory. Empty disables skills.
	SkillDir string
	// SessionRoot is where session directories live. Empty keeps sessions
	// in memory only.
	SessionRoot string
	// Tools pre-populate the shared tool registry.
	Tools []tool.Tool

	// MaxSteps bounds each session's outer loop.
	MaxSteps int
	// MaxInFlight bounds concurrent model calls across all sessions.
	MaxInFlight int
	// Pacing is the minimum spacing between admitted model calls.
	Pacing time.Duration

	Sink   core.Sink
	Logger logging.Logger
}

// Engine aggregates the shared components: one gateway (with its admission
// gate), one tool registry, one skill registry, and an orchestrator per
// session.
type Engine struct {
	gateway *gateway.Gateway
	tools   *tool.Registry
	skills  *skill.Registry
	sink    core.Sink
	logger  logging.Logger

	sessionRoot string
	maxSteps    int

	mu       sync.Mutex
	sessions map[string]*agent.Orchestrator
}

// New creates an Engine around a model.
func New(m model.Model, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		MaxSteps:    25,
		MaxInFlight: 2,
		Pacing:      500 * time.Millisecond,
		Sink:        core.NoOpSink{},
		Logger:      logging.NoOpLogger{},
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

	var skills *skill.Registry
	if opts.SkillDir != "" {
		var err error
		skills, err = skill.NewRegistry(opts.SkillDir, func(o *skill.Options) {
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("load skills: %w", err)
		}
	}

	gw := gateway.New(m, func(o *gateway.Options) {
		o.MaxInFlight = opts.MaxInFlight
		o.Pacing = opts.Pacing
		o.Logger = opts.Logger
	})

	return &Engine{
		gateway:     gw,
		tools:       tool.NewRegistry(opts.Tools...),
		skills:      skills,
		sink:        opts.Sink,
		logger:      opts.Logger,
		sessionRoot: opts.SessionRoot,
		maxSteps:    opts.MaxSteps,
		sessions:    map[string]*agent.Orchestrator{},
	}, nil
}

// RegisterTool adds a tool to the shared registry.
func (e *Engine) RegisterTool(t tool.Tool) { e.tools.Register(t) }

// Tools exposes the shared tool registry.
func (e *Engine) Tools() *tool.Registry { return e.tools }

// Skills exposes the skill registry, nil when no skill directory was set.
func (e *Engine) Skills() *skill.Registry { return e.skills }

// Session returns the orchestrator for id, creating it on first use.
func (e *Engine) Session(id string) (*agent.Orchestrator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if orch, ok := e.sessions[id]; ok {
		return orch, nil
	}

	store, err := session.NewStore(id, func(o *session.Options) {
		if e.sessionRoot != "" {
			o.Dir = filepath.Join(e.sessionRoot, id)
		}
		o.Logger = e.logger
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	dispatcher := executor.New(e.gateway, e.tools, e.skills, func(o *executor.Options) {
		o.Logger = e.logger
	})
	orch, err := agent.New(e.gateway, dispatcher, store, e.tools, e.skills, func(o *agent.Options) {
		o.MaxSteps = e.maxSteps
		o.Sink = e.sink
		o.Logger = e.logger
	})
	if err != nil {
		return nil, err
	}

	e.sessions[id] = orch
	return orch, nil
}

// Run executes one user request against the named session.
func (e *Engine) Run(ctx context.Context, sessionID, userRequest string) (*agent.RunResult, error) {
	orch, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, userRequest)
}

// HandleEvent routes one inbound transport event: user messages start a run,
// clear_context drops the session's non-system entries, new_session allocates
// a fresh session.
func (e *Engine) HandleEvent(ctx context.Context, event core.Event) error {
	switch event.Type {
	case core.EventUserMessage:
		_, err := e.Run(ctx, event.SessionID, event.Content)
		return err
	case core.EventClearContext:
		orch, err := e.Session(event.SessionID)
		if err != nil {
			return err
		}
		orch.Store().Clear()
		return nil
	case core.EventNewSession:
		_, err := e.Session(event.SessionID)
		return err
	default:
		return fmt.Errorf("unsupported inbound event %q", event.Type)
	}
}
