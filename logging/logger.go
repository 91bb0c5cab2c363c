package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the minimal logging interface the engine depends on. Arguments
// follow slog conventions: alternating key/value pairs after the message.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. Useful for tests or when logging is
// disabled.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NoOpLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NoOpLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(string, ...any) {}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct{ *slog.Logger }

// Debug implements Logger.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info implements Logger.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn implements Logger.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error implements Logger.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger { return &SlogAdapter{Logger: logger} }

// NewDefaultSlogLogger creates a Logger from slog.Default().
func NewDefaultSlogLogger() Logger { return NewSlogAdapter(slog.Default()) }

// Config configures construction of an AgentLogger.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
	SessionID string
}

// DefaultConfig returns a baseline JSON info-level configuration.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// AgentLogger wraps slog adding component/session cloning helpers and domain
// convenience methods. With* methods return cheap copies.
type AgentLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
}

// New builds an AgentLogger from a config (or defaults when nil).
func New(cfg *Config) *AgentLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &AgentLogger{logger: slog.New(handler), component: cfg.Component, sessionID: cfg.SessionID}
}

// WithComponent sets the logical component (session, gateway, executor, agent).
func (l *AgentLogger) WithComponent(c string) *AgentLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithSession attaches a session identifier to every entry.
func (l *AgentLogger) WithSession(sid string) *AgentLogger {
	nl := *l
	nl.sessionID = sid
	return &nl
}

func (l *AgentLogger) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	if l.component != "" {
		out = append(out, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		out = append(out, slog.String("session_id", l.sessionID))
	}
	return append(out, extra...)
}

func (l *AgentLogger) log(level slog.Level, msg string, args []any) {
	rec := l.logger
	if l.component != "" {
		rec = rec.With("component", l.component)
	}
	if l.sessionID != "" {
		rec = rec.With("session_id", l.sessionID)
	}
	rec.Log(context.Background(), level, msg, args...)
}

// Debug implements Logger.
func (l *AgentLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }

// Info implements Logger.
func (l *AgentLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args) }

// Warn implements Logger.
func (l *AgentLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args) }

// Error implements Logger.
func (l *AgentLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// LogToolCall records execution details for a tool invocation.
func (l *AgentLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	level, msg := slog.LevelInfo, "Tool execution completed"
	if !success {
		level, msg = slog.LevelError, "Tool execution failed"
	}
	attrs := l.attrs(slog.String("tool_name", tool), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogLLMCall records model call latency, token usage and success.
func (l *AgentLogger) LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error) {
	level, msg := slog.LevelInfo, "LLM call completed"
	if !success {
		level, msg = slog.LevelError, "LLM call failed"
	}
	attrs := l.attrs(slog.String("model", model), slog.Int("token_count", tokens), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogSkillExecution records aggregate skill inner-loop metrics.
func (l *AgentLogger) LogSkillExecution(skill string, steps, toolCalls int, dur time.Duration, success bool) {
	level, msg := slog.LevelInfo, "Skill execution completed"
	if !success {
		level, msg = slog.LevelError, "Skill execution failed"
	}
	attrs := l.attrs(
		slog.String("skill_name", skill),
		slog.Int("step_count", steps),
		slog.Int("tool_calls", toolCalls),
		slog.Duration("duration", dur),
		slog.Bool("success", success),
	)
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
