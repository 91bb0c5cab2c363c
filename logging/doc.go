// Package logging provides a tiny abstraction over slog so engine code can
// depend on a minimal interface (Logger) while callers plug in any structured
// logger. It also offers a richer AgentLogger with contextual helpers
// (component, session) and domain helpers for tool, model and skill
// executions.
package logging
