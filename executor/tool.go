package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/logging"
	"github.com/speedy0526/agents/session"
	"github.com/speedy0526/agents/tool"
)

// toolExecutor performs one tool call. An unknown name is an immediate
// failure; nothing escapes as a raised error.
type toolExecutor struct {
	tools  *tool.Registry
	store  *session.Store
	name   string
	params map[string]any
	logger logging.Logger
}

func (e *toolExecutor) Execute(ctx context.Context) core.ExecutionResult {
	start := time.Now()
	result, err := e.tools.Execute(ctx, e.name, e.params)
	duration := time.Since(start)

	if err != nil {
		e.store.AppendToolResult(e.name, err.Error(), true)
		e.logger.Warn("executor.tool_failed", "tool", e.name, "duration", duration, "error", err)
		res := core.FailedResultFrom(err, fmt.Sprintf("Tool %s failed", e.name))
		res.ExecutionTime = duration
		return res
	}

	rendered := renderResult(result)
	e.store.AppendToolResult(e.name, rendered, false)
	e.logger.Info("executor.tool_ok", "tool", e.name, "duration", duration)

	res := core.SucceededResult(result, fmt.Sprintf("Tool %s succeeded: %s", e.name, clip(rendered, 200)))
	res.ExecutionTime = duration
	res.Metadata["tool_name"] = e.name
	return res
}

// renderResult flattens a tool's return value into text for the context log.
func renderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "(no output)"
	case string:
		return v
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
