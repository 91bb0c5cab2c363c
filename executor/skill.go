package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/session"
	"github.com/speedy0526/agents/tool"
)

// completionIndicators stop the inner loop when any appears in the model's
// free-text output (case-insensitive substring match).
var completionIndicators = []string{
	"task complete",
	"workflow complete",
	"skill complete",
	"finished",
	"done",
	"completed successfully",
	"file saved",
	"report generated",
}

// completionDirective is seeded alongside the skill briefing so the loop has
// a reliable stop phrase to look for.
const completionDirective = "Work through the skill step by step. " +
	"When every step is finished, state clearly: \"Task complete.\""

// maxInnerErrors is the hard stop for one skill invocation.
const maxInnerErrors = 3

// skillExecutor runs one skill invocation: a bounded inner loop of free-text
// completions with best-effort tool-call recognition, artifact tracking and
// fail-fast error accumulation.
type skillExecutor struct {
	dispatcher *Dispatcher
	store      *session.Store
	name       string
	request    string
}

func (e *skillExecutor) Execute(ctx context.Context) core.ExecutionResult {
	start := time.Now()
	d := e.dispatcher

	if d.skills == nil {
		return core.FailedResult(core.ErrSkillNotFound, "no skill registry configured",
			fmt.Sprintf("Skill %s unavailable", e.name))
	}

	inv, err := d.skills.Invoke(e.name, e.request, d.tools)
	if err != nil {
		return core.FailedResultFrom(err, fmt.Sprintf("Skill %s could not start", e.name))
	}

	e.store.AppendSystem(inv.Briefing.Content)
	e.store.AppendSystem(completionDirective)
	e.store.AppendAssistant(inv.Notice.Content)

	outcome := e.runLoop(ctx, inv.Tools)
	outcome.ExecutionTime = time.Since(start)

	d.logger.Info("executor.skill_done",
		"skill", e.name,
		"success", outcome.Success,
		"errors", len(outcome.Errors),
		"files", len(outcome.FilePaths),
		"tokens", outcome.TokensUsed,
		"duration", outcome.ExecutionTime)

	res := core.ExecutionResult{
		Success:       outcome.Success,
		Result:        outcome,
		Summary:       outcome.SummaryOrConfirmation(),
		Metadata:      map[string]any{"skill": e.name},
		TokensUsed:    outcome.TokensUsed,
		ExecutionTime: outcome.ExecutionTime,
	}
	if !outcome.Success {
		res.Error = fmt.Sprintf("skill %s did not complete: %s", e.name, strings.Join(outcome.Errors, "; "))
		if len(outcome.Errors) == 0 {
			res.Error = fmt.Sprintf("skill %s produced no tangible output", e.name)
		}
		res.Metadata["error_code"] = string(core.ErrSkillExecutionFailed)
	}
	return res
}

// runLoop is the bounded inner loop. Success requires fewer than three
// accumulated errors and at least one artifact or data output. All tool
// execution goes through the invocation's filtered registry; a call naming a
// tool outside it fails like any unknown tool, whatever the recognizer
// returned.
func (e *skillExecutor) runLoop(ctx context.Context, tools *tool.Registry) core.SkillOutcome {
	d := e.dispatcher
	outcome := core.SkillOutcome{Metadata: map[string]any{"skill": e.name}}
	toolNames := tools.Names()
	progressChecked := false

	for step := 0; step < d.innerStepCap; step++ {
		if len(outcome.Errors) >= maxInnerErrors {
			break
		}

		completion, err := d.gateway.Complete(ctx, e.store.Messages(true))
		if err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
			e.store.AppendToolResult("model", err.Error(), true)
			continue
		}
		outcome.TokensUsed += completion.Usage.TotalTokens
		text := completion.Text
		e.store.AppendAssistant(text)

		if indicatesCompletion(text) {
			outcome.Confirmation = clip(strings.TrimSpace(text), 500)
			break
		}

		call, ok := d.recognizer.Recognize(text, toolNames)
		if !ok {
			// Drifting without tool use: one-shot reminder, then let the
			// step cap handle it.
			if step > 3 && artifactCount(outcome) == 0 && !progressChecked {
				progressChecked = true
				e.store.AppendSystem("Progress check: no tool has been used and nothing has been produced yet. " +
					"Use one of the available tools or state that the task is complete.")
			}
			continue
		}

		e.executeCall(ctx, tools, call, &outcome)
	}

	outcome.Count = artifactCount(outcome)
	outcome.Success = len(outcome.Errors) < maxInnerErrors && outcome.Count > 0
	if outcome.Success {
		outcome.Summary = e.summarize(outcome)
	}
	return outcome
}

// executeCall runs one recognized tool call against the filtered registry and
// records artifacts.
func (e *skillExecutor) executeCall(ctx context.Context, tools *tool.Registry, call Call, outcome *core.SkillOutcome) {
	result, err := tools.Execute(ctx, call.Tool, call.Parameters)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		e.store.AppendToolResult(call.Tool, err.Error(), true)
		return
	}

	rendered := renderResult(result)
	e.store.AppendToolResult(call.Tool, rendered, false)

	if path := artifactPath(call.Parameters, result); path != "" {
		outcome.FilePaths = append(outcome.FilePaths, path)
	} else if items := dataItems(result); len(items) > 0 {
		outcome.Items = append(outcome.Items, items...)
	}
}

func (e *skillExecutor) summarize(outcome core.SkillOutcome) string {
	var parts []string
	if n := len(outcome.FilePaths); n > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s): %s", n, strings.Join(outcome.FilePaths, ", ")))
	}
	if n := len(outcome.Items); n > 0 {
		parts = append(parts, fmt.Sprintf("%d data item(s)", n))
	}
	return fmt.Sprintf("Skill %s completed with %s", e.name, strings.Join(parts, " and "))
}

func indicatesCompletion(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range completionIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func artifactCount(outcome core.SkillOutcome) int {
	return len(outcome.FilePaths) + len(outcome.Items)
}

// artifactPath extracts a produced file path from call parameters or the tool
// result, the tangible-progress evidence the success check relies on.
func artifactPath(params map[string]any, result any) string {
	for _, key := range []string{"file_path", "path", "filename"} {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	if m, ok := result.(map[string]any); ok {
		for _, key := range []string{"file_path", "path", "filename"} {
			if v, ok := m[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// dataItems surfaces structured list output (search results, records) from a
// tool result.
func dataItems(result any) []map[string]any {
	extract := func(raw []any) []map[string]any {
		var items []map[string]any
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	}

	switch v := result.(type) {
	case []any:
		return extract(v)
	case []map[string]any:
		return v
	case map[string]any:
		for _, key := range []string{"items", "results", "data"} {
			if raw, ok := v[key].([]any); ok {
				return extract(raw)
			}
		}
	}
	return nil
}
