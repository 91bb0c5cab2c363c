package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/session"
)

// chainExecutor runs an ordered list of steps strictly sequentially with
// fail-fast semantics: the first parse error, unknown type or failed step
// stops the chain, reporting the step index and inner error. Each step's
// output feeds the next step's parameters under the fixed previous-result
// key. Nested chains carry a depth counter and fail closed past the limit.
type chainExecutor struct {
	dispatcher *Dispatcher
	snap       session.Snapshot
	definition string
	depth      int
}

func (e *chainExecutor) Execute(ctx context.Context) core.ExecutionResult {
	start := time.Now()
	d := e.dispatcher

	if e.depth >= d.maxChainDepth {
		return core.FailedResultFrom(
			core.NewAgentError(core.ErrChainInvalidFormat,
				fmt.Sprintf("chain nesting exceeds depth limit %d", d.maxChainDepth)).
				WithDetail("depth", e.depth),
			"Chain rejected")
	}

	steps, err := core.ParseChainSteps(e.definition)
	if err != nil {
		return core.FailedResultFrom(err, "Chain definition invalid")
	}

	outcome := core.ChainOutcome{}
	var previous any
	totalTokens := 0

	for i, step := range steps {
		stepResult := e.executeStep(ctx, step, previous)
		outcome.Steps = append(outcome.Steps, stepResult)
		outcome.StepCount++
		totalTokens += stepResult.TokensUsed

		if !stepResult.Success {
			d.logger.Warn("executor.chain_step_failed",
				"step", i, "type", step.Type, "command", step.Command, "error", stepResult.Error)
			res := core.FailedResult(core.ErrChainStepFailed,
				fmt.Sprintf("chain step %d (%s %s) failed: %s", i, step.Type, step.Command, stepResult.Error),
				fmt.Sprintf("Chain stopped at step %d of %d", i+1, len(steps)))
			res.Result = outcome
			res.Metadata["step_index"] = i
			res.Metadata["executed_steps"] = outcome.StepCount
			res.TokensUsed = totalTokens
			res.ExecutionTime = time.Since(start)
			return res
		}

		if stepResult.Result != nil {
			previous = stepResult.Result
		} else {
			previous = stepResult.Summary
		}
	}

	outcome.Summary = fmt.Sprintf("Chain completed all %d steps", len(steps))
	res := core.SucceededResult(outcome, outcome.Summary)
	res.Metadata["executed_steps"] = outcome.StepCount
	res.TokensUsed = totalTokens
	res.ExecutionTime = time.Since(start)
	return res
}

// executeStep dispatches one chain step through the shared executor factory.
func (e *chainExecutor) executeStep(ctx context.Context, step core.ChainStep, previous any) core.ExecutionResult {
	params := make(map[string]any, len(step.Parameters)+1)
	for k, v := range step.Parameters {
		params[k] = v
	}
	if previous != nil {
		params[core.PreviousResultKey] = previous
	}

	var decision core.Decision
	switch step.Type {
	case core.StepTool:
		decision = core.Decision{
			NextAction:     core.ActionUseTool,
			ToolName:       step.Command,
			ToolParameters: params,
		}
	case core.StepSkill:
		decision = core.Decision{
			NextAction:      core.ActionUseSkill,
			SubagentCommand: step.Command,
			ToolParameters:  params,
		}
	case core.StepChain:
		decision = core.Decision{
			NextAction:      core.ActionCallChain,
			SubagentCommand: step.Command,
			ToolParameters:  params,
		}
	default:
		return core.FailedResult(core.ErrChainInvalidFormat,
			fmt.Sprintf("unknown chain step type %q", step.Type), "Step rejected")
	}

	exec, err := e.dispatcher.executorFor(decision, e.snap, e.depth+1)
	if err != nil {
		return core.FailedResultFrom(err, "Step dispatch failed")
	}
	return exec.Execute(ctx)
}
