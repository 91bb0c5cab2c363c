package core

import "time"

// ExecutionResult is the uniform envelope returned by every executor. It is
// the isolation boundary between the dispatcher and executor internals: the
// orchestrator folds Summary back into its context and never inspects the
// executor's private state.
//
// Contract: a failed result always carries a non-empty Error. Constructors
// below enforce this.
type ExecutionResult struct {
	Success       bool           `json:"success"`
	Result        any            `json:"result,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	TokensUsed    int            `json:"tokens_used,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time,omitempty"`
}

// SucceededResult builds a successful envelope.
func SucceededResult(result any, summary string) ExecutionResult {
	return ExecutionResult{Success: true, Result: result, Summary: summary, Metadata: map[string]any{}}
}

// FailedResult builds a failed envelope, guaranteeing a non-empty error text
// and recording the taxonomy code in metadata.
func FailedResult(code ErrorCode, errText, summary string) ExecutionResult {
	if errText == "" {
		errText = string(code)
	}
	return ExecutionResult{
		Success:  false,
		Summary:  summary,
		Error:    errText,
		Metadata: map[string]any{"error_code": string(code)},
	}
}

// FailedResultFrom converts a coded error into a failed envelope, copying its
// structured details into metadata.
func FailedResultFrom(err error, summary string) ExecutionResult {
	res := FailedResult(CodeOf(err), err.Error(), summary)
	if ae, ok := err.(*AgentError); ok {
		for k, v := range ae.Details {
			res.Metadata[k] = v
		}
	}
	return res
}

// SkillOutcome is the richer result payload produced by the skill executor's
// inner loop. It travels inside ExecutionResult.Result so the dispatcher
// boundary stays uniform.
type SkillOutcome struct {
	Success       bool             `json:"success"`
	Confirmation  string           `json:"confirmation"`
	Summary       string           `json:"summary,omitempty"`
	Details       string           `json:"details,omitempty"`
	Items         []map[string]any `json:"items,omitempty"`
	FilePaths     []string         `json:"file_paths,omitempty"`
	Count         int              `json:"count,omitempty"`
	Errors        []string         `json:"errors,omitempty"`
	TokensUsed    int              `json:"tokens_used,omitempty"`
	ExecutionTime time.Duration    `json:"execution_time,omitempty"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// SummaryOrConfirmation prefers the summary text, falling back to the
// confirmation line when no summary was compiled.
func (o SkillOutcome) SummaryOrConfirmation() string {
	if o.Summary != "" {
		return o.Summary
	}
	return o.Confirmation
}

// ChainOutcome aggregates a successful chain run: ordered per-step results
// plus token/time totals.
type ChainOutcome struct {
	Steps     []ExecutionResult `json:"steps"`
	StepCount int               `json:"step_count"`
	Summary   string            `json:"summary"`
}
