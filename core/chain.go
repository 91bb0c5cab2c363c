package core

import "encoding/json"

// Chain step types. A chain step may itself be a chain; nesting is bounded by
// the dispatcher's depth limit.
const (
	StepTool  = "tool"
	StepSkill = "skill"
	StepChain = "chain"
)

// ChainStep is one element of an ordered chain. Steps execute strictly
// sequentially; the result of step i becomes the sole input of step i+1 under
// the key "previous_result".
type ChainStep struct {
	Type       string         `json:"type"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// PreviousResultKey is the fixed key under which a chain feeds each step's
// output into the next step's parameters.
const PreviousResultKey = "previous_result"

// ParseChainSteps decodes a chain definition: a JSON array of steps. Any
// decode failure or non-array payload yields ErrChainInvalidFormat.
func ParseChainSteps(definition string) ([]ChainStep, error) {
	var steps []ChainStep
	if err := json.Unmarshal([]byte(definition), &steps); err != nil {
		return nil, WrapAgentError(ErrChainInvalidFormat, "chain definition must be a JSON array of steps", err)
	}
	for i, step := range steps {
		switch step.Type {
		case StepTool, StepSkill, StepChain:
		default:
			return nil, NewAgentError(ErrChainInvalidFormat, "unknown chain step type").
				WithDetail("step_index", i).
				WithDetail("step_type", step.Type)
		}
	}
	return steps, nil
}
