package core

import "fmt"

// Actions a Decision may select. The orchestrator routes on these values:
// think and the two terminal actions never reach the dispatcher, everything
// else is delegated to an isolated executor.
const (
	ActionUseTool       = "use_tool"
	ActionUseSkill      = "use_skill"
	ActionCallChain     = "call_chain"
	ActionThink         = "think"
	ActionRespondToUser = "respond_to_user"
	ActionFinish        = "finish"
)

// Decision is one structured output cycle of the orchestrator's THINK phase.
// It is produced once per step from the model's JSON output and never mutated
// afterwards. Optional fields are populated depending on NextAction.
type Decision struct {
	Reasoning       string         `json:"reasoning"`
	NextAction      string         `json:"next_action"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolParameters map[string]any `json:"tool_parameters,omitempty"`
	// SubagentType is accepted for output-schema compatibility but ignored;
	// routing keys off NextAction alone.
	SubagentType    string `json:"subagent_type,omitempty"`
	SubagentCommand string `json:"subagent_command,omitempty"`
}

// Validate checks structural consistency of a parsed decision: the action must
// be known and actions that dispatch must name their target.
func (d Decision) Validate() error {
	switch d.NextAction {
	case ActionThink, ActionRespondToUser, ActionFinish:
		return nil
	case ActionUseTool:
		if d.ToolName == "" {
			return NewAgentError(ErrMalformedModelOutput, "decision action use_tool missing tool_name")
		}
		return nil
	case ActionUseSkill, ActionCallChain:
		if d.SubagentCommand == "" {
			return NewAgentError(ErrMalformedModelOutput, fmt.Sprintf("decision action %s missing subagent_command", d.NextAction))
		}
		return nil
	default:
		return NewAgentError(ErrMalformedModelOutput, fmt.Sprintf("unknown decision action %q", d.NextAction))
	}
}

// Terminal reports whether the decision ends the orchestrator loop.
func (d Decision) Terminal() bool {
	return d.NextAction == ActionFinish || d.NextAction == ActionRespondToUser
}

// Dispatches reports whether the decision requires an isolated executor.
func (d Decision) Dispatches() bool {
	switch d.NextAction {
	case ActionUseTool, ActionUseSkill, ActionCallChain:
		return true
	}
	return false
}
