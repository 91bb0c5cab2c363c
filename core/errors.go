package core

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures across the engine. Codes double as stable
// identifiers in event metadata and in failed ExecutionResult envelopes.
type ErrorCode string

const (
	ErrToolNotFound         ErrorCode = "tool_not_found"
	ErrToolExecutionFailed  ErrorCode = "tool_execution_failed"
	ErrSkillNotFound        ErrorCode = "skill_not_found"
	ErrSkillMissingTools    ErrorCode = "skill_missing_tools"
	ErrSkillExecutionFailed ErrorCode = "skill_execution_failed"
	ErrChainInvalidFormat   ErrorCode = "chain_invalid_format"
	ErrChainStepFailed      ErrorCode = "chain_step_failed"
	ErrStepExhausted        ErrorCode = "step_budget_exhausted"
	ErrUpstreamTransient    ErrorCode = "upstream_transient"
	ErrUpstreamFatal        ErrorCode = "upstream_fatal"
	ErrMalformedModelOutput ErrorCode = "malformed_model_output"
)

// AgentError is the coded error type used across the engine. Details carry
// structured context (tool name, step index, missing tool list) for event
// metadata without string parsing.
type AgentError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	wrapped error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *AgentError) Unwrap() error { return e.wrapped }

// WithDetail attaches a structured detail and returns the receiver for chaining.
func (e *AgentError) WithDetail(key string, value any) *AgentError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// NewAgentError constructs a coded error.
func NewAgentError(code ErrorCode, message string) *AgentError {
	return &AgentError{Code: code, Message: message}
}

// WrapAgentError constructs a coded error around an underlying cause.
func WrapAgentError(code ErrorCode, message string, cause error) *AgentError {
	return &AgentError{Code: code, Message: message, wrapped: cause}
}

// CodeOf extracts the ErrorCode from err, or empty string when err carries none.
func CodeOf(err error) ErrorCode {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Retryable reports whether err represents a transient upstream condition the
// gateway may retry. Anything else is treated as fatal for the current call.
func Retryable(err error) bool { return CodeOf(err) == ErrUpstreamTransient }
