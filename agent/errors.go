package agent

import (
	"errors"
	"fmt"
)

// Error codes reported by catalog agents.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Error represents a failed agent invocation.
type Error struct {
	Agent   string `json:"agent"`             // Name of the agent that failed
	Code    string `json:"code"`              // Error code for categorization
	Message string `json:"message"`           // Human-readable message
	Details any    `json:"details,omitempty"` // Additional error details
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent error [%s] in %s: %s", e.Code, e.Agent, e.Message)
	}
	return fmt.Sprintf("agent error in %s: %s", e.Agent, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// ErrorCode exposes Code to event recording.
func (e *Error) ErrorCode() string { return e.Code }

// NewError creates a new Error with the specified details.
func NewError(agent, message, code string) *Error {
	return &Error{
		Agent:   agent,
		Message: message,
		Code:    code,
	}
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
