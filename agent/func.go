package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentcatalog/core"
)

// PerformFunc is the body of a FuncAgent.
type PerformFunc func(invCtx *core.InvocationContext) (string, error)

// FuncAgent exposes a plain Go function as a catalog agent.
//
// Responsibilities:
//   - Holds the parameter schema via the embedded BaseAgent
//   - Validates supplied arguments against that schema before execution
//   - Normalizes failures so callers receive *Error with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> the function returned a plain error
//     (custom codes preserved if the function returns *Error directly)
//
// A FuncAgent has no mutable state after construction and is safe for
// concurrent use.
type FuncAgent struct {
	BaseAgent
	fn PerformFunc
}

var _ core.Agent = (*FuncAgent)(nil)

// NewFuncAgent constructs a FuncAgent from an explicit schema.
func NewFuncAgent(name, description string, parameters map[string]any, fn PerformFunc) *FuncAgent {
	return &FuncAgent{
		BaseAgent: NewBaseAgent(name, description, parameters),
		fn:        fn,
	}
}

// NewFuncAgentFromStruct derives the schema from an argument struct with
// SchemaFor.
func NewFuncAgentFromStruct(name, description string, args any, fn PerformFunc) (*FuncAgent, error) {
	schema, err := SchemaFor(args)
	if err != nil {
		return nil, err
	}
	return NewFuncAgent(name, description, schema, fn), nil
}

// Perform validates invCtx.Args then runs the wrapped function.
func (a *FuncAgent) Perform(invCtx *core.InvocationContext) (string, error) {
	logger := invCtx.Logger()
	start := time.Now()

	logger.Debug("agent.perform.start", "agent", a.Name(), "invocation_id", invCtx.InvocationID)

	if err := Validate(invCtx.Args, a.Parameters()); err != nil {
		logger.Warn("agent.perform.validation_failed", "agent", a.Name(), "error", err.Error())

		return "", &Error{
			Agent:   a.Name(),
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	out, err := a.fn(invCtx)
	if err != nil {
		if ae, ok := AsError(err); ok {
			logger.Error("agent.perform.error", "agent", a.Name(), "error", ae.Message)

			return "", ae
		}

		logger.Error("agent.perform.error", "agent", a.Name(), "error", err.Error())

		return "", &Error{
			Agent:   a.Name(),
			Message: err.Error(),
			Code:    CodeExecution,
			Cause:   err,
		}
	}

	logger.Info("agent.perform.success", "agent", a.Name(), "duration_ms", time.Since(start).Milliseconds())

	return out, nil
}
