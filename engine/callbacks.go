package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentcatalog/core"
)

// CallbackType defines the lifecycle points where callbacks run.
type CallbackType string

const (
	// CallbackBeforePerform runs after validation and before the agent.
	// Returning an error aborts the perform.
	CallbackBeforePerform CallbackType = "before_perform"

	// CallbackAfterPerform runs after a successful perform.
	CallbackAfterPerform CallbackType = "after_perform"

	// CallbackOnError runs after a failed perform.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext describes the perform a callback is attached to.
type CallbackContext struct {
	// InvocationContext carries identifiers, arguments and services.
	InvocationContext *core.InvocationContext

	// Event is the recorded perform event. Nil before the perform.
	Event *core.Event

	// AgentID is the agent name.
	AgentID string

	// Err is the perform error, if any.
	Err error

	// Metadata is free-form storage shared between callbacks of one perform.
	Metadata map[string]any
}

// Callback is a perform lifecycle hook.
type Callback interface {
	// Type returns the lifecycle point this callback handles.
	Type() CallbackType

	// Execute runs the hook.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
//	audit := NewFunctionCallback(CallbackAfterPerform,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("performed %s", cc.AgentID)
//	        return nil
//	    })
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks per type and runs them in registration
// order. The first error stops the chain. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback registered for callbackType.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a log function.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the agent and, once recorded, its agent-log line.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	if callbackCtx.Event != nil {
		c.logger(fmt.Sprintf("[%s] %s", c.callbackType, callbackCtx.Event.LogLine()))
		return nil
	}
	c.logger(fmt.Sprintf("[%s] Agent: %s", c.callbackType, callbackCtx.AgentID))
	return nil
}
