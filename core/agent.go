package core

// Agent defines the contract every catalog agent implements.
//
// Agents are thin: they receive structured arguments through an
// InvocationContext, optionally touch memory or storage, and return a string
// result (prose or JSON) that the host hands back to the caller or the model.
//
// Implementations must:
//   - Be safe for concurrent Perform calls
//   - Respect cancellation of invCtx.Context
//   - Report bad input through the returned string when the caller is expected
//     to recover conversationally, and through error for hard failures
type Agent interface {
	Name() string
	Metadata() Metadata
	Perform(invCtx *InvocationContext) (string, error)
}

// Metadata describes an agent to the host. It doubles as the function
// definition exposed to models for tool calling. Parameters is a JSON Schema
// object (type, properties, required).
type Metadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
