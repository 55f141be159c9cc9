package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentcatalog/core"
)

// BaseAgent bundles identity and the parameter schema shared by every
// catalog agent. Embed it in concrete agent implementations and supply a
// Perform method to satisfy the core.Agent interface. All exported methods are
// goroutine-safe.
type BaseAgent struct {
	name        string         // Function name exposed to the host
	description string         // What the agent does, shown to models
	parameters  map[string]any // JSON Schema object
	mu          sync.RWMutex
}

// NewBaseAgent constructs a BaseAgent. A nil schema becomes an empty object
// schema and an empty description gets a generated default.
func NewBaseAgent(name, description string, parameters map[string]any) BaseAgent {
	if description == "" {
		description = fmt.Sprintf("Agent %s", name)
	}
	return BaseAgent{
		name:        name,
		description: description,
		parameters:  normalizeSchema(parameters),
	}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the agent description.
func (b *BaseAgent) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// SetDescription updates the description reported in Metadata.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// Parameters returns the parameter schema.
func (b *BaseAgent) Parameters() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parameters
}

// SetParameters replaces the parameter schema.
func (b *BaseAgent) SetParameters(parameters map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parameters = normalizeSchema(parameters)
}

// Metadata returns the host-facing description of the agent.
func (b *BaseAgent) Metadata() core.Metadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.Metadata{
		Name:        b.name,
		Description: b.description,
		Parameters:  b.parameters,
	}
}

func normalizeSchema(s map[string]any) map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if _, ok := s["type"]; !ok {
		s["type"] = "object"
	}
	if _, ok := s["properties"]; !ok {
		s["properties"] = map[string]any{}
	}
	return s
}
