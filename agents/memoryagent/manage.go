package memoryagent

import (
	"fmt"

	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/core"
)

// Agent names as exposed to the host.
const (
	ManageName  = "ManageMemory"
	ContextName = "ContextMemory"
)

// NoContentMessage is returned when ManageMemory is called without content.
const NoContentMessage = "Error: No content provided for memory storage."

type manageArgs struct {
	MemoryType string   `json:"memory_type,omitempty" jsonschema:"description=Kind of memory to store,enum=fact,enum=preference,enum=insight,enum=task"`
	Content    string   `json:"content,omitempty" jsonschema:"description=The information to remember"`
	Importance int      `json:"importance,omitempty" jsonschema:"description=Importance from 1 (low) to 5 (high),minimum=1,maximum=5"`
	Tags       []string `json:"tags,omitempty" jsonschema:"description=Optional tags for later retrieval"`
	UserGUID   string   `json:"user_guid,omitempty" jsonschema:"description=User GUID that owns the memory"`
	Scope      string   `json:"scope,omitempty" jsonschema:"description=Memory tier (defaults to user),enum=session,enum=user,enum=global"`
}

// Manage stores memories on behalf of the host.
type Manage struct {
	agent.BaseAgent
}

var _ core.Agent = (*Manage)(nil)

// NewManage creates the ManageMemory agent.
func NewManage() *Manage {
	return &Manage{
		BaseAgent: agent.NewBaseAgent(
			ManageName,
			"Stores a fact, preference, insight or task in persistent memory so it can be recalled in later conversations.",
			agent.MustSchemaFor(manageArgs{}),
		),
	}
}

// Perform stores invCtx.Args["content"] and reports what was stored. Missing
// content is reported in the result text so the model can recover.
func (m *Manage) Perform(invCtx *core.InvocationContext) (string, error) {
	content := invCtx.StringArg("content", "")
	if content == "" {
		return NoContentMessage, nil
	}
	if err := agent.Validate(invCtx.Args, m.Parameters()); err != nil {
		return "", &agent.Error{Agent: m.Name(), Code: agent.CodeValidation, Message: err.Error(), Details: err}
	}
	if invCtx.Memory == nil {
		return "", agent.NewError(m.Name(), "no memory store configured", agent.CodeExecution)
	}

	scope, err := core.ParseScope(invCtx.StringArg("scope", ""))
	if err != nil {
		return "", agent.NewError(m.Name(), err.Error(), agent.CodeValidation)
	}
	ns := namespaceFor(scope, userGUID(invCtx), invCtx.SessionID)

	entry, err := invCtx.Memory.Store(invCtx.Context, ns, core.MemoryEntry{
		ConversationID: invCtx.SessionID,
		SessionID:      invCtx.SessionID,
		Message:        content,
		Type:           invCtx.StringArg("memory_type", core.MemoryTypeFact),
		Importance:     invCtx.IntArg("importance", 0),
		Tags:           invCtx.StringSliceArg("tags"),
	})
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}

	invCtx.LogInfo("memory.stored", "namespace", ns.String(), "id", entry.ID, "type", entry.Type)

	return fmt.Sprintf("Successfully stored %s memory: \"%s\"", entry.Type, entry.Message), nil
}

// userGUID prefers an explicit user_guid argument over the caller identity.
func userGUID(invCtx *core.InvocationContext) string {
	return invCtx.StringArg("user_guid", invCtx.UserGUID)
}

// namespaceFor maps a scope onto a namespace. Identities that cannot address
// the requested tier fall back to the global tier.
func namespaceFor(scope core.Scope, guid, sessionID string) core.Namespace {
	switch scope {
	case core.ScopeGlobal:
		return core.GlobalNamespace()
	case core.ScopeSession:
		ns := core.SessionNamespace(sessionID)
		if _, err := ns.Path(); err == nil {
			return ns
		}
	}
	return core.ResolveNamespace(guid)
}
