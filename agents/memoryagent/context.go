package memoryagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/memory"
)

// DefaultMaxMessages bounds recall when max_messages is not supplied.
const DefaultMaxMessages = 10

// Messages returned by ContextMemory.
const (
	RememberHeader   = "Here's what I remember:"
	NoMemoriesResult = "No memories found..."
)

type contextArgs struct {
	UserGUID    string   `json:"user_guid,omitempty" jsonschema:"description=User GUID whose memories to recall"`
	MaxMessages int      `json:"max_messages,omitempty" jsonschema:"description=Maximum number of memories to return (default 10),minimum=1"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"description=Only recall memories mentioning any of these keywords"`
	FullRecall  bool     `json:"full_recall,omitempty" jsonschema:"description=Return every memory and ignore max_messages"`
}

// recaller is implemented by memory.Store.
type recaller interface {
	Recall(ctx context.Context, guid, sessionID string, q core.MemoryQuery) ([]core.MemoryEntry, error)
}

// Context recalls memories for the current user and session.
type Context struct {
	agent.BaseAgent
}

var _ core.Agent = (*Context)(nil)

// NewContext creates the ContextMemory agent.
func NewContext() *Context {
	return &Context{
		BaseAgent: agent.NewBaseAgent(
			ContextName,
			"Recalls stored memories about the user and the conversation to personalize responses.",
			agent.MustSchemaFor(contextArgs{}),
		),
	}
}

// Perform recalls across the session, user and global tiers.
func (c *Context) Perform(invCtx *core.InvocationContext) (string, error) {
	if err := agent.Validate(invCtx.Args, c.Parameters()); err != nil {
		return "", &agent.Error{Agent: c.Name(), Code: agent.CodeValidation, Message: err.Error(), Details: err}
	}
	if invCtx.Memory == nil {
		return "", agent.NewError(c.Name(), "no memory store configured", agent.CodeExecution)
	}

	q := core.MemoryQuery{
		Keywords: invCtx.StringSliceArg("keywords"),
		Limit:    invCtx.IntArg("max_messages", DefaultMaxMessages),
		All:      invCtx.BoolArg("full_recall", false),
	}
	if q.Limit <= 0 {
		q.Limit = DefaultMaxMessages
	}

	entries, err := recall(invCtx.Context, invCtx.Memory, userGUID(invCtx), invCtx.SessionID, q)
	if err != nil {
		return "", fmt.Errorf("recall memories: %w", err)
	}

	invCtx.LogDebug("memory.recalled", "count", len(entries), "full_recall", q.All)

	return Format(entries), nil
}

func recall(ctx context.Context, store core.MemoryStore, guid, sessionID string, q core.MemoryQuery) ([]core.MemoryEntry, error) {
	if r, ok := store.(recaller); ok {
		return r.Recall(ctx, guid, sessionID, q)
	}
	// Stores without tier merging only expose the narrowest valid namespace.
	return store.Search(ctx, core.ResolveNamespace(guid), q)
}

// Format renders entries as the bullet list returned to the host.
func Format(entries []core.MemoryEntry) string {
	if len(entries) == 0 {
		return NoMemoriesResult
	}
	var b strings.Builder
	b.WriteString(RememberHeader)
	for _, e := range entries {
		fmt.Fprintf(&b, "\n• %s (Theme: %s, Recorded: %s %s)", e.Message, e.Type, e.Date, e.Time)
	}
	return b.String()
}

// Agents returns both memory agents in catalog order.
func Agents() []core.Agent {
	return []core.Agent{NewManage(), NewContext()}
}

var _ recaller = (*memory.Store)(nil)
