package memoryagent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/engine"
	"github.com/hupe1980/agentcatalog/memory"
	"github.com/hupe1980/agentcatalog/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGUID = "2f6c1b1e-7a1d-4c55-9a51-3c7f0e0b9d11"

func newStore() *memory.Store {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return memory.New(storage.NewInMemoryStore(), func(o *memory.Options) {
		o.Clock = func() time.Time {
			at = at.Add(time.Minute)
			return at
		}
	})
}

func invoke(t *testing.T, a core.Agent, store core.MemoryStore, guid, session string, args map[string]any) string {
	t.Helper()
	inv := core.NewInvocationContext(context.Background(), core.NewID(), session, guid, a.Name(), args, store, nil, nil)
	out, err := a.Perform(inv)
	require.NoError(t, err)
	return out
}

func TestManage_EmptyContent(t *testing.T) {
	store := newStore()
	out := invoke(t, NewManage(), store, testGUID, "s1", map[string]any{"content": "   "})
	assert.Equal(t, NoContentMessage, out)

	out = invoke(t, NewManage(), store, testGUID, "s1", nil)
	assert.Equal(t, NoContentMessage, out)
}

func TestManage_MissingContentThroughEngine(t *testing.T) {
	store := newStore()
	e := engine.New(func(o *engine.Options) { o.MemoryStore = store })
	for _, a := range Agents() {
		require.NoError(t, e.Register(a))
	}

	resp, err := e.PerformJSON(context.Background(), "s1", testGUID, ManageName, `{"memory_type":"fact"}`)
	require.NoError(t, err)
	assert.Equal(t, NoContentMessage, resp.Output)

	list, err := store.List(context.Background(), core.UserNamespace(testGUID))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManage_ContentIsNotEscaped(t *testing.T) {
	out := invoke(t, NewManage(), newStore(), testGUID, "s1", map[string]any{"content": "Says \"hi\"\nline2"})
	assert.Equal(t, "Successfully stored fact memory: \"Says \"hi\"\nline2\"", out)
}

func TestManage_TypeIsCaseInsensitive(t *testing.T) {
	store := newStore()
	e := engine.New(func(o *engine.Options) { o.MemoryStore = store })
	require.NoError(t, e.Register(NewManage()))

	resp, err := e.PerformJSON(context.Background(), "s1", testGUID, ManageName, `{"memory_type":"Preference","content":"Tea over coffee"}`)
	require.NoError(t, err)
	assert.Equal(t, `Successfully stored preference memory: "Tea over coffee"`, resp.Output)
}

func TestManage_PaddedGUIDSharesUserBlob(t *testing.T) {
	store := newStore()
	invoke(t, NewManage(), store, " "+strings.ToUpper(testGUID)+" ", "s1", map[string]any{"content": "Lives in Berlin"})

	list, err := store.List(context.Background(), core.UserNamespace(testGUID))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lives in Berlin", list[0].Message)

	out := invoke(t, NewContext(), store, testGUID, "s2", nil)
	assert.Contains(t, out, "Lives in Berlin")
}

func TestManage_StoresInUserTier(t *testing.T) {
	store := newStore()
	out := invoke(t, NewManage(), store, testGUID, "s1", map[string]any{
		"memory_type": "preference",
		"content":     "Likes dark mode",
		"importance":  float64(4),
		"tags":        []any{"ui"},
	})
	assert.Equal(t, `Successfully stored preference memory: "Likes dark mode"`, out)

	list, err := store.List(context.Background(), core.UserNamespace(testGUID))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].Importance)
	assert.Equal(t, []string{"ui"}, list[0].Tags)
	assert.Equal(t, "s1", list[0].ConversationID)
}

func TestManage_ScopeRouting(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	invoke(t, NewManage(), store, testGUID, "s1", map[string]any{"content": "session note", "scope": "session"})
	invoke(t, NewManage(), store, testGUID, "s1", map[string]any{"content": "team fact", "scope": "global"})
	invoke(t, NewManage(), store, core.DefaultUserGUID, "s1", map[string]any{"content": "anonymous"})
	invoke(t, NewManage(), store, core.DefaultUserGUID, "", map[string]any{"content": "explicit", "user_guid": testGUID})

	sess, err := store.List(ctx, core.SessionNamespace("s1"))
	require.NoError(t, err)
	require.Len(t, sess, 1)
	assert.Equal(t, "session note", sess[0].Message)

	global, err := store.List(ctx, core.GlobalNamespace())
	require.NoError(t, err)
	assert.Len(t, global, 2, "default guid falls back to the global tier")

	user, err := store.List(ctx, core.UserNamespace(testGUID))
	require.NoError(t, err)
	require.Len(t, user, 1)
	assert.Equal(t, "explicit", user[0].Message)
}

func TestManage_InvalidType(t *testing.T) {
	inv := core.NewInvocationContext(context.Background(), "i", "s", testGUID, ManageName,
		map[string]any{"content": "x", "memory_type": "rumor"}, newStore(), nil, nil)
	_, err := NewManage().Perform(inv)
	ae, ok := agent.AsError(err)
	require.True(t, ok)
	assert.Equal(t, agent.CodeValidation, ae.Code)
}

func TestContext_EmptyAndFormatted(t *testing.T) {
	store := newStore()
	ctxAgent := NewContext()

	assert.Equal(t, NoMemoriesResult, invoke(t, ctxAgent, store, testGUID, "s1", nil))

	invoke(t, NewManage(), store, testGUID, "s1", map[string]any{"content": "Owns a cat", "memory_type": "fact"})
	invoke(t, NewManage(), store, testGUID, "s1", map[string]any{"content": "Call dentist", "memory_type": "task", "scope": "session"})

	out := invoke(t, ctxAgent, store, testGUID, "s1", nil)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, RememberHeader, lines[0])
	assert.Equal(t, "• Call dentist (Theme: task, Recorded: 2024-06-01 12:02:00)", lines[1])
	assert.Equal(t, "• Owns a cat (Theme: fact, Recorded: 2024-06-01 12:01:00)", lines[2])
}

func TestContext_KeywordsAndLimits(t *testing.T) {
	store := newStore()
	for _, c := range []string{"alpha one", "beta two", "alpha three"} {
		invoke(t, NewManage(), store, testGUID, "s1", map[string]any{"content": c})
	}
	ctxAgent := NewContext()

	out := invoke(t, ctxAgent, store, testGUID, "s1", map[string]any{"keywords": []any{"alpha"}})
	assert.Equal(t, 2, strings.Count(out, "•"))

	out = invoke(t, ctxAgent, store, testGUID, "s1", map[string]any{"max_messages": float64(1)})
	assert.Equal(t, 1, strings.Count(out, "•"))

	out = invoke(t, ctxAgent, store, testGUID, "s1", map[string]any{"max_messages": float64(1), "full_recall": true})
	assert.Equal(t, 3, strings.Count(out, "•"))

	out = invoke(t, ctxAgent, store, core.DefaultUserGUID, "other", nil)
	assert.Equal(t, NoMemoriesResult, out, "user memories stay private to the guid")
}

func TestAgents(t *testing.T) {
	as := Agents()
	require.Len(t, as, 2)
	assert.Equal(t, ManageName, as[0].Name())
	assert.Equal(t, ContextName, as[1].Name())
	assert.Contains(t, as[0].Metadata().Parameters["required"], "content")
}
