package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/agents/memoryagent"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/engine"
	"github.com/hupe1980/agentcatalog/model"
)

const testGUID = "3f2b8c1e-6d4a-4b7e-9a1c-0e5f7d2b9c84"

func newHost(t *testing.T, agents ...core.Agent) *engine.Engine {
	t.Helper()
	e := engine.New()
	for _, a := range append(memoryagent.Agents(), agents...) {
		require.NoError(t, e.Register(a))
	}
	return e
}

func TestRespond_GUIDSwitchesContext(t *testing.T) {
	m := model.NewScriptedModel()
	a, err := New(newHost(t), m)
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), Turn{Input: strings.ToUpper(testGUID)})
	require.NoError(t, err)
	assert.Equal(t, testGUID, reply.UserGUID)
	assert.Contains(t, reply.Text, testGUID)
	assert.NotEmpty(t, reply.Voice)
	assert.Empty(t, m.Requests())
}

func TestRespond_EmptyInput(t *testing.T) {
	a, err := New(newHost(t), model.NewScriptedModel())
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), Turn{Input: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRespond_StoresMemoryAndRecallsIt(t *testing.T) {
	ctx := context.Background()
	host := newHost(t)
	m := model.NewScriptedModel(
		model.CallResponse(core.FunctionCall{
			ID:        "call-1",
			Name:      memoryagent.ManageName,
			Arguments: `{"content":"likes green tea","memory_type":"preference"}`,
		}),
		model.TextResponse("Noted, you like **green tea**. |||VOICE||| Got it, green tea."),
		model.TextResponse("You like green tea."),
	)
	a, err := New(host, m, func(o *Options) {
		o.Name = "Memo"
		o.Clock = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	})
	require.NoError(t, err)

	reply, err := a.Respond(ctx, Turn{UserGUID: testGUID, SessionID: "s1", Input: "Remember that I like green tea"})
	require.NoError(t, err)
	assert.Equal(t, "Noted, you like **green tea**.", reply.Text)
	assert.Equal(t, "Got it, green tea.", reply.Voice)
	assert.Equal(t, testGUID, reply.UserGUID)
	require.Len(t, reply.AgentLogs, 1)
	assert.Equal(t, `Performed ManageMemory and got result: Successfully stored preference memory: "likes green tea"`, reply.AgentLogs[0])

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "You are Memo.")
	assert.Contains(t, reqs[0].Instructions, "Monday, March 2, 2026")
	require.Len(t, reqs[0].Tools, 2)
	assert.Equal(t, memoryagent.ManageName, reqs[0].Tools[0].Function.Name)

	// second request carries the call and its result
	contents := reqs[1].Contents
	require.Len(t, contents, 3)
	assert.Equal(t, "tool", contents[2].Role)
	frs := contents[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "call-1", frs[0].ID)
	assert.Empty(t, frs[0].Error)

	entries, err := host.Memory().List(ctx, core.UserNamespace(testGUID))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = a.Respond(ctx, Turn{UserGUID: testGUID, SessionID: "s1", Input: "What do I like?"})
	require.NoError(t, err)
	reqs = m.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[2].Instructions, "What you remember about this user:")
	assert.Contains(t, reqs[2].Instructions, "- likes green tea (preference, ")

	sess, err := host.Session("s1")
	require.NoError(t, err)
	var authors []string
	for _, ev := range sess.GetEvents() {
		authors = append(authors, ev.Author)
	}
	assert.Equal(t, []string{"user", memoryagent.ManageName, "Memo", "user", "Memo"}, authors)
}

func TestRespond_ParallelCallsKeepOrder(t *testing.T) {
	slow := agent.NewFuncAgent("Slow", "", nil, func(*core.InvocationContext) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "slow", nil
	})
	fast := agent.NewFuncAgent("Fast", "", nil, func(*core.InvocationContext) (string, error) {
		return "fast", nil
	})
	m := model.NewScriptedModel(
		model.CallResponse(
			core.FunctionCall{ID: "a", Name: "Slow"},
			core.FunctionCall{ID: "b", Name: "Fast"},
			core.FunctionCall{ID: "c", Name: "Missing"},
		),
		model.TextResponse("Done."),
	)
	a, err := New(newHost(t, slow, fast), m)
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), Turn{Input: "go"})
	require.NoError(t, err)
	assert.Equal(t, "Done.", reply.Voice)
	require.Len(t, reply.AgentLogs, 3)
	assert.Equal(t, "Performed Slow and got result: slow", reply.AgentLogs[0])
	assert.Equal(t, "Performed Fast and got result: fast", reply.AgentLogs[1])
	assert.True(t, strings.HasPrefix(reply.AgentLogs[2], "Performed Missing and got error:"))

	frs := m.Requests()[1].Contents[2].FunctionResponses()
	require.Len(t, frs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{frs[0].ID, frs[1].ID, frs[2].ID})
	assert.Equal(t, "slow", frs[0].Response)
	assert.Contains(t, frs[2].Error, "agent not found")
}

func TestRespond_RoundLimit(t *testing.T) {
	loop := model.CallResponse(core.FunctionCall{ID: "x", Name: memoryagent.ContextName, Arguments: `{}`})
	m := model.NewScriptedModel(loop, loop, loop)
	a, err := New(newHost(t), m, func(o *Options) { o.MaxRounds = 2 })
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), Turn{Input: "loop forever"})
	assert.ErrorIs(t, err, core.ErrModelLimit)
	assert.Len(t, m.Requests(), 2)
}

func TestRespond_ModelError(t *testing.T) {
	a, err := New(newHost(t), model.NewScriptedModel())
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), Turn{Input: "hello"})
	assert.Error(t, err)
}

func TestNew_InvalidTemplate(t *testing.T) {
	_, err := New(newHost(t), model.NewScriptedModel(), func(o *Options) { o.PromptTemplate = "{{.Name" })
	assert.Error(t, err)
}

func TestSplitVoice(t *testing.T) {
	tests := []struct {
		in, text, voice string
	}{
		{"Hello there. More text.", "Hello there. More text.", "Hello there."},
		{"# Title\nBody", "# Title\nBody", "Title"},
		{"Answer |||VOICE||| Short.", "Answer", "Short."},
		{"|||VOICE||| Only voice.", "Only voice.", "Only voice."},
		{"**Bold** answer! Rest", "**Bold** answer! Rest", "Bold answer!"},
		{"v1.2 is out", "v1.2 is out", "v1.2 is out"},
	}
	for _, tt := range tests {
		text, voice := SplitVoice(tt.in)
		assert.Equal(t, tt.text, text, tt.in)
		assert.Equal(t, tt.voice, voice, tt.in)
	}
}
