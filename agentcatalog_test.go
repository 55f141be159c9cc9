package agentcatalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/agents/memoryagent"
	"github.com/hupe1980/agentcatalog/assistant"
	"github.com/hupe1980/agentcatalog/config"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/engine"
	"github.com/hupe1980/agentcatalog/model"
	"github.com/hupe1980/agentcatalog/storage/local"
)

const guid = "9b7e4c2a-1d3f-4e5a-8b6c-7d8e9f0a1b2c"

func TestNew_RegistersMemoryAgents(t *testing.T) {
	c, err := New(func(o *Options) {
		o.Agents = []core.Agent{agent.NewFuncAgent("Ping", "", nil, func(*core.InvocationContext) (string, error) {
			return "pong", nil
		})}
	})
	require.NoError(t, err)

	var names []string
	for _, md := range c.Engine().Definitions() {
		names = append(names, md.Name)
	}
	assert.Equal(t, []string{memoryagent.ManageName, memoryagent.ContextName, "Ping"}, names)

	resp, err := c.Perform(context.Background(), engine.Request{Agent: "Ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Output)

	_, err = c.Respond(context.Background(), assistant.Turn{Input: "hi"})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestNew_DisableMemoryAgents(t *testing.T) {
	c, err := New(func(o *Options) { o.DisableMemoryAgents = true })
	require.NoError(t, err)
	assert.Empty(t, c.Engine().Agents())
}

func TestRespond_WithScriptedModel(t *testing.T) {
	ctx := context.Background()
	m := model.NewScriptedModel(
		model.CallResponse(core.FunctionCall{ID: "1", Name: memoryagent.ManageName, Arguments: `{"content":"birthday is May 4","memory_type":"fact"}`}),
		model.TextResponse("Saved your birthday."),
	)
	c, err := New(func(o *Options) { o.Model = m })
	require.NoError(t, err)

	reply, err := c.Respond(ctx, assistant.Turn{UserGUID: guid, Input: "My birthday is May 4"})
	require.NoError(t, err)
	assert.Equal(t, "Saved your birthday.", reply.Text)
	require.Len(t, reply.AgentLogs, 1)

	entries, err := c.Memory().List(ctx, core.UserNamespace(guid))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "birthday is May 4", entries[0].Message)
}

func TestNewFromConfig_LocalStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.Dir = dir
	cfg.Model.APIKey = "test"

	c, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close()) }()
	require.NotNil(t, c.Assistant())

	resp, err := c.Perform(ctx, engine.Request{
		UserGUID: guid,
		Agent:    memoryagent.ManageName,
		Args:     map[string]any{"content": "prefers dark mode", "memory_type": "preference"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Output, "prefers dark mode")

	files, err := local.New(dir)
	require.NoError(t, err)
	raw, err := files.Read(ctx, "memory/"+guid+"/user_memory.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "prefers dark mode")
}

func TestNewFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "ftp"
	_, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.ModelConfig{Provider: config.ProviderAnthropic, Name: "claude-test", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.Equal(t, "claude-test", m.Info().Name)

	m, err = NewModel(config.ModelConfig{Provider: config.ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", m.Info().Provider)

	_, err = NewModel(config.ModelConfig{Provider: "parrot"})
	assert.Error(t, err)
}
