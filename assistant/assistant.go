// Package assistant hosts a conversation with a tool-calling model. Every
// catalog agent registered with the engine is offered to the model as a
// function; memories recalled from the store are injected into the system
// prompt.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/engine"
	"github.com/hupe1980/agentcatalog/internal/util"
	"github.com/hupe1980/agentcatalog/logging"
	"github.com/hupe1980/agentcatalog/model"
)

// ErrEmptyInput is returned for a turn without user input.
var ErrEmptyInput = errors.New("assistant: empty user input")

// Host is the part of the engine the assistant drives.
type Host interface {
	Definitions() []core.Metadata
	PerformJSON(ctx context.Context, sessionID, userGUID, name, rawArgs string) (engine.Response, error)
	RecordMessage(sessionID string, ev core.Event) error
	Memory() core.MemoryStore
	Logger() logging.Logger
}

var _ Host = (*engine.Engine)(nil)

// Options configure an Assistant.
type Options struct {
	// Name is the identity used in the system prompt and as event author.
	Name string
	// Personality is appended to the identity line.
	Personality string
	// PromptTemplate overrides DefaultPromptTemplate.
	PromptTemplate string
	// MaxRounds bounds model calls per turn. Zero means unlimited.
	MaxRounds int
	// MaxParallel bounds concurrent agent performs per model response.
	// Zero means one goroutine per call.
	MaxParallel int
	// MemoryLimit bounds the memories injected per tier.
	MemoryLimit int
	// Stream requests streaming generation from the model.
	Stream bool
	// Logger defaults to the host logger.
	Logger logging.Logger
	// Clock is used for the date in the system prompt.
	Clock func() time.Time
}

// Turn is one user message.
type Turn struct {
	UserGUID  string
	SessionID string
	Input     string
	History   []core.Content
}

// Reply is the assistant's answer to a Turn.
type Reply struct {
	Text      string
	Voice     string
	AgentLogs []string
	UserGUID  string
	SessionID string
}

// Assistant runs the model/agent loop for user turns. It is safe for
// concurrent use.
type Assistant struct {
	host   Host
	model  model.Model
	prompt *template.Template
	logger logging.Logger
	opts   Options
}

// New creates an Assistant.
func New(host Host, m model.Model, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{
		Name:        "Assistant",
		MaxRounds:   8,
		MaxParallel: 4,
		MemoryLimit: 10,
		Clock:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if host == nil || m == nil {
		return nil, errors.New("assistant: host and model are required")
	}
	if opts.Logger == nil {
		opts.Logger = host.Logger()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	prompt, err := parsePrompt(opts.PromptTemplate)
	if err != nil {
		return nil, err
	}

	return &Assistant{host: host, model: m, prompt: prompt, logger: opts.Logger, opts: opts}, nil
}

// Respond answers one turn. Input that is itself a GUID switches the memory
// context without calling the model.
func (a *Assistant) Respond(ctx context.Context, turn Turn) (Reply, error) {
	input := strings.TrimSpace(turn.Input)
	if input == "" {
		return Reply{}, ErrEmptyInput
	}
	guid := strings.TrimSpace(turn.UserGUID)
	if guid == "" {
		guid = core.DefaultUserGUID
	}
	sessionID := turn.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	if core.IsValidGUID(input) {
		guid = strings.ToLower(input)
		a.logger.Info("assistant.context.switched", "user_guid", guid, "session_id", sessionID)
		text := fmt.Sprintf("I've switched to the memory context for %s. I'll remember things for you from now on.", guid)
		return Reply{Text: text, Voice: "Memory context switched.", UserGUID: guid, SessionID: sessionID}, nil
	}

	instructions, err := a.systemPrompt(ctx, guid)
	if err != nil {
		return Reply{}, err
	}

	turnID := core.NewID()
	a.record(sessionID, core.NewUserMessageEvent(turnID, input))

	contents := make([]core.Content, 0, len(turn.History)+1)
	contents = append(contents, turn.History...)
	contents = append(contents, core.NewTextContent("user", input))

	tools := model.ToolsFromMetadata(a.host.Definitions())
	limiter := core.NewModelLimiter(a.opts.MaxRounds)

	var logs []string
	for {
		if err := limiter.Acquire(); err != nil {
			return Reply{}, fmt.Errorf("assistant: %w", err)
		}

		resp, err := a.generate(ctx, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        tools,
			Stream:       a.opts.Stream,
		})
		if err != nil {
			return Reply{}, err
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text, voice := SplitVoice(resp.Content.Text())
			a.record(sessionID, core.NewMessageEvent(turnID, a.opts.Name, text))
			return Reply{Text: text, Voice: voice, AgentLogs: logs, UserGUID: guid, SessionID: sessionID}, nil
		}

		contents = append(contents, resp.Content)
		responses, lines := a.performCalls(ctx, sessionID, guid, calls)
		logs = append(logs, lines...)

		parts := make([]core.Part, len(responses))
		for i, r := range responses {
			parts[i] = core.FunctionResponsePart{FunctionResponse: r}
		}
		contents = append(contents, core.Content{Role: "tool", Parts: parts})
	}
}

func (a *Assistant) systemPrompt(ctx context.Context, guid string) (string, error) {
	data := PromptData{
		Name:        a.opts.Name,
		Personality: a.opts.Personality,
		Date:        a.opts.Clock().Format("Monday, January 2, 2006"),
		UserGUID:    guid,
	}
	for _, md := range a.host.Definitions() {
		data.Agents = append(data.Agents, md.Name)
	}

	if store := a.host.Memory(); store != nil {
		q := core.MemoryQuery{Limit: a.opts.MemoryLimit}
		data.SharedMemories = a.recall(ctx, store, core.GlobalNamespace(), q)
		if ns := core.ResolveNamespace(guid); ns.Scope == core.ScopeUser {
			data.UserMemories = a.recall(ctx, store, ns, q)
		}
	}

	out, err := util.Execute(a.prompt, data)
	if err != nil {
		return "", fmt.Errorf("assistant: render system prompt: %w", err)
	}
	return out, nil
}

// recall treats unreadable tiers as empty so one corrupt blob does not take
// the conversation down.
func (a *Assistant) recall(ctx context.Context, store core.MemoryStore, ns core.Namespace, q core.MemoryQuery) []core.MemoryEntry {
	entries, err := store.Search(ctx, ns, q)
	if err != nil {
		a.logger.Warn("assistant.memory.recall_failed", "namespace", ns.String(), "error", err.Error())
		return nil
	}
	return entries
}

func (a *Assistant) generate(ctx context.Context, req model.Request) (model.Response, error) {
	start := time.Now()
	resp, err := model.Collect(ctx, a.model, req)
	dur := time.Since(start)

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if ll, ok := a.logger.(interface {
		LogLLMCall(model string, tokens int, dur time.Duration, err error)
	}); ok {
		ll.LogLLMCall(a.model.Info().Name, tokens, dur, err)
	} else {
		a.logger.Debug("assistant.model.call", "model", a.model.Info().Name, "tokens", tokens, "duration_ms", dur.Milliseconds())
	}

	if err != nil {
		return model.Response{}, fmt.Errorf("assistant: model call: %w", err)
	}
	return resp, nil
}

// performCalls runs the calls of one model response with bounded
// parallelism. Results and log lines keep the call order.
func (a *Assistant) performCalls(ctx context.Context, sessionID, guid string, calls []core.FunctionCall) ([]core.FunctionResponse, []string) {
	n := len(calls)
	responses := make([]core.FunctionResponse, n)
	lines := make([]string, n)

	maxPar := a.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}
	sem := make(chan struct{}, maxPar)

	var wg sync.WaitGroup
	for i, fc := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			responses[idx], lines[idx] = a.performCall(ctx, sessionID, guid, fc)
		}(i, fc)
	}
	wg.Wait()

	return responses, lines
}

func (a *Assistant) performCall(ctx context.Context, sessionID, guid string, fc core.FunctionCall) (fr core.FunctionResponse, line string) {
	fr = core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("assistant.function.panic", "function", fc.Name, "recover", r, "stack", string(debug.Stack()))
			fr.Response = ""
			fr.Error = fmt.Sprintf("panic: %v", r)
			line = fmt.Sprintf("Performed %s and got error: %s", fc.Name, fr.Error)
		}
	}()

	resp, err := a.host.PerformJSON(ctx, sessionID, guid, fc.Name, fc.Arguments)
	if resp.InvocationID != "" {
		line = resp.Event.LogLine()
	}
	if err != nil {
		fr.Error = err.Error()
		if line == "" {
			line = fmt.Sprintf("Performed %s and got error: %s", fc.Name, fr.Error)
		}
		return fr, line
	}
	fr.Response = resp.Output
	return fr, line
}

func (a *Assistant) record(sessionID string, ev core.Event) {
	if err := a.host.RecordMessage(sessionID, ev); err != nil {
		a.logger.Warn("assistant.session.record_failed", "session_id", sessionID, "error", err.Error())
	}
}
