package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/logging"
	"github.com/hupe1980/agentcatalog/memory"
	"github.com/hupe1980/agentcatalog/session"
	"github.com/hupe1980/agentcatalog/storage"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CodePanic marks a perform that panicked.
const CodePanic = "PANIC"

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentInvocations limits performs running at the same time.
	// Callers beyond the limit wait for a slot or their context. Zero means
	// unlimited.
	MaxConcurrentInvocations int

	// InvocationTimeout bounds a single perform. Zero disables the timeout.
	InvocationTimeout time.Duration
}

// DefaultConfig is used when no Config is supplied.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	InvocationTimeout:        2 * time.Minute,
}

// Options configures an Engine instance using the functional options pattern.
// All services have in-memory defaults.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// SessionStore records perform events. Defaults to session.NewInMemoryStore.
	SessionStore core.SessionStore

	// FileStore is exposed to agents as InvocationContext.Storage.
	// Defaults to storage.NewInMemoryStore.
	FileStore core.FileStore

	// MemoryStore is exposed to agents as InvocationContext.Memory.
	// Defaults to a memory.Store over FileStore.
	MemoryStore core.MemoryStore

	// Callbacks run around each perform. Optional.
	Callbacks *CallbackManager

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Request asks the engine to perform one agent.
type Request struct {
	SessionID string
	UserGUID  string
	Agent     string
	Args      map[string]any
}

// Response is the outcome of a successful or failed perform.
type Response struct {
	InvocationID string
	Agent        string
	Output       string
	Duration     time.Duration
	Event        core.Event
}

// Engine is the catalog host. It is safe for concurrent use.
type Engine struct {
	sessionStore core.SessionStore
	fileStore    core.FileStore
	memoryStore  core.MemoryStore
	callbacks    *CallbackManager
	logger       logging.Logger
	config       Config

	agents *orderedmap.OrderedMap[string, core.Agent] // registration order
	mu     sync.RWMutex

	slots chan struct{} // nil when unlimited

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.Mutex
}

// New creates an Engine with in-memory defaults.
//
//	e := engine.New(func(o *engine.Options) {
//	    o.Config.MaxConcurrentInvocations = 4
//	    o.Logger = logger
//	})
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.FileStore == nil {
		opts.FileStore = storage.NewInMemoryStore()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.New(opts.FileStore, func(o *memory.Options) { o.Logger = opts.Logger })
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	e := &Engine{
		sessionStore:      opts.SessionStore,
		fileStore:         opts.FileStore,
		memoryStore:       opts.MemoryStore,
		callbacks:         opts.Callbacks,
		logger:            opts.Logger,
		config:            opts.Config,
		agents:            orderedmap.New[string, core.Agent](),
		activeInvocations: make(map[string]context.CancelFunc),
	}
	if n := opts.Config.MaxConcurrentInvocations; n > 0 {
		e.slots = make(chan struct{}, n)
	}
	return e
}

// Register adds an agent under its name. Registering a name again replaces
// the agent but keeps its original position.
func (e *Engine) Register(a core.Agent) error {
	if a == nil || strings.TrimSpace(a.Name()) == "" {
		return errors.New("engine: agent must have a name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, replaced := e.agents.Set(a.Name(), a); replaced {
		e.logger.Warn("engine.agent.replaced", "agent", a.Name())
	}
	return nil
}

// Unregister removes an agent. It reports whether the agent existed.
func (e *Engine) Unregister(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.agents.Delete(name)
	return ok
}

// GetAgent retrieves a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agents.Get(name)
}

// Agents returns the registered agents in registration order.
func (e *Engine) Agents() []core.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.Agent, 0, e.agents.Len())
	for pair := e.agents.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Definitions returns agent metadata in registration order. Hosts hand it to
// models as the function list.
func (e *Engine) Definitions() []core.Metadata {
	agents := e.Agents()
	out := make([]core.Metadata, len(agents))
	for i, a := range agents {
		out[i] = a.Metadata()
	}
	return out
}

// Memory returns the memory store handed to agents.
func (e *Engine) Memory() core.MemoryStore { return e.memoryStore }

// Storage returns the file store handed to agents.
func (e *Engine) Storage() core.FileStore { return e.fileStore }

// Logger returns the engine logger.
func (e *Engine) Logger() logging.Logger { return e.logger }

// Perform runs one agent and records the outcome in the session history.
//
// Errors:
//   - core.ErrAgentNotFound when no agent has the requested name
//   - *agent.Error with VALIDATION_ERROR when args do not fit the schema
//   - *agent.Error with PANIC when the agent panicked
//   - the context error when no slot frees up before ctx ends
//   - whatever the agent returned otherwise
//
// Failed performs that reached the agent are recorded as error events and
// still return a Response carrying that event.
func (e *Engine) Perform(ctx context.Context, req Request) (Response, error) {
	a, ok := e.GetAgent(req.Agent)
	if !ok {
		return Response{}, fmt.Errorf("engine: %w: %s", core.ErrAgentNotFound, req.Agent)
	}
	if req.SessionID == "" {
		req.SessionID = core.NewID()
	}
	if req.UserGUID == "" {
		req.UserGUID = core.DefaultUserGUID
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}

	invocationID := core.NewID()
	start := time.Now()

	if err := agent.Validate(req.Args, a.Metadata().Parameters); err != nil {
		verr := &agent.Error{
			Agent:   a.Name(),
			Code:    agent.CodeValidation,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Details: err,
		}
		return e.finish(req, invocationID, "", verr, time.Since(start))
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return Response{}, err
	}
	defer release()

	runCtx, cancel := e.invocationContext(ctx)
	defer cancel()
	e.track(invocationID, cancel)
	defer e.untrack(invocationID)

	invCtx := core.NewInvocationContext(runCtx, invocationID, req.SessionID, req.UserGUID, a.Name(),
		req.Args, e.memoryStore, e.fileStore, e.logger)

	cbCtx := &CallbackContext{InvocationContext: invCtx, AgentID: a.Name()}
	if err := e.callbacks.ExecuteCallbacks(runCtx, CallbackBeforePerform, cbCtx); err != nil {
		return e.finish(req, invocationID, "", err, time.Since(start))
	}

	e.logger.Debug("engine.perform.start", "agent", a.Name(), "invocation_id", invocationID, "session_id", req.SessionID)

	output, err := e.safePerform(a, invCtx)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	return e.finish(req, invocationID, output, err, time.Since(start), cbCtx)
}

// PerformJSON is Perform for model tool calls whose arguments arrive as a
// JSON object string. An empty string means no arguments.
func (e *Engine) PerformJSON(ctx context.Context, sessionID, userGUID, name, rawArgs string) (Response, error) {
	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			if _, ok := e.GetAgent(name); !ok {
				return Response{}, fmt.Errorf("engine: %w: %s", core.ErrAgentNotFound, name)
			}
			verr := &agent.Error{
				Agent:   name,
				Code:    agent.CodeValidation,
				Message: fmt.Sprintf("arguments are not a JSON object: %v", err),
			}
			req := Request{SessionID: sessionID, UserGUID: userGUID, Agent: name}
			if req.SessionID == "" {
				req.SessionID = core.NewID()
			}
			return e.finish(req, core.NewID(), "", verr, 0)
		}
	}
	return e.Perform(ctx, Request{SessionID: sessionID, UserGUID: userGUID, Agent: name, Args: args})
}

// Cancel aborts an in-flight perform. Agents observe it through their
// invocation context.
func (e *Engine) Cancel(invocationID string) error {
	e.invocationsMu.Lock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.Unlock()

	if !exists {
		return fmt.Errorf("engine: invocation %s: %w", invocationID, core.ErrNotFound)
	}
	cancel()
	return nil
}

// ActiveInvocations returns the ids of performs currently running.
func (e *Engine) ActiveInvocations() []string {
	e.invocationsMu.Lock()
	defer e.invocationsMu.Unlock()
	ids := make([]string, 0, len(e.activeInvocations))
	for id := range e.activeInvocations {
		ids = append(ids, id)
	}
	return ids
}

// Session returns a snapshot of a session.
func (e *Engine) Session(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

// RecordMessage appends a conversational turn to the session history.
func (e *Engine) RecordMessage(sessionID string, ev core.Event) error {
	return e.sessionStore.AppendEvent(sessionID, ev)
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if e.slots == nil {
		return func() {}, nil
	}
	select {
	case e.slots <- struct{}{}:
		return func() { <-e.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("engine: waiting for a perform slot: %w", ctx.Err())
	}
}

func (e *Engine) invocationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.InvocationTimeout > 0 {
		return context.WithTimeout(ctx, e.config.InvocationTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) track(id string, cancel context.CancelFunc) {
	e.invocationsMu.Lock()
	e.activeInvocations[id] = cancel
	e.invocationsMu.Unlock()
}

func (e *Engine) untrack(id string) {
	e.invocationsMu.Lock()
	delete(e.activeInvocations, id)
	e.invocationsMu.Unlock()
}

func (e *Engine) safePerform(a core.Agent, invCtx *core.InvocationContext) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine.perform.panic", "agent", a.Name(), "invocation_id", invCtx.InvocationID, "panic", fmt.Sprint(r))
			out = ""
			err = &agent.Error{Agent: a.Name(), Code: CodePanic, Message: fmt.Sprintf("agent panicked: %v", r)}
		}
	}()
	return a.Perform(invCtx)
}

// finish records the perform event, runs after/error callbacks and logs.
func (e *Engine) finish(req Request, invocationID, output string, err error, dur time.Duration, cbCtx ...*CallbackContext) (Response, error) {
	ev := core.NewPerformEvent(invocationID, req.Agent, req.Args, output, err, dur)
	if appendErr := e.sessionStore.AppendEvent(req.SessionID, ev); appendErr != nil {
		e.logger.Warn("engine.session.append_failed", "session_id", req.SessionID, "error", appendErr.Error())
	}

	if pl, ok := e.logger.(interface {
		LogPerform(agent string, dur time.Duration, err error)
	}); ok {
		pl.LogPerform(req.Agent, dur, err)
	} else if err != nil {
		e.logger.Warn("engine.perform.failed", "agent", req.Agent, "invocation_id", invocationID, "error", err.Error())
	} else {
		e.logger.Info("engine.perform.completed", "agent", req.Agent, "invocation_id", invocationID, "duration_ms", dur.Milliseconds())
	}

	if len(cbCtx) > 0 && cbCtx[0] != nil {
		c := cbCtx[0]
		c.Event = &ev
		c.Err = err
		cbType := CallbackAfterPerform
		if err != nil {
			cbType = CallbackOnError
		}
		if cbErr := e.callbacks.ExecuteCallbacks(context.WithoutCancel(c.InvocationContext.Context), cbType, c); cbErr != nil {
			e.logger.Warn("engine.callback.failed", "type", string(cbType), "error", cbErr.Error())
		}
	}

	return Response{
		InvocationID: invocationID,
		Agent:        req.Agent,
		Output:       output,
		Duration:     dur,
		Event:        ev,
	}, err
}
