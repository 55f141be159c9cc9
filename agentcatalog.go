// Package agentcatalog provides a high-level facade over the catalog engine,
// the memory store and the assistant host loop. Most applications:
//  1. Create a Catalog via New (in-memory defaults) or NewFromConfig
//  2. Register additional agents next to the built-in memory agents
//  3. Answer user turns with Respond, perform agents directly with Perform,
//     or serve both over HTTP with Server
package agentcatalog

import (
	"context"
	"errors"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/nats-io/nats.go"

	"github.com/hupe1980/agentcatalog/agents/memoryagent"
	"github.com/hupe1980/agentcatalog/assistant"
	"github.com/hupe1980/agentcatalog/config"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/engine"
	"github.com/hupe1980/agentcatalog/logging"
	"github.com/hupe1980/agentcatalog/memory"
	"github.com/hupe1980/agentcatalog/model"
	"github.com/hupe1980/agentcatalog/model/anthropic"
	"github.com/hupe1980/agentcatalog/model/openai"
	"github.com/hupe1980/agentcatalog/server"
	"github.com/hupe1980/agentcatalog/storage"
	daprstore "github.com/hupe1980/agentcatalog/storage/dapr"
	"github.com/hupe1980/agentcatalog/storage/local"
	"github.com/hupe1980/agentcatalog/storage/natsobj"
	s3store "github.com/hupe1980/agentcatalog/storage/s3"
)

// ErrNoModel is returned by Respond when the catalog was built without a model.
var ErrNoModel = errors.New("agentcatalog: no model configured")

// Options configures a Catalog.
type Options struct {
	// EngineConfig tunes concurrency and timeouts.
	EngineConfig engine.Config

	// FileStore holds memory blobs. Defaults to an in-memory store.
	FileStore core.FileStore
	// SessionStore records turns and performs. Defaults to in-memory.
	SessionStore core.SessionStore

	// Model drives the assistant. Without a model Respond fails with ErrNoModel.
	Model model.Model
	// AssistantOptions customize the assistant.
	AssistantOptions []func(o *assistant.Options)

	// Agents are registered after the built-in memory agents.
	Agents []core.Agent
	// DisableMemoryAgents skips ManageMemory and ContextMemory.
	DisableMemoryAgents bool

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Catalog aggregates the engine, the memory store and the assistant.
type Catalog struct {
	engine    *engine.Engine
	assistant *assistant.Assistant
	logger    logging.Logger
	closers   []func() error
}

// New creates a Catalog. Unset services use in-memory implementations.
func New(optFns ...func(o *Options)) (*Catalog, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.FileStore == nil {
		opts.FileStore = storage.NewInMemoryStore()
	}

	mem := memory.New(opts.FileStore, func(o *memory.Options) { o.Logger = opts.Logger })

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.FileStore = opts.FileStore
		o.MemoryStore = mem
		o.Logger = opts.Logger
	})

	var agents []core.Agent
	if !opts.DisableMemoryAgents {
		agents = append(agents, memoryagent.Agents()...)
	}
	agents = append(agents, opts.Agents...)
	for _, a := range agents {
		if err := e.Register(a); err != nil {
			return nil, err
		}
	}

	c := &Catalog{engine: e, logger: opts.Logger}
	if opts.Model != nil {
		asst, err := assistant.New(e, opts.Model, opts.AssistantOptions...)
		if err != nil {
			return nil, err
		}
		c.assistant = asst
	}
	return c, nil
}

// NewFromConfig wires storage, model, logger and engine from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Catalog, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Component: "agentcatalog",
	})

	files, closer, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	m, err := NewModel(cfg.Model)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}

	fromConfig := func(o *Options) {
		o.EngineConfig = engine.Config{
			MaxConcurrentInvocations: cfg.Engine.MaxConcurrentInvocations,
			InvocationTimeout:        cfg.Engine.InvocationTimeout,
		}
		o.FileStore = storage.WithLogging(files, cfg.Storage.Backend, logger.WithComponent("storage"))
		o.Model = m
		o.Logger = logger
		o.AssistantOptions = append(o.AssistantOptions, func(ao *assistant.Options) {
			ao.Name = cfg.Assistant.Name
			ao.Personality = cfg.Assistant.Personality
			ao.MaxRounds = cfg.Assistant.MaxRounds
			ao.MaxParallel = cfg.Assistant.MaxParallel
		})
	}

	c, err := New(append([]func(o *Options){fromConfig}, optFns...)...)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	logger.Info("agentcatalog.ready", "storage", cfg.Storage.Backend, "model", m.Info().Name, "agents", len(c.engine.Agents()))
	return c, nil
}

// OpenStorage creates the file store selected by cfg. The returned closer
// releases client connections and may be nil.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (core.FileStore, func() error, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return storage.NewInMemoryStore(), nil, nil
	case config.BackendLocal:
		s, err := local.New(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.BackendS3:
		s, err := s3store.NewFromDefaultConfig(ctx, cfg.Bucket, func(o *s3store.Options) { o.Prefix = cfg.Prefix })
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.BackendNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("agentcatalog"))
		if err != nil {
			return nil, nil, fmt.Errorf("agentcatalog: connect nats: %w", err)
		}
		s, err := natsobj.Open(nc, cfg.Bucket)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return s, nc.Drain, nil
	case config.BackendDapr:
		s, client, err := daprstore.NewFromEnv(cfg.DaprStore)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error {
			client.Close()
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("agentcatalog: unknown storage backend %q", cfg.Backend)
	}
}

// NewModel creates the model adapter selected by cfg.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = sdkanthropic.Model(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	default:
		return nil, fmt.Errorf("agentcatalog: unknown model provider %q", cfg.Provider)
	}
}

// Engine returns the underlying engine.
func (c *Catalog) Engine() *engine.Engine { return c.engine }

// Assistant returns the assistant, or nil without a model.
func (c *Catalog) Assistant() *assistant.Assistant { return c.assistant }

// Memory returns the memory store.
func (c *Catalog) Memory() core.MemoryStore { return c.engine.Memory() }

// Register adds an agent to the catalog.
func (c *Catalog) Register(a core.Agent) error { return c.engine.Register(a) }

// Perform runs one agent directly.
func (c *Catalog) Perform(ctx context.Context, req engine.Request) (engine.Response, error) {
	return c.engine.Perform(ctx, req)
}

// Respond answers one user turn.
func (c *Catalog) Respond(ctx context.Context, turn assistant.Turn) (assistant.Reply, error) {
	if c.assistant == nil {
		return assistant.Reply{}, ErrNoModel
	}
	return c.assistant.Respond(ctx, turn)
}

// Server returns an HTTP server for the catalog.
func (c *Catalog) Server(optFns ...func(o *server.Options)) *server.Server {
	var responder server.Responder
	if c.assistant != nil {
		responder = c.assistant
	}
	return server.New(c.engine, responder, append([]func(o *server.Options){
		func(o *server.Options) { o.Logger = c.logger },
	}, optFns...)...)
}

// Close releases storage connections.
func (c *Catalog) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
