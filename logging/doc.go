// Package logging provides the minimal logging interface used across
// agentcatalog plus adapters.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// with slog-style key/value arguments. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping any *slog.Logger
//   - CatalogLogger with component/session context and domain helpers
//     (agent performs, storage operations, model calls)
//   - a zerolog backend bridged into slog for console or zerolog JSON output
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "console", false)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
package logging
