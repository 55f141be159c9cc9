package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/logging"
)

// LoggedStore decorates a FileStore with structured operation logging.
// Successful operations and expected misses log at debug level; other
// failures log as warnings.
type LoggedStore struct {
	inner   core.FileStore
	backend string
	logger  logging.Logger
}

// WithLogging wraps inner. A nil logger returns inner unchanged.
func WithLogging(inner core.FileStore, backend string, logger logging.Logger) core.FileStore {
	if logger == nil {
		return inner
	}
	if _, ok := logger.(logging.NoOpLogger); ok {
		return inner
	}
	return &LoggedStore{inner: inner, backend: backend, logger: logger}
}

// Unwrap returns the decorated store.
func (s *LoggedStore) Unwrap() core.FileStore { return s.inner }

func (s *LoggedStore) record(op, p string, n int, start time.Time, err error) {
	args := []any{"backend", s.backend, "op", op, "path", p, "bytes", n, "duration_ms", time.Since(start).Milliseconds()}
	switch {
	case err == nil:
		s.logger.Debug("storage.op.completed", args...)
	case errors.Is(err, core.ErrNotFound):
		s.logger.Debug("storage.op.miss", args...)
	default:
		s.logger.Warn("storage.op.failed", append(args, "error", err.Error())...)
	}
}

// Read implements core.FileStore.
func (s *LoggedStore) Read(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.Read(ctx, p)
	s.record("read", p, len(data), start, err)
	return data, err
}

// Write implements core.FileStore.
func (s *LoggedStore) Write(ctx context.Context, p string, data []byte) error {
	start := time.Now()
	err := s.inner.Write(ctx, p, data)
	s.record("write", p, len(data), start, err)
	return err
}

// Delete implements core.FileStore.
func (s *LoggedStore) Delete(ctx context.Context, p string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, p)
	s.record("delete", p, 0, start, err)
	return err
}

// List implements core.FileStore.
func (s *LoggedStore) List(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	names, err := s.inner.List(ctx, pattern)
	s.record("list", pattern, len(names), start, err)
	return names, err
}
