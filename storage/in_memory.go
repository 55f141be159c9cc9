package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentcatalog/core"
)

// InMemoryStore is an in-process FileStore for tests, examples and
// single-process deployments. Data is copied on write and read so callers
// cannot mutate stored buffers.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte // cleaned path -> contents
}

// NewInMemoryStore returns an empty in-memory file store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{files: make(map[string][]byte)}
}

// Read returns a copy of the file contents or core.ErrNotFound.
func (s *InMemoryStore) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("storage: %s: %w", key, core.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Write stores (or overwrites) the file contents.
func (s *InMemoryStore) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := CleanPath(p)
	if err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = cp
	return nil
}

// Delete removes the file or returns core.ErrNotFound.
func (s *InMemoryStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := CleanPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("storage: %s: %w", key, core.ErrNotFound)
	}
	delete(s.files, key)
	return nil
}

// List returns the stored paths matching pattern, sorted.
func (s *InMemoryStore) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	s.mu.RLock()
	names := make([]string, 0, len(s.files))
	for k := range s.files {
		names = append(names, k)
	}
	s.mu.RUnlock()
	return FilterSorted(pattern, names), nil
}
