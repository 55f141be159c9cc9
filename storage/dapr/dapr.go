// Package dapr stores memory blobs in a Dapr state store. Dapr state stores
// have no portable key listing, so the store keeps its own key index under a
// reserved key.
package dapr

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dapr/go-sdk/client"
	"github.com/goccy/go-json"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/storage"
)

// DefaultIndexKey holds the JSON array of known keys.
const DefaultIndexKey = "agentcatalog/__index__"

// StateClient is the subset of client.Client used by Store.
type StateClient interface {
	GetState(ctx context.Context, storeName, key string, meta map[string]string) (*client.StateItem, error)
	SaveState(ctx context.Context, storeName, key string, data []byte, meta map[string]string, so ...client.StateOption) error
	DeleteState(ctx context.Context, storeName, key string, meta map[string]string) error
}

var _ StateClient = (client.Client)(nil)

// Options configures the Dapr store.
type Options struct {
	// IndexKey overrides DefaultIndexKey.
	IndexKey string
	// Metadata is passed through on every state call.
	Metadata map[string]string
}

// Store is a core.FileStore over a Dapr state component.
type Store struct {
	c         StateClient
	storeName string
	opts      Options
	mu        sync.Mutex // guards index read-modify-write
}

// New creates a store over an existing client.
func New(c StateClient, storeName string, optFns ...func(o *Options)) *Store {
	opts := Options{IndexKey: DefaultIndexKey}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{c: c, storeName: storeName, opts: opts}
}

// NewFromEnv dials the sidecar configured by the standard DAPR_* variables.
func NewFromEnv(storeName string, optFns ...func(o *Options)) (*Store, client.Client, error) {
	c, err := client.NewClient()
	if err != nil {
		return nil, nil, fmt.Errorf("dapr: create client: %w", err)
	}
	return New(c, storeName, optFns...), c, nil
}

// Read implements core.FileStore.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	item, err := s.c.GetState(ctx, s.storeName, key, s.opts.Metadata)
	if err != nil {
		return nil, fmt.Errorf("dapr: get %s: %w", key, err)
	}
	if item == nil || len(item.Value) == 0 {
		return nil, fmt.Errorf("dapr: %s: %w", key, core.ErrNotFound)
	}
	return item.Value, nil
}

// Write implements core.FileStore.
func (s *Store) Write(ctx context.Context, p string, data []byte) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	if err := s.c.SaveState(ctx, s.storeName, key, data, s.opts.Metadata); err != nil {
		return fmt.Errorf("dapr: save %s: %w", key, err)
	}
	return s.updateIndex(ctx, func(keys map[string]struct{}) bool {
		if _, ok := keys[key]; ok {
			return false
		}
		keys[key] = struct{}{}
		return true
	})
}

// Delete implements core.FileStore.
func (s *Store) Delete(ctx context.Context, p string) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	if _, err := s.Read(ctx, key); err != nil {
		return err
	}
	if err := s.c.DeleteState(ctx, s.storeName, key, s.opts.Metadata); err != nil {
		return fmt.Errorf("dapr: delete %s: %w", key, err)
	}
	return s.updateIndex(ctx, func(keys map[string]struct{}) bool {
		if _, ok := keys[key]; !ok {
			return false
		}
		delete(keys, key)
		return true
	})
}

// List implements core.FileStore.
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if err := storage.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	s.mu.Lock()
	keys, err := s.loadIndex(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	return storage.FilterSorted(pattern, names), nil
}

func (s *Store) key(p string) (string, error) {
	key, err := storage.CleanPath(p)
	if err != nil {
		return "", err
	}
	if key == s.opts.IndexKey {
		return "", fmt.Errorf("dapr: %q is reserved", key)
	}
	return key, nil
}

func (s *Store) loadIndex(ctx context.Context) (map[string]struct{}, error) {
	item, err := s.c.GetState(ctx, s.storeName, s.opts.IndexKey, s.opts.Metadata)
	if err != nil {
		return nil, fmt.Errorf("dapr: load index: %w", err)
	}
	keys := map[string]struct{}{}
	if item == nil || len(item.Value) == 0 {
		return keys, nil
	}
	var list []string
	if err := json.Unmarshal(item.Value, &list); err != nil {
		return nil, fmt.Errorf("dapr: decode index: %w", err)
	}
	for _, k := range list {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (s *Store) updateIndex(ctx context.Context, mutate func(map[string]struct{}) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	if !mutate(keys) {
		return nil
	}
	list := make([]string, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	sort.Strings(list)
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("dapr: encode index: %w", err)
	}
	if err := s.c.SaveState(ctx, s.storeName, s.opts.IndexKey, data, s.opts.Metadata); err != nil {
		return fmt.Errorf("dapr: save index: %w", err)
	}
	return nil
}
