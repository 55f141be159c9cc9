// Package natsobj stores memory blobs in a NATS JetStream object store
// bucket. Object names are the cleaned store paths.
package natsobj

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/storage"
	"github.com/nats-io/nats.go"
)

// ObjectStore is the subset of nats.ObjectStore used by Store.
type ObjectStore interface {
	PutBytes(name string, data []byte, opts ...nats.ObjectOpt) (*nats.ObjectInfo, error)
	GetBytes(name string, opts ...nats.GetObjectOpt) ([]byte, error)
	Delete(name string) error
	List(opts ...nats.ListObjectsOpt) ([]*nats.ObjectInfo, error)
}

var _ ObjectStore = (nats.ObjectStore)(nil)

// Store is a core.FileStore backed by a JetStream object store.
type Store struct {
	obj ObjectStore
}

// New wraps an existing object store handle.
func New(obj ObjectStore) *Store {
	return &Store{obj: obj}
}

// Open binds to bucket on nc, creating the bucket when it does not exist.
func Open(nc *nats.Conn, bucket string) (*Store, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("natsobj: jetstream: %w", err)
	}
	obj, err := js.ObjectStore(bucket)
	if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrBucketNotFound) {
		obj, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "agentcatalog memory blobs",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("natsobj: bucket %q: %w", bucket, err)
	}
	return New(obj), nil
}

// Read implements core.FileStore.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := storage.CleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.obj.GetBytes(key, nats.Context(ctx))
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, fmt.Errorf("natsobj: %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("natsobj: get %s: %w", key, err)
	}
	return data, nil
}

// Write implements core.FileStore.
func (s *Store) Write(ctx context.Context, p string, data []byte) error {
	key, err := storage.CleanPath(p)
	if err != nil {
		return err
	}
	if _, err := s.obj.PutBytes(key, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("natsobj: put %s: %w", key, err)
	}
	return nil
}

// Delete implements core.FileStore.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := storage.CleanPath(p)
	if err != nil {
		return err
	}
	err = s.obj.Delete(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("natsobj: %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("natsobj: delete %s: %w", key, err)
	}
	return nil
}

// List implements core.FileStore.
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if err := storage.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	infos, err := s.obj.List(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoObjectsFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("natsobj: list: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		names = append(names, info.Name)
	}
	return storage.FilterSorted(pattern, names), nil
}
