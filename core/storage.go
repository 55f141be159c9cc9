package core

import "context"

// FileStore is the generic file-storage abstraction beneath the memory store.
//
// Paths are relative and slash separated ("memory/<guid>/user_memory.json").
// Implementations must be safe for concurrent use, must return ErrNotFound
// (possibly wrapped) for missing paths, and must treat Write as a full
// replacement of the file contents. List matches paths against a doublestar
// glob pattern ("memory/*/user_memory.json", "sessions/**") and returns them
// sorted.
type FileStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, pattern string) ([]string, error)
}
