package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.FileStore = (*InMemoryStore)(nil)
var _ core.FileStore = (*LoggedStore)(nil)

func TestInMemoryStore_WriteReadIsolation(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	data := []byte("hello")
	require.NoError(t, svc.Write(ctx, "a/b.json", data))

	data[0] = 'H'
	out, err := svc.Read(ctx, "a/b.json")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out[0] = 'x'
	out2, _ := svc.Read(ctx, "./a//b.json")
	assert.Equal(t, "hello", string(out2), "paths are cleaned and reads are copies")
}

func TestInMemoryStore_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	_, err := svc.Read(ctx, "missing.json")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, "missing.json"), core.ErrNotFound))

	require.NoError(t, svc.Write(ctx, "x.json", []byte("1")))
	require.NoError(t, svc.Delete(ctx, "x.json"))
	_, err = svc.Read(ctx, "x.json")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestInMemoryStore_ListGlob(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	for _, p := range []string{
		"memory/b/user_memory.json",
		"memory/a/user_memory.json",
		"memory/a/notes.txt",
		"shared_memories/memory.json",
		"sessions/s1/session_memory.json",
	} {
		require.NoError(t, svc.Write(ctx, p, []byte("{}")))
	}

	got, err := svc.List(ctx, "memory/*/user_memory.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"memory/a/user_memory.json", "memory/b/user_memory.json"}, got)

	all, err := svc.List(ctx, "**")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = svc.List(ctx, "memory/[")
	assert.Error(t, err)
}

func TestInMemoryStore_RejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	for _, p := range []string{"", "/etc/passwd", "../x", "a/../../x", "."} {
		assert.Error(t, svc.Write(ctx, p, nil), "path %q", p)
	}
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewInMemoryStore()
	assert.ErrorIs(t, svc.Write(ctx, "a", nil), context.Canceled)
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := svc.Write(ctx, fmt.Sprintf("f/%d", i%10), []byte("data")); err != nil {
				t.Errorf("write err: %v", err)
			}
			_, _ = svc.List(ctx, "f/*")
		}(i)
	}
	wg.Wait()
	names, err := svc.List(ctx, "f/*")
	require.NoError(t, err)
	assert.Len(t, names, 10)
}

func TestStaticPrefix(t *testing.T) {
	assert.Equal(t, "memory/", StaticPrefix("memory/*/user_memory.json"))
	assert.Equal(t, "", StaticPrefix("**"))
	assert.Equal(t, "sessions/s1/", StaticPrefix("sessions/s1/*.json"))
}

type recordingLogger struct {
	mu    sync.Mutex
	debug []string
	warn  []string
}

func (r *recordingLogger) Debug(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = append(r.debug, msg)
}

func (r *recordingLogger) Info(string, ...any) {}

func (r *recordingLogger) Warn(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warn = append(r.warn, msg)
}

func (r *recordingLogger) Error(string, ...any) {}

func TestLoggedStore_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	rec := &recordingLogger{}
	fs := WithLogging(NewInMemoryStore(), "memory", rec)

	require.NoError(t, fs.Write(ctx, "a.json", []byte("{}")))
	_, err := fs.Read(ctx, "missing.json")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.Error(t, fs.Write(ctx, "../bad", nil))

	assert.Equal(t, []string{"storage.op.completed", "storage.op.miss"}, rec.debug)
	assert.Equal(t, []string{"storage.op.failed"}, rec.warn)
}
