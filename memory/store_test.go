package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testGUID = "2f6c1b1e-7a1d-4c55-9a51-3c7f0e0b9d11"

// stepClock advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore() (*Store, *storage.InMemoryStore) {
	files := storage.NewInMemoryStore()
	return New(files, func(o *Options) { o.Clock = stepClock() }), files
}

func TestStore_StoreAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	s, files := newTestStore()

	e, err := s.Store(ctx, core.UserNamespace(testGUID), core.MemoryEntry{Message: "  likes tea  "})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "likes tea", e.Message)
	assert.Equal(t, core.MemoryTypeFact, e.Type)
	assert.Equal(t, DefaultImportance, e.Importance)
	assert.Equal(t, "2024-05-01", e.Date)
	assert.Equal(t, "09:00:01", e.Time)

	raw, err := files.Read(ctx, "memory/"+testGUID+"/user_memory.json")
	require.NoError(t, err)
	doc := gjson.ParseBytes(raw).Get(e.ID)
	assert.Equal(t, "likes tea", doc.Get("message").String())
	assert.Equal(t, "fact", doc.Get("mem_type").String())
}

func TestStore_StoreValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	ns := core.GlobalNamespace()

	_, err := s.Store(ctx, ns, core.MemoryEntry{Message: " "})
	assert.Error(t, err)

	_, err = s.Store(ctx, ns, core.MemoryEntry{Message: "x", Type: "opinion"})
	assert.Error(t, err)

	hi, err := s.Store(ctx, ns, core.MemoryEntry{Message: "x", Importance: 42})
	require.NoError(t, err)
	assert.Equal(t, 5, hi.Importance)

	lo, err := s.Store(ctx, ns, core.MemoryEntry{Message: "x", Importance: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, lo.Importance)

	_, err = s.Store(ctx, core.UserNamespace(core.DefaultUserGUID), core.MemoryEntry{Message: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidNamespace)
}

func TestStore_ListNewestFirstAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	ns := core.SessionNamespace("s1")

	first, err := s.Store(ctx, ns, core.MemoryEntry{Message: "first"})
	require.NoError(t, err)
	_, err = s.Store(ctx, ns, core.MemoryEntry{Message: "second"})
	require.NoError(t, err)

	list, err := s.List(ctx, ns)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
	assert.Equal(t, "s1", list[0].SessionID)

	got, err := s.Get(ctx, ns, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Message)

	_, err = s.Get(ctx, ns, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_MissingBlobIsEmpty(t *testing.T) {
	s, _ := newTestStore()
	list, err := s.List(context.Background(), core.GlobalNamespace())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	ns := core.GlobalNamespace()

	for _, e := range []core.MemoryEntry{
		{Message: "Prefers Python over Go", Type: core.MemoryTypePreference},
		{Message: "Deploy on Fridays is banned", Type: core.MemoryTypeFact, Tags: []string{"ops"}},
		{Message: "Quarterly review due", Type: core.MemoryTypeTask},
	} {
		_, err := s.Store(ctx, ns, e)
		require.NoError(t, err)
	}

	hits, err := s.Search(ctx, ns, core.MemoryQuery{Keywords: []string{"python", "OPS"}})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Deploy on Fridays is banned", hits[0].Message)

	tasks, err := s.Search(ctx, ns, core.MemoryQuery{Types: []string{"task"}})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	limited, err := s.Search(ctx, ns, core.MemoryQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	all, err := s.Search(ctx, ns, core.MemoryQuery{Limit: 1, All: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	ns := core.UserNamespace(testGUID)

	e, err := s.Store(ctx, ns, core.MemoryEntry{Message: "temp"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, ns, e.ID))
	assert.ErrorIs(t, s.Delete(ctx, ns, e.ID), core.ErrNotFound)

	_, err = s.Store(ctx, ns, core.MemoryEntry{Message: "keep"})
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, ns))
	require.NoError(t, s.Clear(ctx, ns))

	list, err := s.List(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_PreservesForeignKeys(t *testing.T) {
	ctx := context.Background()
	s, files := newTestStore()
	path := "shared_memories/memory.json"
	require.NoError(t, files.Write(ctx, path, []byte(`{"legacy":{"message":"old","mem_type":"fact","date":"2020-01-01","time":"00:00:00","source":"import"},"note":"not an entry"}`)))

	_, err := s.Store(ctx, core.GlobalNamespace(), core.MemoryEntry{ID: "legacy", Message: "updated"})
	require.NoError(t, err)

	raw, err := files.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "import", gjson.GetBytes(raw, "legacy.source").String())
	assert.Equal(t, "updated", gjson.GetBytes(raw, "legacy.message").String())
	assert.Equal(t, "not an entry", gjson.GetBytes(raw, "note").String())

	list, err := s.List(ctx, core.GlobalNamespace())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStore_IDWithPathSyntax(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	ns := core.GlobalNamespace()

	_, err := s.Store(ctx, ns, core.MemoryEntry{ID: "a.b*c", Message: "dotted"})
	require.NoError(t, err)
	got, err := s.Get(ctx, ns, "a.b*c")
	require.NoError(t, err)
	assert.Equal(t, "dotted", got.Message)
	require.NoError(t, s.Delete(ctx, ns, "a.b*c"))
}

func TestStore_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	s, files := newTestStore()
	path := "shared_memories/memory.json"
	require.NoError(t, files.Write(ctx, path, []byte(`[1,2,3]`)))

	_, err := s.List(ctx, core.GlobalNamespace())
	assert.ErrorIs(t, err, core.ErrCorruptDocument)

	_, err = s.Store(ctx, core.GlobalNamespace(), core.MemoryEntry{Message: "x"})
	assert.ErrorIs(t, err, core.ErrCorruptDocument)

	raw, err := files.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(raw), "corrupt blob is left untouched")
}

func TestStore_ConcurrentWritersDoNotLoseEntries(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	ns := core.UserNamespace(testGUID)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Store(ctx, ns, core.MemoryEntry{Message: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx, ns)
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestStore_RecallPrecedence(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, err := s.Store(ctx, core.GlobalNamespace(), core.MemoryEntry{ID: "shared", Message: "global copy"})
	require.NoError(t, err)
	_, err = s.Store(ctx, core.GlobalNamespace(), core.MemoryEntry{ID: "g-only", Message: "global only"})
	require.NoError(t, err)
	_, err = s.Store(ctx, core.UserNamespace(testGUID), core.MemoryEntry{ID: "shared", Message: "user copy"})
	require.NoError(t, err)
	_, err = s.Store(ctx, core.SessionNamespace("s1"), core.MemoryEntry{ID: "sess", Message: "session note"})
	require.NoError(t, err)

	got, err := s.Recall(ctx, testGUID, "s1", core.MemoryQuery{All: true})
	require.NoError(t, err)
	require.Len(t, got, 3)
	byID := map[string]string{}
	for _, e := range got {
		byID[e.ID] = e.Message
	}
	assert.Equal(t, "user copy", byID["shared"])
	assert.Equal(t, "session note", got[0].Message)

	anon, err := s.Recall(ctx, core.DefaultUserGUID, "", core.MemoryQuery{All: true})
	require.NoError(t, err)
	assert.Len(t, anon, 2)

	limited, err := s.Recall(ctx, testGUID, "s1", core.MemoryQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
