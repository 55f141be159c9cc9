package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/goccy/go-json"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/logging"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Date and time layouts of the entry "date" and "time" fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// DefaultImportance is used when an entry carries no importance.
const DefaultImportance = 3

// Options configures a Store.
type Options struct {
	// Clock stamps new entries. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives warnings about unreadable blobs.
	Logger logging.Logger
}

// Store is a core.MemoryStore persisting one blob per namespace.
type Store struct {
	files core.FileStore
	locks *haxmap.Map[string, *sync.Mutex]
	opts  Options
}

var _ core.MemoryStore = (*Store)(nil)

// New creates a Store over files.
func New(files core.FileStore, optFns ...func(o *Options)) *Store {
	opts := Options{
		Clock:  time.Now,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		files: files,
		locks: haxmap.New[string, *sync.Mutex](),
		opts:  opts,
	}
}

// lock serializes read-modify-write cycles on one blob path.
func (s *Store) lock(path string) func() {
	mu, _ := s.locks.GetOrCompute(path, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// load returns the raw blob at path. A missing blob reads as an empty object.
func (s *Store) load(ctx context.Context, path string) ([]byte, error) {
	data, err := s.files.Read(ctx, path)
	if errors.Is(err, core.ErrNotFound) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		s.opts.Logger.Warn("memory.blob.corrupt", "path", path, "bytes", len(data))
		return nil, fmt.Errorf("memory: %s: %w", path, core.ErrCorruptDocument)
	}
	return data, nil
}

// decode iterates the blob in document order. Values that are not objects
// are skipped.
func decode(raw []byte) []core.MemoryEntry {
	var out []core.MemoryEntry
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		var e core.MemoryEntry
		if err := json.Unmarshal([]byte(value.Raw), &e); err != nil {
			return true
		}
		e.ID = key.String()
		out = append(out, e)
		return true
	})
	return out
}

func (s *Store) normalize(entry core.MemoryEntry) (core.MemoryEntry, error) {
	entry.Message = strings.TrimSpace(entry.Message)
	if entry.Message == "" {
		return entry, errors.New("memory: entry message is empty")
	}
	entry.Type = strings.ToLower(strings.TrimSpace(entry.Type))
	if entry.Type == "" {
		entry.Type = core.MemoryTypeFact
	}
	if !IsMemoryType(entry.Type) {
		return entry, fmt.Errorf("memory: unknown memory type %q", entry.Type)
	}
	switch {
	case entry.Importance == 0:
		entry.Importance = DefaultImportance
	case entry.Importance < 1:
		entry.Importance = 1
	case entry.Importance > 5:
		entry.Importance = 5
	}
	if entry.ID == "" {
		entry.ID = core.NewID()
	}
	if entry.Date == "" || entry.Time == "" {
		now := s.opts.Clock()
		entry.Date = now.Format(DateLayout)
		entry.Time = now.Format(TimeLayout)
	}
	return entry, nil
}

// IsMemoryType reports whether t is one of core.MemoryTypes.
func IsMemoryType(t string) bool {
	for _, mt := range core.MemoryTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// Store implements core.MemoryStore.
func (s *Store) Store(ctx context.Context, ns core.Namespace, entry core.MemoryEntry) (core.MemoryEntry, error) {
	path, err := ns.Path()
	if err != nil {
		return core.MemoryEntry{}, err
	}
	entry, err = s.normalize(entry)
	if err != nil {
		return core.MemoryEntry{}, err
	}
	if ns.Scope == core.ScopeSession && entry.SessionID == "" {
		entry.SessionID = ns.SessionID
	}

	unlock := s.lock(path)
	defer unlock()

	raw, err := s.load(ctx, path)
	if err != nil {
		return core.MemoryEntry{}, err
	}
	raw, err = setEntry(raw, entry)
	if err != nil {
		return core.MemoryEntry{}, fmt.Errorf("memory: update %s: %w", path, err)
	}
	if err := s.files.Write(ctx, path, raw); err != nil {
		return core.MemoryEntry{}, fmt.Errorf("memory: write %s: %w", path, err)
	}
	return entry, nil
}

// setEntry writes the known fields of entry under its id, leaving any other
// keys of an existing entry untouched.
func setEntry(raw []byte, e core.MemoryEntry) ([]byte, error) {
	key := escapeKey(e.ID)
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	if !gjson.GetBytes(raw, key).IsObject() {
		e.Tags = tags
		doc, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes(raw, key, doc)
	}
	base := key + "."
	fields := []struct {
		key   string
		value any
	}{
		{"conversation_id", e.ConversationID},
		{"session_id", e.SessionID},
		{"message", e.Message},
		{"mem_type", e.Type},
		{"importance", e.Importance},
		{"tags", tags},
		{"date", e.Date},
		{"time", e.Time},
	}
	var err error
	for _, f := range fields {
		if raw, err = sjson.SetBytes(raw, base+f.key, f.value); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// escapeKey escapes path syntax characters so an id is addressed literally.
func escapeKey(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get implements core.MemoryStore.
func (s *Store) Get(ctx context.Context, ns core.Namespace, id string) (core.MemoryEntry, error) {
	path, err := ns.Path()
	if err != nil {
		return core.MemoryEntry{}, err
	}
	raw, err := s.load(ctx, path)
	if err != nil {
		return core.MemoryEntry{}, err
	}
	value := gjson.GetBytes(raw, escapeKey(id))
	if !value.Exists() || !value.IsObject() {
		return core.MemoryEntry{}, fmt.Errorf("memory: %s in %s: %w", id, ns, core.ErrNotFound)
	}
	var e core.MemoryEntry
	if err := json.Unmarshal([]byte(value.Raw), &e); err != nil {
		return core.MemoryEntry{}, fmt.Errorf("memory: decode %s: %w", id, err)
	}
	e.ID = id
	return e, nil
}

// List implements core.MemoryStore.
func (s *Store) List(ctx context.Context, ns core.Namespace) ([]core.MemoryEntry, error) {
	return s.Search(ctx, ns, core.MemoryQuery{All: true})
}

// Search implements core.MemoryStore.
func (s *Store) Search(ctx context.Context, ns core.Namespace, q core.MemoryQuery) ([]core.MemoryEntry, error) {
	path, err := ns.Path()
	if err != nil {
		return nil, err
	}
	raw, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return Filter(decode(raw), q), nil
}

// Delete implements core.MemoryStore.
func (s *Store) Delete(ctx context.Context, ns core.Namespace, id string) error {
	path, err := ns.Path()
	if err != nil {
		return err
	}
	unlock := s.lock(path)
	defer unlock()

	raw, err := s.load(ctx, path)
	if err != nil {
		return err
	}
	key := escapeKey(id)
	if !gjson.GetBytes(raw, key).Exists() {
		return fmt.Errorf("memory: %s in %s: %w", id, ns, core.ErrNotFound)
	}
	raw, err = sjson.DeleteBytes(raw, key)
	if err != nil {
		return fmt.Errorf("memory: update %s: %w", path, err)
	}
	if err := s.files.Write(ctx, path, raw); err != nil {
		return fmt.Errorf("memory: write %s: %w", path, err)
	}
	return nil
}

// Clear implements core.MemoryStore. Clearing a missing namespace succeeds.
func (s *Store) Clear(ctx context.Context, ns core.Namespace) error {
	path, err := ns.Path()
	if err != nil {
		return err
	}
	unlock := s.lock(path)
	defer unlock()

	if err := s.files.Delete(ctx, path); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("memory: clear %s: %w", path, err)
	}
	return nil
}

// Recall merges the session, user and global tiers. An entry id present in
// several tiers resolves to the narrowest one. An invalid guid skips the user
// tier and an empty sessionID skips the session tier.
func (s *Store) Recall(ctx context.Context, guid, sessionID string, q core.MemoryQuery) ([]core.MemoryEntry, error) {
	var tiers []core.Namespace
	if strings.TrimSpace(sessionID) != "" {
		tiers = append(tiers, core.SessionNamespace(sessionID))
	}
	if core.IsValidGUID(guid) {
		tiers = append(tiers, core.UserNamespace(guid))
	}
	tiers = append(tiers, core.GlobalNamespace())

	seen := make(map[string]struct{})
	var merged []core.MemoryEntry
	for _, ns := range tiers {
		entries, err := s.List(ctx, ns)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}
	return Filter(merged, q), nil
}

// Filter applies q to entries and returns the matches newest first.
func Filter(entries []core.MemoryEntry, q core.MemoryQuery) []core.MemoryEntry {
	keywords := make([]string, 0, len(q.Keywords))
	for _, k := range q.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	out := make([]core.MemoryEntry, 0, len(entries))
	for _, e := range entries {
		if len(q.Types) > 0 && !containsFold(q.Types, e.Type) {
			continue
		}
		if len(keywords) > 0 && !matchesAny(e, keywords) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Timestamp(), out[j].Timestamp()
		if ti != tj {
			return ti > tj
		}
		return out[i].ID < out[j].ID
	})
	if !q.All && q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAny(e core.MemoryEntry, keywords []string) bool {
	msg := strings.ToLower(e.Message)
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
		for _, tag := range e.Tags {
			if strings.Contains(strings.ToLower(tag), k) {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
