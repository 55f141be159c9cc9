package core

import (
	"context"
	"fmt"
	"strings"
)

// Scope selects one of the three memory tiers.
type Scope string

const (
	// ScopeSession holds memories bound to a single conversation session.
	ScopeSession Scope = "session"
	// ScopeUser holds memories bound to a user GUID across sessions.
	ScopeUser Scope = "user"
	// ScopeGlobal holds memories shared by every user.
	ScopeGlobal Scope = "global"
)

// ParseScope converts a user supplied scope name. Empty input yields ScopeUser.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeUser:
		return ScopeUser, nil
	case ScopeSession:
		return ScopeSession, nil
	case ScopeGlobal, "shared":
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown memory scope %q", s)
	}
}

// Namespace addresses one memory blob.
type Namespace struct {
	Scope     Scope
	UserGUID  string
	SessionID string
}

// GlobalNamespace returns the shared namespace.
func GlobalNamespace() Namespace { return Namespace{Scope: ScopeGlobal} }

// UserNamespace returns the namespace of a single user. The GUID is stored in
// canonical lower-case form.
func UserNamespace(guid string) Namespace {
	return Namespace{Scope: ScopeUser, UserGUID: canonicalGUID(guid)}
}

func canonicalGUID(guid string) string { return strings.ToLower(strings.TrimSpace(guid)) }

// SessionNamespace returns the namespace of a single conversation session.
func SessionNamespace(sessionID string) Namespace {
	return Namespace{Scope: ScopeSession, SessionID: sessionID}
}

// ResolveNamespace picks the user tier for a valid GUID and falls back to the
// global tier otherwise (including DefaultUserGUID).
func ResolveNamespace(guid string) Namespace {
	if IsValidGUID(guid) {
		return UserNamespace(guid)
	}
	return GlobalNamespace()
}

// Path returns the storage path of the namespace blob.
func (n Namespace) Path() (string, error) {
	switch n.Scope {
	case ScopeGlobal:
		return "shared_memories/memory.json", nil
	case ScopeUser:
		if !IsValidGUID(n.UserGUID) {
			return "", fmt.Errorf("%w: user scope requires a valid guid, got %q", ErrInvalidNamespace, n.UserGUID)
		}
		return "memory/" + canonicalGUID(n.UserGUID) + "/user_memory.json", nil
	case ScopeSession:
		id := strings.TrimSpace(n.SessionID)
		if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
			return "", fmt.Errorf("%w: session scope requires a plain session id, got %q", ErrInvalidNamespace, n.SessionID)
		}
		return "sessions/" + id + "/session_memory.json", nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidNamespace, n.Scope)
	}
}

// String implements fmt.Stringer.
func (n Namespace) String() string {
	switch n.Scope {
	case ScopeUser:
		return "user:" + canonicalGUID(n.UserGUID)
	case ScopeSession:
		return "session:" + n.SessionID
	default:
		return string(n.Scope)
	}
}

// Memory types accepted by the store.
const (
	MemoryTypeFact       = "fact"
	MemoryTypePreference = "preference"
	MemoryTypeInsight    = "insight"
	MemoryTypeTask       = "task"
)

// MemoryTypes lists the accepted memory types in display order.
var MemoryTypes = []string{MemoryTypeFact, MemoryTypePreference, MemoryTypeInsight, MemoryTypeTask}

// MemoryEntry is a single persisted memory. JSON keys follow the blob format
// written by earlier versions of the memory agents so existing files load
// unchanged.
type MemoryEntry struct {
	ID             string   `json:"-"`
	ConversationID string   `json:"conversation_id"`
	SessionID      string   `json:"session_id"`
	Message        string   `json:"message"`
	Type           string   `json:"mem_type"`
	Importance     int      `json:"importance,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
}

// Timestamp returns a sortable "date time" key.
func (e MemoryEntry) Timestamp() string { return e.Date + " " + e.Time }

// MemoryQuery filters memory listings.
type MemoryQuery struct {
	Keywords []string // any keyword matches message or tags (case-insensitive)
	Types    []string // empty means every type
	Limit    int      // 0 means no limit
	All      bool     // ignore Limit
}

// MemoryStore persists memories per namespace. Listing methods return entries
// newest first.
type MemoryStore interface {
	Store(ctx context.Context, ns Namespace, entry MemoryEntry) (MemoryEntry, error)
	Get(ctx context.Context, ns Namespace, id string) (MemoryEntry, error)
	List(ctx context.Context, ns Namespace) ([]MemoryEntry, error)
	Search(ctx context.Context, ns Namespace, q MemoryQuery) ([]MemoryEntry, error)
	Delete(ctx context.Context, ns Namespace, id string) error
	Clear(ctx context.Context, ns Namespace) error
}
