package testutil

import (
	"github.com/hupe1980/agentcatalog/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User(guid).Events(ev1, ev2).Build()
type SessionBuilder struct {
	id       string
	userGUID string
	state    map[string]any
	events   []core.Event
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// User sets the owning user GUID (chainable).
func (b *SessionBuilder) User(guid string) *SessionBuilder {
	b.userGUID = guid
	return b
}

// State sets or overwrites a state key/value pair (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Events appends events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with pre-populated state and events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.UserGUID = b.userGUID
	for k, v := range b.state {
		s.State[k] = v
	}
	s.Events = append(s.Events, b.events...)
	return s
}
