package testutil

import (
	"errors"
	"time"

	"github.com/hupe1980/agentcatalog/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("ManageMemory").Invocation("inv-1").Output("ok").Build()
//
// Without text the event is a perform record; UserText and AssistantText
// turn it into a conversational turn.
type EventBuilder struct {
	author       string
	invocationID string
	id           string
	args         map[string]any
	output       string
	err          error
	role         string
	text         string
	at           time.Time
	duration     time.Duration
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "agent"} }

// Author sets the author (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder {
	b.author = a
	return b
}

// Invocation sets the invocation ID (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder {
	b.invocationID = id
	return b
}

// ID overrides the generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder {
	b.id = id
	return b
}

// Args sets the perform arguments (chainable).
func (b *EventBuilder) Args(args map[string]any) *EventBuilder {
	b.args = args
	return b
}

// Output sets the perform output (chainable).
func (b *EventBuilder) Output(o string) *EventBuilder {
	b.output = o
	return b
}

// Error marks the perform as failed (chainable).
func (b *EventBuilder) Error(msg string) *EventBuilder {
	b.err = errors.New(msg)
	return b
}

// Err marks the perform as failed with err (chainable).
func (b *EventBuilder) Err(err error) *EventBuilder {
	b.err = err
	return b
}

// At pins the timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder {
	b.at = t
	return b
}

// Duration sets the perform duration (chainable).
func (b *EventBuilder) Duration(d time.Duration) *EventBuilder {
	b.duration = d
	return b
}

// UserText makes the event a user turn (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.author, b.role, b.text = "user", "user", t
	return b
}

// AssistantText makes the event an assistant turn (chainable).
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role, b.text = "assistant", t
	return b
}

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	var ev core.Event
	switch b.role {
	case "user":
		ev = core.NewUserMessageEvent(b.invocationID, b.text)
	case "assistant":
		ev = core.NewMessageEvent(b.invocationID, b.author, b.text)
	default:
		ev = core.NewPerformEvent(b.invocationID, b.author, b.args, b.output, b.err, b.duration)
	}
	if b.id != "" {
		ev.ID = b.id
	}
	if !b.at.IsZero() {
		ev.Timestamp = b.at
	}
	return ev
}
