package core

import (
	"errors"
	"fmt"
	"time"
)

// Event is an immutable record appended to a session's history. Two shapes
// exist: perform records (Author is the agent, Args/Output/Error populated)
// and conversational turns (Content populated, Author "user" or the host name).
type Event struct {
	ID           string         `json:"id"`
	InvocationID string         `json:"invocation_id"`
	Author       string         `json:"author"`
	Args         map[string]any `json:"args,omitempty"`
	Output       string         `json:"output,omitempty"`
	ErrorCode    *string        `json:"error_code,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Content      *Content       `json:"content,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Duration     time.Duration  `json:"duration,omitempty"`
}

// NewEvent creates a bare event authored by author bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewUserMessageEvent creates a user-authored text turn.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	c := NewTextContent("user", message)
	e.Content = &c
	return e
}

// NewMessageEvent creates an assistant text turn authored by author.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	c := NewTextContent("assistant", message)
	e.Content = &c
	return e
}

// NewPerformEvent records the outcome of one agent perform. A non-nil err
// populates ErrorMessage and, when it carries a code (interface{ ErrorCode() string }),
// ErrorCode.
func NewPerformEvent(invocationID, agent string, args map[string]any, output string, err error, dur time.Duration) Event {
	e := NewEvent(invocationID, agent)
	e.Args = args
	e.Output = output
	e.Duration = dur
	if err != nil {
		msg := err.Error()
		e.ErrorMessage = &msg
		var coded interface{ ErrorCode() string }
		if errors.As(err, &coded) {
			code := coded.ErrorCode()
			e.ErrorCode = &code
		}
	}
	return e
}

// IsPerform reports whether the event records an agent perform.
func (e Event) IsPerform() bool { return e.Content == nil && e.Author != "user" }

// Failed reports whether the event carries an error.
func (e Event) Failed() bool { return e.ErrorMessage != nil }

// LogLine renders the event the way hosts report agent activity.
func (e Event) LogLine() string {
	if e.Failed() {
		return fmt.Sprintf("Performed %s and got error: %s", e.Author, *e.ErrorMessage)
	}
	return fmt.Sprintf("Performed %s and got result: %s", e.Author, e.Output)
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
