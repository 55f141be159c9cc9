package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/agentcatalog/logging"
)

// InvocationContext carries the per-call scope handed to Agent.Perform. It
// aggregates:
//   - The ambient cancellation Context
//   - Identifiers (InvocationID, SessionID, UserGUID, Agent)
//   - The decoded argument map
//   - Backing services (memory, storage) and a logger
//
// Args helpers accept the shapes produced by JSON decoding (float64 numbers,
// []any lists) as well as native Go values so agents can be called from code
// and from model tool calls alike.
type InvocationContext struct {
	*loggerAdapter

	Context      context.Context
	InvocationID string
	SessionID    string
	UserGUID     string
	Agent        string
	Args         map[string]any
	Memory       MemoryStore
	Storage      FileStore
}

// NewInvocationContext constructs an InvocationContext. A nil args map is
// replaced with an empty one and a nil logger with a NoOpLogger.
func NewInvocationContext(
	ctx context.Context,
	invocationID, sessionID, userGUID, agent string,
	args map[string]any,
	memory MemoryStore,
	storage FileStore,
	logger logging.Logger,
) *InvocationContext {
	if args == nil {
		args = map[string]any{}
	}
	return &InvocationContext{
		loggerAdapter: newLoggerAdapter(logger),
		Context:       ctx,
		InvocationID:  invocationID,
		SessionID:     sessionID,
		UserGUID:      userGUID,
		Agent:         agent,
		Args:          args,
		Memory:        memory,
		Storage:       storage,
	}
}

// Done mirrors context.Context's Done.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *InvocationContext) Err() error { return ic.Context.Err() }

// HasArg reports whether key was supplied (even with a nil value).
func (ic *InvocationContext) HasArg(key string) bool {
	_, ok := ic.Args[key]
	return ok
}

// StringArg returns the trimmed string value of key or def when absent/empty.
func (ic *InvocationContext) StringArg(key, def string) string {
	v, ok := ic.Args[key]
	if !ok || v == nil {
		return def
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// IntArg returns the integer value of key or def when absent or not numeric.
// Strings holding integers are accepted.
func (ic *InvocationContext) IntArg(key string, def int) int {
	switch t := ic.Args[key].(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return def
		}
		return int(t)
	case float32:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// BoolArg returns the boolean value of key or def. Strings "true"/"false"
// (any case) are accepted.
func (ic *InvocationContext) BoolArg(key string, def bool) bool {
	switch t := ic.Args[key].(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

// StringSliceArg returns the non-empty string elements of key.
func (ic *InvocationContext) StringSliceArg(key string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := ic.Args[key].(type) {
	case []string:
		for _, s := range t {
			add(s)
		}
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// WithArgs returns a shallow copy bound to a different argument map.
func (ic *InvocationContext) WithArgs(args map[string]any) *InvocationContext {
	clone := *ic
	if args == nil {
		args = map[string]any{}
	}
	clone.Args = args
	return &clone
}
