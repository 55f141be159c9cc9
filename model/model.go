package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentcatalog/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolsFromMetadata turns agent metadata into function definitions.
func ToolsFromMetadata(mds []core.Metadata) []ToolDefinition {
	tools := make([]ToolDefinition, len(mds))
	for i, md := range mds {
		tools[i] = ToolDefinition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        md.Name,
				Description: md.Description,
				Parameters:  md.Parameters,
			},
		}
	}
	return tools
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Contents     []core.Content   `json:"contents"`     // Conversation so far
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the interface the assistant host drives.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Collect when a model closes without a final
// response.
var ErrNoResponse = errors.New("model returned no final response")

// Collect drains a Generate call and returns the final (non-partial)
// response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var (
		final Response
		got   bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final, got = r, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !got {
		return Response{}, ErrNoResponse
	}
	return final, nil
}

// ScriptedModel replays canned responses in order. It records every request
// so tests can inspect prompts, history and tool definitions.
type ScriptedModel struct {
	mu        sync.Mutex
	info      Info
	responses []Response
	requests  []Request
}

var _ Model = (*ScriptedModel)(nil)

// NewScriptedModel constructs a ScriptedModel replaying responses.
func NewScriptedModel(responses ...Response) *ScriptedModel {
	return &ScriptedModel{
		info:      Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		responses: responses,
	}
}

// TextResponse builds a final assistant text response.
func TextResponse(text string) Response {
	return Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
		Usage:        &TokenUsage{CompletionTokens: len(text), TotalTokens: len(text)},
	}
}

// CallResponse builds a final assistant response requesting function calls.
func CallResponse(calls ...core.FunctionCall) Response {
	parts := make([]core.Part, len(calls))
	for i, c := range calls {
		parts[i] = core.FunctionCallPart{FunctionCall: c}
	}
	return Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	}
}

// Push appends more responses to the script.
func (m *ScriptedModel) Push(responses ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// Requests returns the requests seen so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model. When streaming, text is first emitted as one
// partial chunk per word.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		next Response
		ok   bool
	)
	if len(m.responses) > 0 {
		next, m.responses, ok = m.responses[0], m.responses[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if !ok {
			errCh <- fmt.Errorf("scripted model: no response left for request %d", len(m.Requests()))
			return
		}
		if req.Stream {
			for _, w := range splitWords(next.Content.Text()) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent("assistant", w)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- next:
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

func splitWords(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == ' ' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
