// Package openai drives the assistant host loop with the OpenAI Chat
// Completions API. Catalog agents are offered as function tools and their
// results are replayed as tool messages.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoices is returned when a completion carries no choice.
var ErrNoChoices = errors.New("openai: no choices returned")

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// APIKey and BaseURL override OPENAI_API_KEY and the default endpoint.
	// BaseURL also selects OpenAI compatible gateways.
	APIKey  string
	BaseURL string
}

// Model implements model.Model for OpenAI chat models.
type Model struct {
	client *openai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a model with its own client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions(optFns...)
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a model around an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: defaultOptions(optFns...)}
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Generate implements model.Model. A streamed request emits one partial
// response per text delta followed by a final response carrying the
// assembled text, the tool calls in index order and the token usage.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		params := m.params(req)
		if req.Stream {
			m.stream(ctx, params, out, errCh)
			return
		}
		resp, err := m.client.Chat.Completions.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("openai: %w", err)
			return
		}
		final, err := fromCompletion(resp)
		if err != nil {
			errCh <- err
			return
		}
		out <- final
	}()
	return out, errCh
}

func (m *Model) params(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
		Tools:               tools(req.Tools),
	}
	if req.Stream {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	}
	return params
}

// messages maps the conversation onto chat messages in order. The host
// appends each tool turn right after the assistant turn that requested it,
// so tool messages follow their calls without reordering.
func messages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}
	for _, c := range req.Contents {
		switch c.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(c.Text()))
		case "assistant":
			msgs = append(msgs, assistantMessage(c))
		case "tool":
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
					msgs = append(msgs, openai.ToolMessage(responseText(fr.FunctionResponse), fr.FunctionResponse.ID))
				}
			}
		default:
			if text := c.Text(); text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}
	return msgs
}

func assistantMessage(c core.Content) openai.ChatCompletionMessageParamUnion {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID: fc.FunctionCall.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      fc.FunctionCall.Name,
					Arguments: fc.FunctionCall.Arguments,
				},
			})
		}
	}
	if len(calls) == 0 {
		return openai.AssistantMessage(c.Text())
	}
	msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if text := c.Text(); text != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

// responseText is what the model reads back for one agent result.
func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}
	return fr.Response
}

func tools(defs []model.ToolDefinition) []openai.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolParam, len(defs))
	for i, d := range defs {
		out[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Function.Name,
				Description: openai.String(d.Function.Description),
				Parameters:  d.Function.Parameters,
			},
		}
	}
	return out
}

func fromCompletion(resp *openai.ChatCompletion) (model.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return model.Response{}, ErrNoChoices
	}
	choice := resp.Choices[0]
	var parts []core.Part
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}
	return model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
		Usage:        usage(resp.Usage),
	}, nil
}

func usage(u openai.CompletionUsage) *model.TokenUsage {
	if u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response, errCh chan<- error) {
	s := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer s.Close()

	acc := newAccumulator()
	for s.Next() {
		if delta := acc.add(s.Current()); delta != "" {
			out <- model.Response{
				ID:      acc.id,
				Partial: true,
				Content: core.NewTextContent("assistant", delta),
			}
		}
	}
	if err := s.Err(); err != nil {
		errCh <- fmt.Errorf("openai: stream: %w", err)
		return
	}
	out <- acc.response()
}

// accumulator assembles streamed chunks. Tool call fragments are keyed by
// their stream index; usage arrives on a trailing chunk without choices.
type accumulator struct {
	id     string
	text   strings.Builder
	calls  map[int64]*core.FunctionCall
	finish string
	usage  *model.TokenUsage
}

func newAccumulator() *accumulator {
	return &accumulator{calls: map[int64]*core.FunctionCall{}}
}

// add folds one chunk in and returns its text delta.
func (a *accumulator) add(ck openai.ChatCompletionChunk) string {
	if ck.ID != "" {
		a.id = ck.ID
	}
	if u := usage(ck.Usage); u != nil {
		a.usage = u
	}
	var delta strings.Builder
	for _, ch := range ck.Choices {
		delta.WriteString(ch.Delta.Content)
		for _, tc := range ch.Delta.ToolCalls {
			call, ok := a.calls[tc.Index]
			if !ok {
				call = &core.FunctionCall{}
				a.calls[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			call.Arguments += tc.Function.Arguments
		}
		if ch.FinishReason != "" {
			a.finish = ch.FinishReason
		}
	}
	a.text.WriteString(delta.String())
	return delta.String()
}

func (a *accumulator) response() model.Response {
	var parts []core.Part
	if a.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: a.text.String()})
	}
	indices := make([]int64, 0, len(a.calls))
	for idx := range a.calls {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		parts = append(parts, core.FunctionCallPart{FunctionCall: *a.calls[idx]})
	}
	return model.Response{
		ID:           a.id,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: a.finish,
		Usage:        a.usage,
	}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
