// Package openai adapts OpenAI-compatible chat completion backends to the
// canonical contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm/contract"

	openai "github.com/sashabaranov/go-openai"
)

type Provider struct {
	client *openai.Client
}

func New(settings contract.ProviderSettings) *Provider {
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	if settings.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: settings.Timeout}
	}
	return &Provider{client: openai.NewClientWithConfig(cfg)}
}

func (p *Provider) ID() string { return "openai" }

func (p *Provider) Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, toWireRequest(req, false))
	if err != nil {
		return nil, mapError(err, req.Model)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.API("openai returned no choices")
	}

	choice := resp.Choices[0]
	return &contract.ChatResponse{
		Message:      fromWireMessage(choice.Message),
		FinishReason: mapFinishReason(string(choice.FinishReason), len(choice.Message.ToolCalls) > 0),
		Usage: contract.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Metadata: map[string]string{"id": resp.ID},
	}, nil
}

func (p *Provider) CountTokens(ctx context.Context, req contract.ChatRequest) (int, error) {
	return 0, apperrors.Unsupported("openai has no native token counting")
}

// streamState accumulates the wire deltas so Final can materialize the
// complete response once the finish reason arrives.
type streamState struct {
	text         string
	finish       string
	usage        *contract.Usage
	toolCalls    []openai.ToolCall
	sawToolCalls bool
}

func (p *Provider) StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error) {
	wireReq := toWireRequest(req, true)
	stream, err := p.client.CreateChatCompletionStream(ctx, wireReq)
	if err != nil {
		return nil, mapError(err, req.Model)
	}

	state := &streamState{}

	next := func() (contract.StreamChunk, error) {
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				// Stream exhaustion is this provider's terminal condition
				// when no explicit finish reason was delivered.
				return contract.StreamChunk{Usage: state.usage, Done: true}, nil
			}
			if err != nil {
				return contract.StreamChunk{}, mapError(err, req.Model)
			}

			if resp.Usage != nil {
				state.usage = &contract.Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}

			choice := resp.Choices[0]
			for _, tc := range choice.Delta.ToolCalls {
				state.applyToolCallDelta(tc)
			}
			if choice.FinishReason != "" {
				state.finish = string(choice.FinishReason)
			}

			delta := choice.Delta.Content
			state.text += delta
			if state.finish != "" {
				// With IncludeUsage the usage arrives in a trailing chunk
				// with empty choices, after the finish reason.
				state.drainUsage(stream)
				return contract.StreamChunk{Delta: delta, Usage: state.usage, Done: true}, nil
			}
			if delta == "" {
				continue
			}
			return contract.StreamChunk{Delta: delta}, nil
		}
	}

	final := func() (*contract.ChatResponse, error) {
		msg := openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   state.text,
			ToolCalls: state.toolCalls,
		}
		usage := contract.Usage{}
		if state.usage != nil {
			usage = *state.usage
		}
		return &contract.ChatResponse{
			Message:      fromWireMessage(msg),
			FinishReason: mapFinishReason(state.finish, state.sawToolCalls),
			Usage:        usage,
		}, nil
	}

	return contract.NewStream(next, final, stream.Close), nil
}

// drainUsage reads the remaining chunks after the finish reason, keeping
// the last usage payload seen. Usage is best effort; read errors here do
// not fail a stream that already finished.
func (s *streamState) drainUsage(stream *openai.ChatCompletionStream) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			return
		}
		if resp.Usage != nil {
			s.usage = &contract.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
	}
}

func (s *streamState) applyToolCallDelta(tc openai.ToolCall) {
	s.sawToolCalls = true
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	for len(s.toolCalls) <= idx {
		s.toolCalls = append(s.toolCalls, openai.ToolCall{Type: openai.ToolTypeFunction})
	}
	buf := &s.toolCalls[idx]
	if tc.ID != "" {
		buf.ID = tc.ID
	}
	if tc.Function.Name != "" {
		buf.Function.Name = tc.Function.Name
	}
	buf.Function.Arguments += tc.Function.Arguments
}

func toWireRequest(req contract.ChatRequest, streaming bool) openai.ChatCompletionRequest {
	wire := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toWireMessages(req.Messages),
		Stop:     req.Params.StopSequences,
	}
	if req.Params.Temperature != nil {
		wire.Temperature = *req.Params.Temperature
	}
	if req.Params.TopP != nil {
		wire.TopP = *req.Params.TopP
	}
	if req.Params.MaxTokens > 0 {
		wire.MaxTokens = int(req.Params.MaxTokens)
	}
	if streaming {
		wire.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}

	for _, t := range req.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		wire.Tools = append(wire.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	return wire
}

func toWireMessages(messages []contract.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, m := range messages {
		switch m.Role {
		case contract.RoleTool:
			// One wire message per function response part; OpenAI links
			// results by tool_call_id, not by grouping.
			for _, part := range m.Parts {
				if part.FunctionResponse == nil {
					continue
				}
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    string(payload),
					ToolCallID: part.FunctionResponse.ID,
				})
			}
		case contract.RoleModel:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Text(),
			}
			for _, call := range m.FunctionCalls() {
				args, _ := json.Marshal(call.Args)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, msg)
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Text(),
			})
		}
	}
	return out
}

func fromWireMessage(msg openai.ChatCompletionMessage) contract.Message {
	out := contract.Message{Role: contract.RoleModel}
	if msg.Content != "" {
		out.Parts = append(out.Parts, contract.Part{Text: msg.Content})
	}
	for i, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}
		out.Parts = append(out.Parts, contract.Part{FunctionCall: &contract.FunctionCall{
			ID:   id,
			Name: tc.Function.Name,
			Args: decodeArgs(tc.Function.Arguments),
		}})
	}
	return out
}

// decodeArgs parses a JSON arguments string leniently; malformed payloads
// are preserved raw rather than dropped.
func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"_raw": raw}
	}
	return args
}

func mapFinishReason(reason string, sawToolCalls bool) contract.FinishReason {
	switch reason {
	case "stop":
		if sawToolCalls {
			return contract.FinishToolCalls
		}
		return contract.FinishStop
	case "length":
		return contract.FinishLength
	case "tool_calls", "function_call":
		return contract.FinishToolCalls
	case "":
		if sawToolCalls {
			return contract.FinishToolCalls
		}
		return contract.FinishStop
	default:
		return contract.FinishStop
	}
}

func mapError(err error, model string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.MapStatus(apiErr.HTTPStatusCode, apiErr.Message, model)
	}
	return apperrors.MapError(err, model)
}
