// Package anthropic adapts the Anthropic Messages API to the canonical
// contract.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm/contract"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultMaxTokens applies when the request carries no output cap; the
// Messages API rejects requests without one.
const defaultMaxTokens = 1024

type Provider struct {
	client anthropic.Client
}

func New(settings contract.ProviderSettings) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}
	if settings.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(settings.Timeout))
	}
	if settings.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(settings.MaxRetries))
	}
	return &Provider{client: anthropic.NewClient(opts...)}
}

func (p *Provider) ID() string { return "anthropic" }

func (p *Provider) Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error) {
	msg, err := p.client.Messages.New(ctx, toWireParams(req))
	if err != nil {
		return nil, mapError(err, req.Model)
	}
	return fromWireMessage(msg), nil
}

func (p *Provider) StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error) {
	stream := p.client.Messages.NewStreaming(ctx, toWireParams(req))

	acc := anthropic.Message{}

	next := func() (contract.StreamChunk, error) {
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				return contract.StreamChunk{}, apperrors.Wrap(err, "accumulate anthropic event")
			}
			if delta, ok := textDelta(event); ok {
				return contract.StreamChunk{Delta: delta}, nil
			}
		}
		if err := stream.Err(); err != nil {
			return contract.StreamChunk{}, mapError(err, req.Model)
		}
		usage := usageFromMessage(&acc)
		return contract.StreamChunk{Usage: &usage, Done: true}, nil
	}

	final := func() (*contract.ChatResponse, error) {
		return fromWireMessage(&acc), nil
	}

	return contract.NewStream(next, final, stream.Close), nil
}

func (p *Provider) CountTokens(ctx context.Context, req contract.ChatRequest) (int, error) {
	return 0, apperrors.Unsupported("anthropic has no native token counting wired")
}

func textDelta(event anthropic.MessageStreamEventUnion) (string, bool) {
	deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
	if !ok {
		return "", false
	}
	textBlock, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta)
	if !ok || textBlock.Text == "" {
		return "", false
	}
	return textBlock.Text, true
}

func toWireParams(req contract.ChatRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.Params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:         anthropic.Model(req.Model),
		MaxTokens:     maxTokens,
		Messages:      toWireMessages(req.Messages),
		StopSequences: req.Params.StopSequences,
	}
	if req.Params.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Params.Temperature))
	}
	if req.Params.TopP != nil {
		params.TopP = anthropic.Float(float64(*req.Params.TopP))
	}
	if req.Params.TopK > 0 {
		params.TopK = anthropic.Int(int64(req.Params.TopK))
	}

	for _, t := range req.Tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: map[string]any{}},
		}
		if props, ok := t.Parameters["properties"].(map[string]any); ok {
			tool.InputSchema = anthropic.ToolInputSchemaParam{Properties: props}
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}

	return params
}

func toWireMessages(messages []contract.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case contract.RoleModel:
			var blocks []anthropic.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, call := range m.FunctionCalls() {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Args, call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case contract.RoleTool:
			// Tool results travel back as user-role blocks keyed by the
			// originating tool_use id.
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range m.Parts {
				if part.FunctionResponse == nil {
					continue
				}
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				_, isError := part.FunctionResponse.Response["error"]
				blocks = append(blocks, anthropic.NewToolResultBlock(part.FunctionResponse.ID, string(payload), isError))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		}
	}
	return out
}

func fromWireMessage(msg *anthropic.Message) *contract.ChatResponse {
	out := contract.Message{Role: contract.RoleModel}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if b.Text != "" {
				out.Parts = append(out.Parts, contract.Part{Text: b.Text})
			}
		case anthropic.ToolUseBlock:
			raw, _ := json.Marshal(b.Input)
			var args map[string]any
			_ = json.Unmarshal(raw, &args)
			out.Parts = append(out.Parts, contract.Part{FunctionCall: &contract.FunctionCall{
				ID:   b.ID,
				Name: b.Name,
				Args: args,
			}})
		}
	}

	return &contract.ChatResponse{
		Message:      out,
		FinishReason: mapStopReason(string(msg.StopReason)),
		Usage:        usageFromMessage(msg),
		Metadata:     map[string]string{"id": msg.ID},
	}
}

func usageFromMessage(msg *anthropic.Message) contract.Usage {
	return contract.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
}

func mapStopReason(reason string) contract.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "":
		return contract.FinishStop
	case "max_tokens":
		return contract.FinishLength
	case "tool_use":
		return contract.FinishToolCalls
	default:
		return contract.FinishStop
	}
}

func mapError(err error, model string) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apperrors.MapStatus(apiErr.StatusCode, apiErr.Error(), model)
	}
	return apperrors.MapError(err, model)
}
