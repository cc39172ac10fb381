// Package bedrock adapts Anthropic models hosted on AWS Bedrock to the
// canonical contract. It speaks the InvokeModel JSON body directly.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm/contract"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const anthropicVersion = "bedrock-2023-05-31"

// defaultMaxTokens applies when the request carries no output cap; the
// Anthropic body schema requires one.
const defaultMaxTokens = 4096

type Provider struct {
	client *bedrockruntime.Client
}

// New loads the default AWS credential chain for the given region.
// Credentials come from the environment or the shared config files.
func New(ctx context.Context, region string) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.WrapWithCategory(err, "load AWS config", apperrors.ErrConfiguration)
	}
	return &Provider{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (p *Provider) ID() string { return "bedrock" }

func (p *Provider) Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error) {
	body, err := json.Marshal(toWireRequest(req))
	if err != nil {
		return nil, apperrors.Wrap(err, "marshal bedrock request")
	}

	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, apperrors.MapError(err, req.Model)
	}

	return parseWireResponse(resp.Body)
}

// StreamChat satisfies the streaming surface with a single-chunk stream.
// The full response is fetched non-streaming and replayed as one delta.
func (p *Provider) StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	emitted := false
	next := func() (contract.StreamChunk, error) {
		if emitted {
			return contract.StreamChunk{Usage: &resp.Usage, Done: true}, nil
		}
		emitted = true
		chunk := contract.StreamChunk{Delta: resp.Message.Text()}
		if chunk.Delta == "" {
			return contract.StreamChunk{Usage: &resp.Usage, Done: true}, nil
		}
		return chunk, nil
	}
	final := func() (*contract.ChatResponse, error) { return resp, nil }

	return contract.NewStream(next, final, nil), nil
}

func (p *Provider) CountTokens(ctx context.Context, req contract.ChatRequest) (int, error) {
	return 0, apperrors.Unsupported("bedrock has no native token counting")
}

type wireRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Messages         []wireMessage `json:"messages"`
	System           string        `json:"system,omitempty"`
	Temperature      *float32      `json:"temperature,omitempty"`
	TopP             *float32      `json:"top_p,omitempty"`
	TopK             int32         `json:"top_k,omitempty"`
	StopSequences    []string      `json:"stop_sequences,omitempty"`
	Tools            []wireTool    `json:"tools,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type wireResponse struct {
	Content    []wireContent `json:"content"`
	StopReason string        `json:"stop_reason"`
	Error      any           `json:"error,omitempty"`
	Usage      *wireUsage    `json:"usage,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func toWireRequest(req contract.ChatRequest) wireRequest {
	maxTokens := int(req.Params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	wire := wireRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      req.Params.Temperature,
		TopP:             req.Params.TopP,
		TopK:             req.Params.TopK,
		StopSequences:    req.Params.StopSequences,
	}

	for _, m := range req.Messages {
		switch m.Role {
		case contract.RoleModel:
			var content []wireContent
			if text := m.Text(); text != "" {
				content = append(content, wireContent{Type: "text", Text: text})
			}
			for _, call := range m.FunctionCalls() {
				content = append(content, wireContent{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: call.Args,
				})
			}
			if len(content) > 0 {
				wire.Messages = append(wire.Messages, wireMessage{Role: "assistant", Content: content})
			}
		case contract.RoleTool:
			var content []wireContent
			for _, part := range m.Parts {
				if part.FunctionResponse == nil {
					continue
				}
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				content = append(content, wireContent{
					Type:      "tool_result",
					ToolUseID: part.FunctionResponse.ID,
					Content:   string(payload),
				})
			}
			if len(content) > 0 {
				wire.Messages = append(wire.Messages, wireMessage{Role: "user", Content: content})
			}
		default:
			wire.Messages = append(wire.Messages, wireMessage{
				Role:    "user",
				Content: []wireContent{{Type: "text", Text: m.Text()}},
			})
		}
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		wire.Tools = append(wire.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	return wire
}

func parseWireResponse(body []byte) (*contract.ChatResponse, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, apperrors.Wrap(err, "unmarshal bedrock response")
	}
	if wire.Error != nil {
		return nil, apperrors.API(fmt.Sprintf("bedrock error: %v", wire.Error))
	}

	msg := contract.Message{Role: contract.RoleModel}
	for i, item := range wire.Content {
		switch item.Type {
		case "text":
			if item.Text != "" {
				msg.Parts = append(msg.Parts, contract.Part{Text: item.Text})
			}
		case "tool_use":
			id := item.ID
			if id == "" {
				id = fmt.Sprintf("call_%d_%s", i, item.Name)
			}
			msg.Parts = append(msg.Parts, contract.Part{FunctionCall: &contract.FunctionCall{
				ID:   id,
				Name: item.Name,
				Args: item.Input,
			}})
		}
	}

	resp := &contract.ChatResponse{
		Message:      msg,
		FinishReason: mapStopReason(wire.StopReason),
	}
	if wire.Usage != nil {
		resp.Usage = contract.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		}
	}
	return resp, nil
}

func mapStopReason(reason string) contract.FinishReason {
	switch reason {
	case "max_tokens":
		return contract.FinishLength
	case "tool_use":
		return contract.FinishToolCalls
	default:
		return contract.FinishStop
	}
}
