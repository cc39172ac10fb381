// Package gemini adapts the Gemini API to the canonical contract. It is
// the only adapter with native token counting.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm/contract"

	"google.golang.org/genai"
)

type Provider struct {
	client *genai.Client
}

func New(ctx context.Context, settings contract.ProviderSettings) (*Provider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if settings.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = settings.BaseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "create gemini client")
	}
	return &Provider{client: client}, nil
}

func (p *Provider) ID() string { return "gemini" }

func (p *Provider) Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error) {
	contents := toWireContents(req.Messages)
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, toWireConfig(req))
	if err != nil {
		return nil, mapError(err, req.Model)
	}
	return fromWireResponse(resp)
}

func (p *Provider) StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error) {
	contents := toWireContents(req.Messages)
	seq := p.client.Models.GenerateContentStream(ctx, req.Model, contents, toWireConfig(req))
	next, stop := iter.Pull2(seq)

	acc := &streamAccumulator{}

	pull := func() (contract.StreamChunk, error) {
		resp, err, ok := next()
		if !ok {
			return contract.StreamChunk{Usage: acc.usage, Done: true}, nil
		}
		if err != nil {
			return contract.StreamChunk{}, mapError(err, req.Model)
		}
		return acc.apply(resp), nil
	}

	final := func() (*contract.ChatResponse, error) {
		return acc.response(), nil
	}

	closer := func() error {
		stop()
		return nil
	}

	return contract.NewStream(pull, final, closer), nil
}

func (p *Provider) CountTokens(ctx context.Context, req contract.ChatRequest) (int, error) {
	contents := toWireContents(req.Messages)
	resp, err := p.client.Models.CountTokens(ctx, req.Model, contents, nil)
	if err != nil {
		return 0, mapError(err, req.Model)
	}
	return int(resp.TotalTokens), nil
}

// streamAccumulator collects parts across stream responses so the final
// message carries both the concatenated text and every function call.
type streamAccumulator struct {
	parts  []contract.Part
	text   string
	finish contract.FinishReason
	usage  *contract.Usage
}

func (a *streamAccumulator) apply(resp *genai.GenerateContentResponse) contract.StreamChunk {
	chunk := contract.StreamChunk{}

	if resp.UsageMetadata != nil {
		a.usage = &contract.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
		chunk.Usage = a.usage
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return chunk
	}

	cand := resp.Candidates[0]
	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			a.parts = append(a.parts, contract.Part{FunctionCall: &contract.FunctionCall{
				ID:   functionCallID(part.FunctionCall, len(a.parts)),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}})
		case part.Text != "":
			chunk.Delta += part.Text
			a.text += part.Text
		}
	}

	if cand.FinishReason != "" {
		a.finish = mapFinishReason(cand.FinishReason, a.hasFunctionCalls())
		chunk.Done = true
		chunk.Usage = a.usage
	}

	return chunk
}

func (a *streamAccumulator) hasFunctionCalls() bool {
	for _, p := range a.parts {
		if p.FunctionCall != nil {
			return true
		}
	}
	return false
}

func (a *streamAccumulator) response() *contract.ChatResponse {
	msg := contract.Message{Role: contract.RoleModel}
	if a.text != "" {
		msg.Parts = append(msg.Parts, contract.Part{Text: a.text})
	}
	msg.Parts = append(msg.Parts, a.parts...)

	finish := a.finish
	if finish == "" {
		finish = contract.FinishStop
	}
	usage := contract.Usage{}
	if a.usage != nil {
		usage = *a.usage
	}
	return &contract.ChatResponse{Message: msg, FinishReason: finish, Usage: usage}
}

func toWireConfig(req contract.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:   req.Params.Temperature,
		TopP:          req.Params.TopP,
		StopSequences: req.Params.StopSequences,
	}
	if req.Params.TopK > 0 {
		topK := float32(req.Params.TopK)
		cfg.TopK = &topK
	}
	if req.Params.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.Params.MaxTokens
	}

	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toWireSchema(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{tool}
	}

	return cfg
}

// toWireSchema converts a JSON-schema map through the wire representation.
// Keys the Gemini schema model does not know are silently dropped.
func toWireSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	raw, _ := json.Marshal(params)
	var schema genai.Schema
	_ = json.Unmarshal(raw, &schema)
	return &schema
}

func toWireContents(messages []contract.Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range messages {
		content := &genai.Content{Role: toWireRole(m.Role)}
		for _, part := range m.Parts {
			switch {
			case part.FunctionCall != nil:
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}})
			case part.FunctionResponse != nil:
				content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: part.FunctionResponse.Response,
				}})
			default:
				content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
			}
		}
		out = append(out, content)
	}
	return out
}

// toWireRole maps canonical roles onto the two roles Gemini accepts.
// Tool results travel as user-role function response parts.
func toWireRole(role contract.Role) string {
	if role == contract.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func fromWireResponse(resp *genai.GenerateContentResponse) (*contract.ChatResponse, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, apperrors.API("gemini returned no candidates")
	}

	cand := resp.Candidates[0]
	msg := contract.Message{Role: contract.RoleModel}
	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			msg.Parts = append(msg.Parts, contract.Part{FunctionCall: &contract.FunctionCall{
				ID:   functionCallID(part.FunctionCall, len(msg.Parts)),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}})
		case part.Text != "":
			msg.Parts = append(msg.Parts, contract.Part{Text: part.Text})
		}
	}

	out := &contract.ChatResponse{
		Message:      msg,
		FinishReason: mapFinishReason(cand.FinishReason, len(msg.FunctionCalls()) > 0),
	}
	if resp.UsageMetadata != nil {
		out.Usage = contract.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// functionCallID synthesizes a stable identifier when the API omits one;
// tool results must correlate back to their originating call.
func functionCallID(fc *genai.FunctionCall, ordinal int) string {
	if fc.ID != "" {
		return fc.ID
	}
	return fmt.Sprintf("%s-%d", fc.Name, ordinal+1)
}

func mapFinishReason(reason genai.FinishReason, hasFunctionCalls bool) contract.FinishReason {
	if hasFunctionCalls {
		return contract.FinishToolCalls
	}
	switch reason {
	case genai.FinishReasonStop, "":
		return contract.FinishStop
	case genai.FinishReasonMaxTokens:
		return contract.FinishLength
	default:
		return contract.FinishError
	}
}

func mapError(err error, model string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.MapStatus(apiErr.Code, apiErr.Message, model)
	}
	return apperrors.MapError(err, model)
}
