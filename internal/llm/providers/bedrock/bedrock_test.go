package bedrock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm/contract"
)

func TestToWireRequest_Shape(t *testing.T) {
	temp := float32(0.5)
	req := contract.ChatRequest{
		Model: "anthropic.claude-3-haiku-20240307-v1:0",
		Messages: []contract.Message{
			contract.TextMessage(contract.RoleUser, "list files"),
			{
				Role: contract.RoleModel,
				Parts: []contract.Part{
					{Text: "on it"},
					{FunctionCall: &contract.FunctionCall{ID: "t1", Name: "list_dir", Args: map[string]any{"path": "."}}},
				},
			},
			contract.ToolResultsMessage([]contract.ToolCallResult{
				{ID: "t1", Name: "list_dir", Success: true, Response: map[string]any{"entries": []any{}}},
			}),
		},
		Params: contract.GenerationParams{Temperature: &temp, MaxTokens: 1000},
		Tools:  []contract.ToolDef{{Name: "list_dir", Description: "list a directory"}},
	}

	wire := toWireRequest(req)
	assert.Equal(t, anthropicVersion, wire.AnthropicVersion)
	assert.Equal(t, 1000, wire.MaxTokens)
	require.Len(t, wire.Messages, 3)

	assert.Equal(t, "user", wire.Messages[0].Role)
	assert.Equal(t, "text", wire.Messages[0].Content[0].Type)

	assistant := wire.Messages[1]
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.Content, 2)
	assert.Equal(t, "tool_use", assistant.Content[1].Type)
	assert.Equal(t, "t1", assistant.Content[1].ID)

	result := wire.Messages[2]
	assert.Equal(t, "user", result.Role)
	assert.Equal(t, "tool_result", result.Content[0].Type)
	assert.Equal(t, "t1", result.Content[0].ToolUseID)

	require.Len(t, wire.Tools, 1)
	assert.NotNil(t, wire.Tools[0].InputSchema)
}

func TestToWireRequest_DefaultsMaxTokens(t *testing.T) {
	wire := toWireRequest(contract.ChatRequest{
		Messages: []contract.Message{contract.TextMessage(contract.RoleUser, "hi")},
	})
	assert.Equal(t, defaultMaxTokens, wire.MaxTokens)
}

func TestParseWireResponse_TextAndToolUse(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": "checking the directory"},
			{"type": "tool_use", "id": "tu_1", "name": "list_dir", "input": map[string]any{"path": "/tmp"}},
		},
		"stop_reason": "tool_use",
		"usage":       map[string]int{"input_tokens": 30, "output_tokens": 12},
	})
	require.NoError(t, err)

	resp, err := parseWireResponse(body)
	require.NoError(t, err)

	assert.Equal(t, "checking the directory", resp.Message.Text())
	calls := resp.Message.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tu_1", calls[0].ID)
	assert.Equal(t, map[string]any{"path": "/tmp"}, calls[0].Args)
	assert.Equal(t, contract.FinishToolCalls, resp.FinishReason)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
}

func TestParseWireResponse_ErrorBody(t *testing.T) {
	_, err := parseWireResponse([]byte(`{"error":"model not available"}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrAPI))
}

func TestParseWireResponse_SynthesizesMissingToolUseID(t *testing.T) {
	body := []byte(`{"content":[{"type":"tool_use","name":"time","input":{}}],"stop_reason":"tool_use"}`)
	resp, err := parseWireResponse(body)
	require.NoError(t, err)

	calls := resp.Message.FunctionCalls()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
}

func TestMapStopReason(t *testing.T) {
	assert.Equal(t, contract.FinishStop, mapStopReason("end_turn"))
	assert.Equal(t, contract.FinishLength, mapStopReason("max_tokens"))
	assert.Equal(t, contract.FinishToolCalls, mapStopReason("tool_use"))
	assert.Equal(t, contract.FinishStop, mapStopReason(""))
}
