package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePredicates_EmptyMessage(t *testing.T) {
	var m Message
	assert.False(t, m.IsToolCall())
	assert.False(t, m.IsToolResponse())
	assert.Empty(t, m.Text())
	assert.Empty(t, m.FunctionCalls())
}

func TestIsToolCall_RequiresEveryPart(t *testing.T) {
	pure := Message{Role: RoleModel, Parts: []Part{
		{FunctionCall: &FunctionCall{ID: "1", Name: "time"}},
		{FunctionCall: &FunctionCall{ID: "2", Name: "glob"}},
	}}
	assert.True(t, pure.IsToolCall())

	mixed := Message{Role: RoleModel, Parts: []Part{
		{Text: "let me check"},
		{FunctionCall: &FunctionCall{ID: "1", Name: "time"}},
	}}
	assert.False(t, mixed.IsToolCall())
	assert.Len(t, mixed.FunctionCalls(), 1)
}

func TestText_ConcatenatesTextPartsOnly(t *testing.T) {
	m := Message{Role: RoleModel, Parts: []Part{
		{Text: "Hello, "},
		{FunctionCall: &FunctionCall{ID: "1", Name: "time"}},
		{Text: "world"},
	}}
	assert.Equal(t, "Hello, world", m.Text())
}

func TestToolResultsMessage_MapsFailuresToErrorPayload(t *testing.T) {
	results := []ToolCallResult{
		{ID: "1", Name: "time", Success: true, Response: map[string]any{"time": "12:00"}},
		{ID: "2", Name: "glob", Success: false, Error: "invalid pattern"},
	}

	msg := ToolResultsMessage(results)
	require.Equal(t, RoleTool, msg.Role)
	require.Len(t, msg.Parts, 2)
	assert.True(t, msg.IsToolResponse())

	ok := msg.Parts[0].FunctionResponse
	require.NotNil(t, ok)
	assert.Equal(t, "1", ok.ID)
	assert.Equal(t, map[string]any{"time": "12:00"}, ok.Response)

	failed := msg.Parts[1].FunctionResponse
	require.NotNil(t, failed)
	assert.Equal(t, map[string]any{"error": "invalid pattern"}, failed.Response)
}

func TestToolResultsMessage_PreservesRequestOrder(t *testing.T) {
	results := []ToolCallResult{
		{ID: "b", Name: "glob", Success: true, Response: map[string]any{}},
		{ID: "a", Name: "time", Success: true, Response: map[string]any{}},
	}

	msg := ToolResultsMessage(results)
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, "b", msg.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "a", msg.Parts[1].FunctionResponse.ID)
}

func TestUsageAdd(t *testing.T) {
	total := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}.
		Add(Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
	assert.Equal(t, Usage{PromptTokens: 13, CompletionTokens: 7, TotalTokens: 20}, total)
}
