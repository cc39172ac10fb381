// Package contract defines the canonical, provider-agnostic conversation
// model. Adapters translate between this and their wire formats; nothing
// outside an adapter package sees provider SDK types.
package contract

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Part is exactly one of: text, a function call, or a function response.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// IsToolCall reports whether every part of the message is a function call.
// The orchestrator uses this to decide that a model turn is asking to act.
func (m Message) IsToolCall() bool {
	if len(m.Parts) == 0 {
		return false
	}
	for _, p := range m.Parts {
		if p.FunctionCall == nil {
			return false
		}
	}
	return true
}

// IsToolResponse reports whether every part is a function response.
func (m Message) IsToolResponse() bool {
	if len(m.Parts) == 0 {
		return false
	}
	for _, p := range m.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		out += p.Text
	}
	return out
}

// FunctionCalls returns the call parts in order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// ProviderSettings scopes connection material to exactly one provider
// identity. Built once from configuration, immutable afterwards.
type ProviderSettings struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type GenerationParams struct {
	Temperature   *float32 `json:"temperature,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	TopK          int32    `json:"top_k,omitempty"`
	MaxTokens     int32    `json:"max_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type ChatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Params   GenerationParams `json:"params"`
	Tools    []ToolDef        `json:"tools,omitempty"`
}

type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishError     FinishReason = "error"
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

type ChatResponse struct {
	Message      Message           `json:"message"`
	FinishReason FinishReason      `json:"finish_reason"`
	Usage        Usage             `json:"usage"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// StreamChunk is one increment of a streaming response. The concatenation
// of all deltas up to and including the Done chunk equals the text of the
// equivalent non-streaming ChatResponse.
type StreamChunk struct {
	Delta string `json:"delta,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
	Done  bool   `json:"done"`
}

// Stream is a finite pull-based chunk sequence. Recv returns io.EOF after
// the Done chunk has been delivered. A stream is not restartable; retrying
// requires a fresh StreamChat call.
type Stream interface {
	Recv() (StreamChunk, error)
	Close() error
	// Final returns the fully accumulated response. Valid only after the
	// Done chunk (or io.EOF) has been observed.
	Final() (*ChatResponse, error)
}

// ToolCallRequest is the model asking to invoke a named local capability.
// IDs are unique within one turn.
type ToolCallRequest struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolCallResult reports one tool invocation back to the model. Expected
// domain failures surface here with Success=false, never as Go errors.
type ToolCallResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Success  bool           `json:"success"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ToolResultsMessage folds a turn's tool results, in request order, into a
// single canonical tool message.
func ToolResultsMessage(results []ToolCallResult) Message {
	parts := make([]Part, 0, len(results))
	for _, res := range results {
		response := res.Response
		if !res.Success {
			response = map[string]any{"error": res.Error}
		}
		parts = append(parts, Part{FunctionResponse: &FunctionResponse{
			ID:       res.ID,
			Name:     res.Name,
			Response: response,
		}})
	}
	return Message{Role: RoleTool, Parts: parts}
}
