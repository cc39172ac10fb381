package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchcli/research/internal/llm/contract"
)

type stubTool struct {
	name    string
	execute func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "string"},
		},
	}
}
func (t *stubTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return t.execute(ctx, input)
}

func newTestRunner(tools ...Tool) *Runner {
	registry := NewRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	return NewRunner(registry)
}

func TestRunnerExecute_Success(t *testing.T) {
	runner := newTestRunner(&stubTool{name: "echo", execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]string{"echo": "hi"})
	}})

	res := runner.Execute(context.Background(), contract.ToolCallRequest{
		ID: "call_1", Name: "echo", Args: map[string]any{"value": "hi"},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "call_1", res.ID)
	assert.Equal(t, "echo", res.Name)
	assert.Equal(t, map[string]any{"echo": "hi"}, res.Response)
}

func TestRunnerExecute_NotFoundIsFailedResult(t *testing.T) {
	runner := newTestRunner()

	res := runner.Execute(context.Background(), contract.ToolCallRequest{ID: "call_1", Name: "missing"})

	assert.False(t, res.Success)
	assert.Equal(t, "call_1", res.ID)
	assert.Contains(t, res.Error, "tool not found")
}

func TestRunnerExecute_ValidationFailure(t *testing.T) {
	called := false
	runner := newTestRunner(&stubTool{name: "echo", execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		called = true
		return nil, nil
	}})

	res := runner.Execute(context.Background(), contract.ToolCallRequest{
		ID: "call_1", Name: "echo", Args: map[string]any{"value": 42},
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid input")
	assert.False(t, called, "tool must not run on invalid input")
}

func TestRunnerExecute_ToolErrorIsFailedResult(t *testing.T) {
	runner := newTestRunner(&stubTool{name: "echo", execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("disk on fire")
	}})

	res := runner.Execute(context.Background(), contract.ToolCallRequest{ID: "call_1", Name: "echo"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disk on fire")
}

func TestRunnerExecute_PanicRecovered(t *testing.T) {
	runner := newTestRunner(&stubTool{name: "echo", execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		panic("boom")
	}})

	res := runner.Execute(context.Background(), contract.ToolCallRequest{ID: "call_1", Name: "echo"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")
}

func TestRunnerExecute_NonObjectOutputWrapped(t *testing.T) {
	runner := newTestRunner(&stubTool{name: "echo", execute: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"plain string"`), nil
	}})

	res := runner.Execute(context.Background(), contract.ToolCallRequest{ID: "call_1", Name: "echo"})

	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"output": `"plain string"`}, res.Response)
}

func TestRegistryDeclarations_SortedByName(t *testing.T) {
	noop := func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) { return nil, nil }
	registry := NewRegistry()
	registry.Register(&stubTool{name: "zeta", execute: noop})
	registry.Register(&stubTool{name: "alpha", execute: noop})

	defs := registry.Declarations()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
}

func TestRegistryGet_NormalizesName(t *testing.T) {
	noop := func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) { return nil, nil }
	registry := NewRegistry()
	registry.Register(&stubTool{name: "echo", execute: noop})

	_, ok := registry.Get("  echo  ")
	assert.True(t, ok)
}
