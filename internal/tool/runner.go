package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/researchcli/research/internal/llm/contract"
	"github.com/researchcli/research/internal/logger"
)

// Runner executes model-issued tool calls against the registry. It never
// returns an error to the caller: every failure mode becomes a failed
// result the model can read and react to.
type Runner struct {
	registry *Registry
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

func (r *Runner) Declarations() []contract.ToolDef {
	if r == nil || r.registry == nil {
		return nil
	}
	return r.registry.Declarations()
}

// Execute handles the full lifecycle: lookup, input validation, run.
func (r *Runner) Execute(ctx context.Context, req contract.ToolCallRequest) contract.ToolCallResult {
	name := NormalizeToolName(req.Name)

	t, ok := r.registry.Get(name)
	if !ok {
		slog.Warn("Tool not found", "tool", name)
		return failedResult(req, fmt.Sprintf("tool not found: %s", name))
	}

	input, err := json.Marshal(req.Args)
	if err != nil {
		return failedResult(req, fmt.Sprintf("encode arguments: %v", err))
	}

	if err := ValidateInput(t.Parameters(), input); err != nil {
		slog.Warn("Tool input validation failed", "tool", name, "error", err)
		return failedResult(req, fmt.Sprintf("invalid input: %v", err))
	}

	start := time.Now()
	traceID := logger.GetTraceID(ctx)
	slog.Info("Executing tool", "tool", name, "trace_id", traceID)

	raw, err := runTool(ctx, t, input)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Tool execution failed", "tool", name, "error", err, "duration", duration, "trace_id", traceID)
		return failedResult(req, err.Error())
	}

	slog.Info("Tool execution success", "tool", name, "duration", duration, "trace_id", traceID)

	return contract.ToolCallResult{
		ID:       req.ID,
		Name:     name,
		Success:  true,
		Response: decodeResponse(raw),
	}
}

// runTool isolates a panicking tool so one bad call cannot take down the
// whole turn.
func runTool(ctx context.Context, t Tool, input json.RawMessage) (raw json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return t.Execute(ctx, input)
}

func decodeResponse(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	return map[string]any{"output": string(raw)}
}

func failedResult(req contract.ToolCallRequest, msg string) contract.ToolCallResult {
	return contract.ToolCallResult{
		ID:      req.ID,
		Name:    NormalizeToolName(req.Name),
		Success: false,
		Error:   msg,
	}
}
