// Package orchestrator drives the conversational turn loop: model call,
// tool dispatch, fallback, and history bookkeeping.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm"
	"github.com/researchcli/research/internal/llm/contract"
	"github.com/researchcli/research/internal/tool"
)

const DefaultMaxTurns = 10

// Options tunes one orchestrator instance.
type Options struct {
	// MaxTurns caps model calls per user input. Zero means DefaultMaxTurns.
	MaxTurns int
	// Stream selects streamed model calls. Non-streamed calls still emit
	// the full reply as a single text delta.
	Stream   bool
	Params   contract.GenerationParams
	Fallback FallbackPolicy
}

type Orchestrator struct {
	registry *llm.Registry
	runner   *tool.Runner
	opts     Options
}

func New(registry *llm.Registry, runner *tool.Runner, opts Options) *Orchestrator {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &Orchestrator{registry: registry, runner: runner, opts: opts}
}

// RunTurn processes one user input to completion: as many model calls and
// tool rounds as the conversation needs, bounded by MaxTurns. It returns
// the final model text. The session history is updated in place,
// including on error, so a failed turn stays inspectable.
func (o *Orchestrator) RunTurn(ctx context.Context, session *Session, input string, sink EventSink) (string, error) {
	if sink == nil {
		sink = NopSink{}
	}

	session.Append(contract.TextMessage(contract.RoleUser, input))

	fellBack := false
	for turn := 0; ; turn++ {
		if turn >= o.opts.MaxTurns {
			return "", apperrors.TurnLimit("conversation did not settle within the turn limit")
		}
		if err := ctx.Err(); err != nil {
			return "", apperrors.MapError(err, session.Model)
		}

		slog.Debug("Model call", "session", session.ID, "model", session.Model, "turn", turn)

		resp, err := o.modelCall(ctx, session, sink)
		if err != nil && !fellBack {
			if model, notice, ok := o.opts.Fallback.Decide(err, session.Model); ok {
				fellBack = true
				slog.Warn("Falling back", "session", session.ID, "from", session.Model, "to", model, "error", err)
				sink.Notice(notice)
				session.Model = model
				resp, err = o.modelCall(ctx, session, sink)
			}
		}
		if err != nil {
			return "", err
		}

		session.Append(resp.Message)
		slog.Debug("Model reply", "session", session.ID, "finish", resp.FinishReason,
			"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

		calls := resp.Message.FunctionCalls()
		if len(calls) == 0 {
			return resp.Message.Text(), nil
		}

		results := o.dispatchTools(ctx, calls, sink)
		session.Append(contract.ToolResultsMessage(results))
	}
}

func (o *Orchestrator) modelCall(ctx context.Context, session *Session, sink EventSink) (*contract.ChatResponse, error) {
	provider, err := o.registry.Resolve(session.Model)
	if err != nil {
		return nil, err
	}

	req := contract.ChatRequest{
		Model:    session.Model,
		Messages: session.History,
		Params:   o.opts.Params,
		Tools:    o.runner.Declarations(),
	}

	if !o.opts.Stream {
		resp, err := provider.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		if text := resp.Message.Text(); text != "" {
			sink.TextDelta(text)
		}
		return resp, nil
	}

	stream, err := provider.StreamChat(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.MapError(err, session.Model)
		}
		chunk, err := stream.Recv()
		if err != nil {
			return nil, err
		}
		if chunk.Delta != "" {
			sink.TextDelta(chunk.Delta)
		}
		if chunk.Done {
			return stream.Final()
		}
	}
}

// dispatchTools runs every requested call concurrently and returns the
// results in request order. Sink callbacks stay on the caller goroutine,
// so sinks need no locking.
func (o *Orchestrator) dispatchTools(ctx context.Context, calls []contract.FunctionCall, sink EventSink) []contract.ToolCallResult {
	results := make([]contract.ToolCallResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		req := contract.ToolCallRequest{ID: call.ID, Name: call.Name, Args: call.Args}
		sink.ToolCallStarted(req)
		wg.Add(1)
		go func(i int, req contract.ToolCallRequest) {
			defer wg.Done()
			results[i] = o.runner.Execute(ctx, req)
		}(i, req)
	}
	wg.Wait()

	for _, res := range results {
		sink.ToolCallFinished(res)
	}
	return results
}

// TokenCount reports the prompt size of the session history. Providers
// without native counting fall back to the character heuristic; estimated
// is true in that case.
func (o *Orchestrator) TokenCount(ctx context.Context, session *Session) (count int, estimated bool, err error) {
	req := contract.ChatRequest{Model: session.Model, Messages: session.History}

	provider, err := o.registry.Resolve(session.Model)
	if err != nil {
		return 0, false, err
	}

	count, err = provider.CountTokens(ctx, req)
	if err == nil {
		return count, false, nil
	}
	if !apperrors.IsCategory(err, apperrors.ErrUnsupported) {
		return 0, false, err
	}
	return llm.EstimateTokens(req), true, nil
}
