package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm"
	"github.com/researchcli/research/internal/llm/contract"
	"github.com/researchcli/research/internal/tool"
)

// fakeProvider replays a scripted sequence of responses and records every
// request it receives.
type fakeProvider struct {
	steps    []fakeStep
	calls    int
	requests []contract.ChatRequest
}

type fakeStep struct {
	resp *contract.ChatResponse
	err  error
}

func (f *fakeProvider) ID() string { return "fake" }

func (f *fakeProvider) Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.calls >= len(f.steps) {
		return nil, apperrors.API("no scripted response left")
	}
	step := f.steps[f.calls]
	f.calls++
	return step.resp, step.err
}

func (f *fakeProvider) StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error) {
	resp, err := f.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	emitted := false
	next := func() (contract.StreamChunk, error) {
		if emitted {
			return contract.StreamChunk{Usage: &resp.Usage, Done: true}, nil
		}
		emitted = true
		return contract.StreamChunk{Delta: resp.Message.Text()}, nil
	}
	return contract.NewStream(next, func() (*contract.ChatResponse, error) { return resp, nil }, nil), nil
}

func (f *fakeProvider) CountTokens(ctx context.Context, req contract.ChatRequest) (int, error) {
	return 0, apperrors.Unsupported("fake provider has no token counting")
}

// recordingSink captures turn events in arrival order.
type recordingSink struct {
	deltas   []string
	started  []contract.ToolCallRequest
	finished []contract.ToolCallResult
	notices  []string
}

func (s *recordingSink) TextDelta(delta string) { s.deltas = append(s.deltas, delta) }

func (s *recordingSink) ToolCallStarted(req contract.ToolCallRequest) { s.started = append(s.started, req) }

func (s *recordingSink) ToolCallFinished(res contract.ToolCallResult) { s.finished = append(s.finished, res) }

func (s *recordingSink) Notice(message string) { s.notices = append(s.notices, message) }

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echo arguments back" }
func (echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"value": map[string]interface{}{"type": "string"}},
	}
}
func (echoTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args map[string]interface{}
	_ = json.Unmarshal(input, &args)
	return json.Marshal(map[string]interface{}{"echoed": args["value"]})
}

func textResponse(text string) *contract.ChatResponse {
	return &contract.ChatResponse{
		Message:      contract.TextMessage(contract.RoleModel, text),
		FinishReason: contract.FinishStop,
	}
}

func toolCallResponse(calls ...contract.FunctionCall) *contract.ChatResponse {
	msg := contract.Message{Role: contract.RoleModel}
	for i := range calls {
		msg.Parts = append(msg.Parts, contract.Part{FunctionCall: &calls[i]})
	}
	return &contract.ChatResponse{Message: msg, FinishReason: contract.FinishToolCalls}
}

func newTestOrchestrator(t *testing.T, provider llm.Provider, opts Options) *Orchestrator {
	t.Helper()

	registry := llm.NewRegistryWithProviders(map[llm.ProviderID]llm.Provider{
		llm.ProviderGemini: provider,
	})

	toolRegistry := tool.NewRegistry()
	toolRegistry.Register(echoTool{})

	return New(registry, tool.NewRunner(toolRegistry), opts)
}

func TestRunTurn_PlainTextReply(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{{resp: textResponse("hello there")}}}
	o := newTestOrchestrator(t, provider, Options{})
	session := NewSession("gemini-2.5-pro")
	sink := &recordingSink{}

	out, err := o.RunTurn(context.Background(), session, "hi", sink)
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	require.Len(t, session.History, 2)
	assert.Equal(t, contract.RoleUser, session.History[0].Role)
	assert.Equal(t, contract.RoleModel, session.History[1].Role)
	assert.Equal(t, []string{"hello there"}, sink.deltas)
	assert.Empty(t, sink.started)
}

func TestRunTurn_StreamingDeltasReachSink(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{{resp: textResponse("streamed")}}}
	o := newTestOrchestrator(t, provider, Options{Stream: true})
	session := NewSession("gemini-2.5-pro")
	sink := &recordingSink{}

	out, err := o.RunTurn(context.Background(), session, "hi", sink)
	require.NoError(t, err)
	assert.Equal(t, "streamed", out)
	assert.Equal(t, []string{"streamed"}, sink.deltas)
}

func TestRunTurn_ToolLoop(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{
		{resp: toolCallResponse(
			contract.FunctionCall{ID: "c1", Name: "echo", Args: map[string]any{"value": "one"}},
			contract.FunctionCall{ID: "c2", Name: "echo", Args: map[string]any{"value": "two"}},
		)},
		{resp: textResponse("both done")},
	}}
	o := newTestOrchestrator(t, provider, Options{})
	session := NewSession("gemini-2.5-pro")
	sink := &recordingSink{}

	out, err := o.RunTurn(context.Background(), session, "run both", sink)
	require.NoError(t, err)
	assert.Equal(t, "both done", out)

	// user, model call, tool results, final model text
	require.Len(t, session.History, 4)
	toolMsg := session.History[2]
	require.True(t, toolMsg.IsToolResponse())
	require.Len(t, toolMsg.Parts, 2)
	// Results keep request order regardless of completion order.
	assert.Equal(t, "c1", toolMsg.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "c2", toolMsg.Parts[1].FunctionResponse.ID)
	assert.Equal(t, map[string]any{"echoed": "one"}, toolMsg.Parts[0].FunctionResponse.Response)

	require.Len(t, sink.started, 2)
	require.Len(t, sink.finished, 2)

	// The second model call saw the tool results.
	require.Len(t, provider.requests, 2)
	last := provider.requests[1].Messages
	assert.True(t, last[len(last)-1].IsToolResponse())
}

func TestRunTurn_FailedToolReportedToModel(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{
		{resp: toolCallResponse(contract.FunctionCall{ID: "c1", Name: "no_such_tool", Args: map[string]any{}})},
		{resp: textResponse("could not do that")},
	}}
	o := newTestOrchestrator(t, provider, Options{})
	session := NewSession("gemini-2.5-pro")
	sink := &recordingSink{}

	out, err := o.RunTurn(context.Background(), session, "try it", sink)
	require.NoError(t, err)
	assert.Equal(t, "could not do that", out)

	toolMsg := session.History[2]
	require.Len(t, toolMsg.Parts, 1)
	response := toolMsg.Parts[0].FunctionResponse.Response
	assert.Contains(t, response["error"], "tool not found")

	require.Len(t, sink.finished, 1)
	assert.False(t, sink.finished[0].Success)
}

func TestRunTurn_QuotaFallbackRetriesSameTurn(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{
		{err: &apperrors.QuotaError{Model: "gemini-2.5-pro", ProQuota: true, Message: "daily limit"}},
		{resp: textResponse("from fallback")},
	}}
	o := newTestOrchestrator(t, provider, Options{
		Fallback: FallbackPolicy{FallbackModel: "gemini-2.5-flash"},
	})
	session := NewSession("gemini-2.5-pro")
	sink := &recordingSink{}

	out, err := o.RunTurn(context.Background(), session, "hi", sink)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", out)

	// The session stays on the fallback model.
	assert.Equal(t, "gemini-2.5-flash", session.Model)
	require.Len(t, sink.notices, 1)
	assert.Contains(t, sink.notices[0], "gemini-2.5-flash")

	require.Len(t, provider.requests, 2)
	assert.Equal(t, "gemini-2.5-flash", provider.requests[1].Model)
}

func TestRunTurn_SecondQuotaErrorPropagates(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{
		{err: &apperrors.QuotaError{Model: "gemini-2.5-pro", Message: "rate limited"}},
		{err: &apperrors.QuotaError{Model: "gemini-2.5-flash", Message: "rate limited"}},
	}}
	o := newTestOrchestrator(t, provider, Options{
		Fallback: FallbackPolicy{FallbackModel: "gemini-2.5-flash"},
	})
	session := NewSession("gemini-2.5-pro")

	_, err := o.RunTurn(context.Background(), session, "hi", &recordingSink{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrQuotaExceeded))
}

func TestRunTurn_TurnCeiling(t *testing.T) {
	call := contract.FunctionCall{ID: "c1", Name: "echo", Args: map[string]any{"value": "again"}}
	provider := &fakeProvider{steps: []fakeStep{
		{resp: toolCallResponse(call)},
		{resp: toolCallResponse(call)},
		{resp: toolCallResponse(call)},
	}}
	o := newTestOrchestrator(t, provider, Options{MaxTurns: 2})
	session := NewSession("gemini-2.5-pro")

	_, err := o.RunTurn(context.Background(), session, "loop forever", &recordingSink{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrTurnLimit))
	// The ceiling bounds model calls, so the loop always terminates.
	assert.Equal(t, 2, provider.calls)
}

func TestRunTurn_CancelledContext(t *testing.T) {
	provider := &fakeProvider{steps: []fakeStep{{resp: textResponse("never sent")}}}
	o := newTestOrchestrator(t, provider, Options{})
	session := NewSession("gemini-2.5-pro")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.RunTurn(ctx, session, "hi", &recordingSink{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrAborted))
	assert.Zero(t, provider.calls)
}

// cancelStreamProvider emits a scripted stream and cancels the context
// from inside the second chunk, mid-delivery.
type cancelStreamProvider struct {
	cancel context.CancelFunc
	deltas []string
}

func (p *cancelStreamProvider) ID() string { return "fake" }

func (p *cancelStreamProvider) Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error) {
	return nil, apperrors.API("streaming only")
}

func (p *cancelStreamProvider) StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error) {
	i := 0
	next := func() (contract.StreamChunk, error) {
		if i >= len(p.deltas) {
			return contract.StreamChunk{Done: true}, nil
		}
		if i == 1 {
			p.cancel()
		}
		chunk := contract.StreamChunk{Delta: p.deltas[i]}
		i++
		return chunk, nil
	}
	final := func() (*contract.ChatResponse, error) {
		return textResponse("unreachable"), nil
	}
	return contract.NewStream(next, final, nil), nil
}

func (p *cancelStreamProvider) CountTokens(ctx context.Context, req contract.ChatRequest) (int, error) {
	return 0, apperrors.Unsupported("no token counting")
}

func TestRunTurn_CancelMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &cancelStreamProvider{
		cancel: cancel,
		deltas: []string{"one ", "two ", "three ", "four ", "five"},
	}
	o := newTestOrchestrator(t, provider, Options{Stream: true})
	session := NewSession("gemini-2.5-pro")
	sink := &recordingSink{}

	_, err := o.RunTurn(ctx, session, "go", sink)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrAborted))
	// Chunks already delivered before the cancellation reach the sink;
	// nothing after it does.
	assert.Equal(t, []string{"one ", "two "}, sink.deltas)
}

func TestRunTurn_UnknownModelIsConfigurationError(t *testing.T) {
	provider := &fakeProvider{}
	o := newTestOrchestrator(t, provider, Options{})
	// gpt models classify to openai, which has no adapter here.
	session := NewSession("gpt-4o")

	_, err := o.RunTurn(context.Background(), session, "hi", &recordingSink{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrConfiguration))
}

func TestTokenCount_FallsBackToEstimate(t *testing.T) {
	provider := &fakeProvider{}
	o := newTestOrchestrator(t, provider, Options{})
	session := NewSession("gemini-2.5-pro")
	session.Append(contract.TextMessage(contract.RoleUser, "aaaaaaaa"))

	count, estimated, err := o.TokenCount(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, estimated)
	assert.Equal(t, 2, count)
}

func TestFallbackPolicy_Decide(t *testing.T) {
	policy := FallbackPolicy{FallbackModel: "gemini-2.5-flash"}

	quota := &apperrors.QuotaError{Model: "gemini-2.5-pro", Message: "slow down"}
	model, notice, ok := policy.Decide(quota, "gemini-2.5-pro")
	require.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash", model)
	assert.Contains(t, notice, "Rate limited")

	pro := &apperrors.QuotaError{Model: "gemini-2.5-pro", ProQuota: true, Message: "daily limit"}
	_, notice, ok = policy.Decide(pro, "gemini-2.5-pro")
	require.True(t, ok)
	assert.Contains(t, notice, "Daily quota")

	// Already on the fallback: nowhere to go.
	_, _, ok = policy.Decide(quota, "gemini-2.5-flash")
	assert.False(t, ok)

	// Non-quota errors never trigger fallback.
	_, _, ok = policy.Decide(errors.New("boom"), "gemini-2.5-pro")
	assert.False(t, ok)

	// No fallback configured.
	_, _, ok = FallbackPolicy{}.Decide(quota, "gemini-2.5-pro")
	assert.False(t, ok)
}

func TestNewSession_UniqueIDs(t *testing.T) {
	a := NewSession("gemini-2.5-pro")
	b := NewSession("gemini-2.5-pro")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "gemini-2.5-pro", a.Model)
	assert.Empty(t, a.History)
}
