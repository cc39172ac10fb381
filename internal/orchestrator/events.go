package orchestrator

import "github.com/researchcli/research/internal/llm/contract"

// EventSink receives the observable events of a running turn. Implementations
// must be fast; the turn loop calls them inline.
type EventSink interface {
	// TextDelta delivers one streamed text fragment of the model reply.
	TextDelta(delta string)
	// ToolCallStarted fires before a requested tool executes.
	ToolCallStarted(req contract.ToolCallRequest)
	// ToolCallFinished fires after a tool completed, success or not.
	ToolCallFinished(res contract.ToolCallResult)
	// Notice delivers out-of-band information such as a model fallback.
	Notice(message string)
}

// NopSink discards every event. Used when no observer is attached.
type NopSink struct{}

func (NopSink) TextDelta(string) {}

func (NopSink) ToolCallStarted(contract.ToolCallRequest) {}

func (NopSink) ToolCallFinished(contract.ToolCallResult) {}

func (NopSink) Notice(string) {}
