package llm

import (
	"strings"

	"github.com/researchcli/research/internal/llm/contract"
)

// Accumulator folds stream chunks into the text and usage a consumer would
// have received from a non-streaming call.
type Accumulator struct {
	sb    strings.Builder
	usage *contract.Usage
}

func (a *Accumulator) Apply(chunk contract.StreamChunk) {
	a.sb.WriteString(chunk.Delta)
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
}

func (a *Accumulator) Text() string { return a.sb.String() }

func (a *Accumulator) Usage() contract.Usage {
	if a.usage == nil {
		return contract.Usage{}
	}
	return *a.usage
}

// Drain consumes a stream to completion and returns its final response.
// The stream is closed regardless of outcome.
func Drain(s contract.Stream) (*contract.ChatResponse, error) {
	defer s.Close()
	for {
		chunk, err := s.Recv()
		if err != nil {
			return nil, err
		}
		if chunk.Done {
			return s.Final()
		}
	}
}
