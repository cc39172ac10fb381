package contract

import (
	"io"
	"sync"

	apperrors "github.com/researchcli/research/internal/errors"
)

// pullStream adapts a pair of pull functions into a Stream. Providers hand
// it their SDK-specific receive loop and a finalizer that materializes the
// accumulated response.
type pullStream struct {
	next   func() (StreamChunk, error)
	final  func() (*ChatResponse, error)
	closer func() error

	mu   sync.Mutex
	done bool
	err  error
}

// NewStream wraps next, final and closer into a Stream. next returns the
// upcoming chunk or an error; the chunk with Done set terminates the stream.
// final may only be called after the Done chunk was received.
func NewStream(next func() (StreamChunk, error), final func() (*ChatResponse, error), closer func() error) Stream {
	return &pullStream{next: next, final: final, closer: closer}
}

func (s *pullStream) Recv() (StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return StreamChunk{}, s.err
	}
	if s.done {
		return StreamChunk{}, io.EOF
	}

	chunk, err := s.next()
	if err != nil {
		// A mid-stream transport failure is a typed error, never a silent
		// truncation.
		s.err = err
		return StreamChunk{}, err
	}
	if chunk.Done {
		s.done = true
	}
	return chunk, nil
}

func (s *pullStream) Final() (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if !s.done {
		return nil, apperrors.API("stream not finished")
	}
	return s.final()
}

func (s *pullStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
