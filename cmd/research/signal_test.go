package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalHandler_StopReleasesGoroutine(t *testing.T) {
	h := NewSignalHandler(context.Background())
	h.Start()
	h.Stop()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signal goroutine still running after Stop")
	}

	select {
	case <-h.Context().Done():
	default:
		t.Fatal("context not cancelled after Stop")
	}
}

func TestSignalHandler_SignalCancelsContext(t *testing.T) {
	h := NewSignalHandler(context.Background())
	h.Start()
	defer h.Stop()

	h.sigChan <- os.Interrupt

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after signal")
	}
	require.Error(t, h.Context().Err())
}
