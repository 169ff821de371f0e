package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/difygate/difygate/pkg/api"
	"github.com/difygate/difygate/pkg/transport"
)

// writerState tracks the state of an SSE CompletionWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteChunk has been called at least once
	writerCompleted                    // WriteCompletion called
)

// sseCompletionWriter implements transport.CompletionWriter for HTTP
// responses. It handles both streaming (SSE) and blocking (JSON) output.
type sseCompletionWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.CompletionWriter = (*sseCompletionWriter)(nil)

// newSSECompletionWriter creates a CompletionWriter wrapping an
// http.ResponseWriter.
func newSSECompletionWriter(w http.ResponseWriter) *sseCompletionWriter {
	return &sseCompletionWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteChunk forwards one pre-framed SSE payload and flushes it. The
// first chunk commits the response to SSE by sending the stream headers.
func (s *sseCompletionWriter) WriteChunk(ctx context.Context, frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write chunk: writer is completed")
	}

	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	if _, err := io.WriteString(s.w, frame); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// WriteCompletion sends a complete blocking JSON response. This is
// mutually exclusive with WriteChunk.
func (s *sseCompletionWriter) WriteCompletion(ctx context.Context, completion *api.ChatCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return errors.New("cannot write completion: streaming has already started")
	}
	if s.state == writerCompleted {
		return errors.New("cannot write completion: writer is completed")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(completion); err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseCompletionWriter) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming returns true if at least one chunk has been written.
func (s *sseCompletionWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerStreaming
}
