package transport

import (
	"context"

	"github.com/difygate/difygate/pkg/api"
)

// CompletionCreator handles the core create-completion operation. The
// implementation receives a request and writes the result (framed SSE
// chunks or a complete completion object) to the CompletionWriter.
type CompletionCreator interface {
	CreateCompletion(ctx context.Context, req *api.ChatCompletionRequest, w CompletionWriter) error
}

// CompletionCreatorFunc is an adapter that allows using an ordinary
// function as a CompletionCreator.
type CompletionCreatorFunc func(ctx context.Context, req *api.ChatCompletionRequest, w CompletionWriter) error

// CreateCompletion calls f(ctx, req, w).
func (f CompletionCreatorFunc) CreateCompletion(ctx context.Context, req *api.ChatCompletionRequest, w CompletionWriter) error {
	return f(ctx, req, w)
}

// CompletionWriter abstracts streaming and non-streaming output for the
// handler. The transport layer creates a CompletionWriter per request;
// the handler uses WriteChunk for streaming responses or WriteCompletion
// for blocking responses.
//
// WriteChunk and WriteCompletion are mutually exclusive on a single
// writer instance. Chunks arrive pre-framed ("data: ...\n\n" lines,
// including the terminating [DONE] sentinel) so the writer forwards them
// verbatim and flushes after each one.
type CompletionWriter interface {
	// WriteChunk sends one framed SSE payload. Returns an error if called
	// after WriteCompletion or if the client has disconnected.
	WriteChunk(ctx context.Context, frame string) error

	// WriteCompletion sends a complete blocking response. Returns an error
	// if called after WriteChunk was called on this writer.
	WriteCompletion(ctx context.Context, completion *api.ChatCompletion) error

	// Flush ensures buffered data is sent to the client.
	Flush() error
}
