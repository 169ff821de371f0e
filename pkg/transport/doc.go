// Package transport defines the handler interfaces and middleware chain
// for the difygate HTTP/SSE transport layer.
//
// The transport layer bridges chat-completions clients and the gateway
// orchestrator. It deserializes incoming requests into the protocol types
// defined in pkg/api, dispatches them for processing, and serializes
// responses back to the client in either blocking (JSON) or streaming
// (SSE) form.
//
// # Handler Interface
//
// CompletionCreator is the single contract between the transport layer
// and the orchestrator. The CompletionWriter interface abstracts
// streaming and non-streaming output, so the handler can emit SSE frames
// or a complete JSON object without knowing the underlying protocol.
//
// # Middleware
//
// The middleware chain wraps CompletionCreator with cross-cutting
// concerns. Built-in middleware provides panic recovery, request ID
// assignment (X-Request-ID), and structured logging via log/slog.
//
// # Errors
//
// Handler errors surface to clients as plain-text "Error: <message>"
// bodies, 400 for invalid requests and 500 for everything else. The
// shape is deliberate: existing clients of this surface parse exactly
// this form.
package transport
