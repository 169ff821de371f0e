package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/difygate/difygate/pkg/api"
	"github.com/difygate/difygate/pkg/observability"
	"github.com/difygate/difygate/pkg/transport"
)

// Adapter serves the chat-completions surface over HTTP. It routes
// requests, deserializes them, and dispatches to the CompletionCreator.
type Adapter struct {
	creator  transport.CompletionCreator
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
	}
}

// NewAdapter creates an HTTP adapter with the given CompletionCreator.
// Middleware is applied to the creator in the given order.
func NewAdapter(creator transport.CompletionCreator, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}

	a := &Adapter{
		creator:  creator,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/chat/completions", a.handleCreateCompletion)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation and metrics.
func (a *Adapter) Handler() http.Handler {
	return observability.MetricsMiddleware(httpRequestIDMiddleware(a.mux))
}

// InFlight exposes the registry of active streaming completions so the
// server can cancel them during shutdown.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded into
// the context; the handler-level RequestID middleware generates one
// otherwise. The ID is echoed on the response before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleCreateCompletion handles POST /v1/chat/completions.
func (a *Adapter) handleCreateCompletion(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && ct != "application/json; charset=utf-8" {
		transport.WriteErrorResponse(w, "Content-Type must be application/json",
			http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize),
				http.StatusRequestEntityTooLarge)
			return
		}
		transport.WriteErrorResponse(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		transport.WriteError(w, err)
		return
	}

	if req.Stream {
		a.handleStreamingCompletion(w, r, &req)
		return
	}

	rw := newSSECompletionWriter(w)
	if err := a.creator.CreateCompletion(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStreamingCompletion handles streaming requests (stream: true).
// The stream is registered in the in-flight registry so a server
// shutdown can cancel it instead of waiting out the client.
func (a *Adapter) handleStreamingCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := transport.RequestIDFromContext(ctx)
	if id == "" {
		id = fmt.Sprintf("stream-%d", time.Now().UnixNano())
	}
	a.inflight.Register(id, cancel)
	defer a.inflight.Remove(id)

	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	rw := newSSECompletionWriter(w)
	if err := a.creator.CreateCompletion(ctx, req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleListModels handles GET /v1/models. The gateway fronts a single
// conversational application, advertised under one fixed model id.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	list := api.ModelList{
		Object: "list",
		Data: []api.Model{{
			ID:      api.AdvertisedModel,
			Object:  "model",
			Created: time.Now().Unix(),
			OwnedBy: api.SystemFingerprint,
		}},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// writeHandlerError surfaces a handler error to the client. Once
// streaming has begun the status line is committed and a plain-text body
// would corrupt the stream, so the error is dropped here and left to the
// handler's own logging.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseCompletionWriter, err error) {
	if rw.hasStartedStreaming() {
		return
	}
	transport.WriteError(w, err)
}
