// Package gateway orchestrates the create-completion operation: it
// correlates the stateless request with an engine conversation, invokes
// the engine in the requested mode, persists newly issued conversation
// handles, and writes the translated result to the transport.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/difygate/difygate/pkg/api"
	"github.com/difygate/difygate/pkg/backend"
	"github.com/difygate/difygate/pkg/conversation"
	"github.com/difygate/difygate/pkg/observability"
	"github.com/difygate/difygate/pkg/translate"
	"github.com/difygate/difygate/pkg/transport"
)

// Gateway implements transport.CompletionCreator on top of an engine
// invoker and the conversation layer.
type Gateway struct {
	appID    string
	invoker  backend.Invoker
	resolver *conversation.Resolver
	sessions *conversation.Sessions
	logger   *slog.Logger
}

var _ transport.CompletionCreator = (*Gateway)(nil)

// New creates a Gateway. appID identifies the engine application every
// request is routed to; requests fail with an invalid-request error when
// it is empty.
func New(appID string, invoker backend.Invoker, resolver *conversation.Resolver, sessions *conversation.Sessions, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		appID:    appID,
		invoker:  invoker,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
	}
}

// CreateCompletion handles one chat-completions request end to end.
func (g *Gateway) CreateCompletion(ctx context.Context, req *api.ChatCompletionRequest, w transport.CompletionWriter) error {
	if g.appID == "" {
		return api.NewInvalidRequestError("app_id", "app id is not configured")
	}

	res, err := g.resolver.Resolve(ctx, req.Messages, req.User)
	if err != nil {
		return api.NewInvalidRequestError("messages", err.Error())
	}

	invokeReq, err := g.buildInvokeRequest(req, res)
	if err != nil {
		return api.NewServerError("encoding message history: " + err.Error())
	}

	if req.Stream {
		return g.streamCompletion(ctx, invokeReq, res, req.User, w)
	}
	return g.blockingCompletion(ctx, invokeReq, res, req.User, w)
}

// buildInvokeRequest assembles the engine invocation. The full message
// history rides along as an input variable so engine prompts can
// reference turns the query alone does not carry.
func (g *Gateway) buildInvokeRequest(req *api.ChatCompletionRequest, res conversation.Resolution) (*backend.InvokeRequest, error) {
	history, err := json.Marshal(req.Messages)
	if err != nil {
		return nil, err
	}

	mode := backend.ModeBlocking
	if req.Stream {
		mode = backend.ModeStreaming
	}

	return &backend.InvokeRequest{
		AppID: g.appID,
		Inputs: backend.Inputs{
			Messages: string(history),
			User:     req.User,
		},
		Query:          res.Query,
		ResponseMode:   mode,
		ConversationID: res.ConversationID,
		User:           req.User,
	}, nil
}

// streamCompletion invokes the engine in streaming mode and forwards the
// translated chunks. When the request opened a new conversation, the
// first event is peeked off the stream to learn the engine's handle, the
// mapping is persisted, and the event is pushed back so translation sees
// the full stream.
func (g *Gateway) streamCompletion(ctx context.Context, invokeReq *backend.InvokeRequest, res conversation.Resolution, user string, w transport.CompletionWriter) error {
	start := time.Now()

	events, err := g.invoker.InvokeStream(ctx, invokeReq)
	if err != nil {
		observability.EngineRequestsTotal.WithLabelValues(backend.ModeStreaming, "error").Inc()
		return err
	}
	observability.EngineRequestsTotal.WithLabelValues(backend.ModeStreaming, "ok").Inc()

	if res.ConversationID == "" {
		first, ok := <-events
		if ok {
			g.persistHandle(ctx, res.Fingerprint, first.ConversationID, user)
		}
		events = prependEvent(ctx, first, ok, events)
	}

	events = g.tapUsage(ctx, events, start)

	for frame := range translate.Stream(ctx, events, g.logger) {
		if err := w.WriteChunk(ctx, frame); err != nil {
			g.logger.Debug("client disconnected during stream", "error", err.Error())
			return nil
		}
	}
	return nil
}

// blockingCompletion invokes the engine in blocking mode and writes the
// translated completion. Handle persistence is synchronous here; the
// whole response is already in hand.
func (g *Gateway) blockingCompletion(ctx context.Context, invokeReq *backend.InvokeRequest, res conversation.Resolution, user string, w transport.CompletionWriter) error {
	start := time.Now()

	resp, err := g.invoker.Invoke(ctx, invokeReq)
	if err != nil {
		observability.EngineRequestsTotal.WithLabelValues(backend.ModeBlocking, "error").Inc()
		return err
	}
	observability.EngineRequestsTotal.WithLabelValues(backend.ModeBlocking, "ok").Inc()
	observability.EngineLatency.WithLabelValues(backend.ModeBlocking).Observe(time.Since(start).Seconds())
	recordTokens(resp.Metadata.Usage)

	if res.ConversationID == "" {
		g.persistHandle(ctx, res.Fingerprint, resp.ConversationID, user)
	}

	return w.WriteCompletion(ctx, translate.Completion(resp))
}

// persistHandle saves the fingerprint-to-handle mapping, best effort. An
// engine response without a conversation id simply leaves no record.
func (g *Gateway) persistHandle(ctx context.Context, fingerprint, conversationID, user string) {
	if conversationID == "" {
		g.logger.Warn("engine response carries no conversation id, skipping persistence",
			"fingerprint", fingerprint)
		return
	}
	g.sessions.Save(ctx, fingerprint, conversation.NewRecord(conversationID, user))
}

// prependEvent pushes a peeked event back onto the front of the stream.
func prependEvent(ctx context.Context, first backend.ChatEvent, hasFirst bool, rest <-chan backend.ChatEvent) <-chan backend.ChatEvent {
	out := make(chan backend.ChatEvent)
	go func() {
		defer close(out)
		if hasFirst {
			select {
			case out <- first:
			case <-ctx.Done():
				return
			}
		}
		for ev := range rest {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// tapUsage forwards the stream unchanged while recording engine latency
// and token counts from the terminal event.
func (g *Gateway) tapUsage(ctx context.Context, events <-chan backend.ChatEvent, start time.Time) <-chan backend.ChatEvent {
	out := make(chan backend.ChatEvent)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Event == backend.EventMessageEnd {
				observability.EngineLatency.WithLabelValues(backend.ModeStreaming).Observe(time.Since(start).Seconds())
				recordTokens(ev.Metadata.Usage)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func recordTokens(usage backend.Usage) {
	if usage.PromptTokens > 0 {
		observability.EngineTokensTotal.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		observability.EngineTokensTotal.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	}
}
