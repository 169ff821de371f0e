package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/difygate/difygate/pkg/api"
	"github.com/difygate/difygate/pkg/backend"
	"github.com/difygate/difygate/pkg/conversation"
	"github.com/difygate/difygate/pkg/kv"
	"github.com/difygate/difygate/pkg/kv/memory"
)

// fakeInvoker is a scripted engine for gateway tests.
type fakeInvoker struct {
	response *backend.ChatResponse
	events   []backend.ChatEvent
	err      error

	gotReq *backend.InvokeRequest
}

func (f *fakeInvoker) Invoke(ctx context.Context, req *backend.InvokeRequest) (*backend.ChatResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeInvoker) InvokeStream(ctx context.Context, req *backend.InvokeRequest) (<-chan backend.ChatEvent, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan backend.ChatEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// collectingWriter records everything the gateway writes.
type collectingWriter struct {
	chunks     []string
	completion *api.ChatCompletion
}

func (w *collectingWriter) WriteChunk(_ context.Context, frame string) error {
	w.chunks = append(w.chunks, frame)
	return nil
}

func (w *collectingWriter) WriteCompletion(_ context.Context, completion *api.ChatCompletion) error {
	w.completion = completion
	return nil
}

func (w *collectingWriter) Flush() error { return nil }

func newTestGateway(invoker backend.Invoker, store kv.Store) (*Gateway, *conversation.Sessions) {
	if store == nil {
		store = memory.New(0)
	}
	sessions := conversation.NewSessions(store, nil)
	resolver := conversation.NewResolver("", sessions, nil)
	return New("app-1", invoker, resolver, sessions, nil), sessions
}

func firstTurnRequest(stream bool) *api.ChatCompletionRequest {
	return &api.ChatCompletionRequest{
		Messages: []api.Message{
			{Role: api.RoleSystem, Content: "You are a helpful assistant."},
			{Role: api.RoleUser, Content: "Hello"},
		},
		Stream: stream,
		User:   "alice",
	}
}

func continuedRequest(stream bool) *api.ChatCompletionRequest {
	req := firstTurnRequest(stream)
	req.Messages = append(req.Messages,
		api.Message{Role: api.RoleAssistant, Content: "Hi there"},
		api.Message{Role: api.RoleUser, Content: "How are you?"},
	)
	return req
}

func TestBlockingCompletion(t *testing.T) {
	invoker := &fakeInvoker{response: &backend.ChatResponse{
		ID:             "m1",
		MessageID:      "m1",
		ConversationID: "conv-1",
		Created:        1700000000,
		Answer:         "Hi!",
		Metadata:       backend.Metadata{Usage: backend.Usage{PromptTokens: 4, CompletionTokens: 1, TotalTokens: 5}},
	}}
	gw, _ := newTestGateway(invoker, nil)
	w := &collectingWriter{}

	if err := gw.CreateCompletion(context.Background(), firstTurnRequest(false), w); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if w.completion == nil {
		t.Fatal("expected a completion to be written")
	}
	if w.completion.ID != "chatcmpl-m1" {
		t.Errorf("completion id = %q, want chatcmpl-m1", w.completion.ID)
	}
	if got := w.completion.Choices[0].Message.Content; got != "Hi!" {
		t.Errorf("content = %q, want Hi!", got)
	}

	if invoker.gotReq.ResponseMode != backend.ModeBlocking {
		t.Errorf("response mode = %q, want blocking", invoker.gotReq.ResponseMode)
	}
	if invoker.gotReq.AppID != "app-1" {
		t.Errorf("app id = %q, want app-1", invoker.gotReq.AppID)
	}
	if invoker.gotReq.Query != "Hello" {
		t.Errorf("query = %q, want Hello", invoker.gotReq.Query)
	}
	if invoker.gotReq.ConversationID != "" {
		t.Errorf("first turn must not carry a conversation id, got %q", invoker.gotReq.ConversationID)
	}
}

func TestInvokeCarriesFullHistory(t *testing.T) {
	invoker := &fakeInvoker{response: &backend.ChatResponse{MessageID: "m1", Answer: "ok"}}
	gw, _ := newTestGateway(invoker, nil)

	req := continuedRequest(false)
	if err := gw.CreateCompletion(context.Background(), req, &collectingWriter{}); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	var history []api.Message
	if err := json.Unmarshal([]byte(invoker.gotReq.Inputs.Messages), &history); err != nil {
		t.Fatalf("inputs.messages is not a JSON message list: %v", err)
	}
	if len(history) != len(req.Messages) {
		t.Errorf("history length = %d, want %d", len(history), len(req.Messages))
	}
	if invoker.gotReq.Inputs.User != "alice" {
		t.Errorf("inputs.user = %q, want alice", invoker.gotReq.Inputs.User)
	}
}

func TestBlockingPersistsNewHandle(t *testing.T) {
	invoker := &fakeInvoker{response: &backend.ChatResponse{
		MessageID: "m1", ConversationID: "conv-new", Answer: "hi",
	}}
	gw, sessions := newTestGateway(invoker, nil)
	ctx := context.Background()

	req := firstTurnRequest(false)
	if err := gw.CreateCompletion(ctx, req, &collectingWriter{}); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	fp := conversation.Fingerprint(req.Messages, "alice")
	rec, found := sessions.Lookup(ctx, fp)
	if !found {
		t.Fatal("expected handle to be persisted for the new conversation")
	}
	if rec.ConversationID != "conv-new" {
		t.Errorf("persisted handle = %q, want conv-new", rec.ConversationID)
	}
	if rec.UserID != "alice" {
		t.Errorf("persisted user = %q, want alice", rec.UserID)
	}
}

func TestContinuedConversationReusesHandle(t *testing.T) {
	store := memory.New(0)
	invoker := &fakeInvoker{response: &backend.ChatResponse{MessageID: "m2", Answer: "fine"}}
	gw, sessions := newTestGateway(invoker, store)
	ctx := context.Background()

	first := firstTurnRequest(false)
	fp := conversation.Fingerprint(first.Messages, "alice")
	sessions.Save(ctx, fp, conversation.NewRecord("conv-known", "alice"))

	if err := gw.CreateCompletion(ctx, continuedRequest(false), &collectingWriter{}); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if invoker.gotReq.ConversationID != "conv-known" {
		t.Errorf("conversation id = %q, want conv-known", invoker.gotReq.ConversationID)
	}
	if invoker.gotReq.Query != "How are you?" {
		t.Errorf("query = %q, want the last user message", invoker.gotReq.Query)
	}

	// A resumed conversation must not rewrite the record.
	rec, _ := sessions.Lookup(ctx, fp)
	if rec.ConversationID != "conv-known" {
		t.Errorf("record was rewritten to %q", rec.ConversationID)
	}
}

func TestStreamingCompletion(t *testing.T) {
	invoker := &fakeInvoker{events: []backend.ChatEvent{
		{Event: backend.EventMessage, MessageID: "m1", ConversationID: "conv-s", Answer: "Hel"},
		{Event: backend.EventMessage, MessageID: "m1", ConversationID: "conv-s", Answer: "lo"},
		{Event: backend.EventMessageEnd, MessageID: "m1", ConversationID: "conv-s",
			Metadata: backend.Metadata{Usage: backend.Usage{TotalTokens: 3}}},
	}}
	gw, sessions := newTestGateway(invoker, nil)
	ctx := context.Background()
	w := &collectingWriter{}

	req := firstTurnRequest(true)
	if err := gw.CreateCompletion(ctx, req, w); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if invoker.gotReq.ResponseMode != backend.ModeStreaming {
		t.Errorf("response mode = %q, want streaming", invoker.gotReq.ResponseMode)
	}

	// Two content chunks, one terminal, one [DONE]. Peeking the first
	// event for persistence must not drop it from the stream.
	if len(w.chunks) != 4 {
		t.Fatalf("expected 4 frames, got %d: %v", len(w.chunks), w.chunks)
	}
	if !strings.Contains(w.chunks[0], `"content":"Hel"`) {
		t.Errorf("first frame lost after peek: %q", w.chunks[0])
	}
	if w.chunks[3] != "data: [DONE]\n\n" {
		t.Errorf("last frame = %q, want [DONE]", w.chunks[3])
	}

	// The handle from the peeked event must be persisted.
	fp := conversation.Fingerprint(req.Messages, "alice")
	rec, found := sessions.Lookup(ctx, fp)
	if !found || rec.ConversationID != "conv-s" {
		t.Errorf("persisted record = %+v (found=%v), want conv-s", rec, found)
	}
}

func TestStreamingContinuedSkipsPersistence(t *testing.T) {
	store := memory.New(0)
	invoker := &fakeInvoker{events: []backend.ChatEvent{
		{Event: backend.EventMessage, MessageID: "m2", ConversationID: "conv-other", Answer: "ok"},
		{Event: backend.EventMessageEnd, MessageID: "m2"},
	}}
	gw, sessions := newTestGateway(invoker, store)
	ctx := context.Background()

	fp := conversation.Fingerprint(firstTurnRequest(true).Messages, "alice")
	sessions.Save(ctx, fp, conversation.NewRecord("conv-known", "alice"))

	if err := gw.CreateCompletion(ctx, continuedRequest(true), &collectingWriter{}); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	rec, _ := sessions.Lookup(ctx, fp)
	if rec.ConversationID != "conv-known" {
		t.Errorf("continuing request must not overwrite the record, got %q", rec.ConversationID)
	}
}

func TestEmptyStream(t *testing.T) {
	invoker := &fakeInvoker{}
	gw, _ := newTestGateway(invoker, nil)
	w := &collectingWriter{}

	if err := gw.CreateCompletion(context.Background(), firstTurnRequest(true), w); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}
	if len(w.chunks) != 1 || w.chunks[0] != "data: [DONE]\n\n" {
		t.Errorf("empty stream should yield only [DONE], got %v", w.chunks)
	}
}

func TestMissingAppID(t *testing.T) {
	sessions := conversation.NewSessions(memory.New(0), nil)
	resolver := conversation.NewResolver("", sessions, nil)
	gw := New("", &fakeInvoker{}, resolver, sessions, nil)

	err := gw.CreateCompletion(context.Background(), firstTurnRequest(false), &collectingWriter{})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %v, want invalid_request", err)
	}
}

func TestNoUserMessageMapsToInvalidRequest(t *testing.T) {
	gw, _ := newTestGateway(&fakeInvoker{}, nil)

	req := &api.ChatCompletionRequest{
		Messages: []api.Message{{Role: api.RoleSystem, Content: "You are a helpful assistant."}},
	}
	err := gw.CreateCompletion(context.Background(), req, &collectingWriter{})

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %v, want invalid_request", err)
	}
}

func TestEngineErrorPropagates(t *testing.T) {
	engineErr := api.NewServerError("engine connection error: connection refused")
	gw, _ := newTestGateway(&fakeInvoker{err: engineErr}, nil)

	for _, stream := range []bool{false, true} {
		err := gw.CreateCompletion(context.Background(), firstTurnRequest(stream), &collectingWriter{})
		if !errors.Is(err, error(engineErr)) {
			t.Errorf("stream=%v: error = %v, want engine error passed through", stream, err)
		}
	}
}

func TestStoreFaultDoesNotFailRequest(t *testing.T) {
	invoker := &fakeInvoker{response: &backend.ChatResponse{
		MessageID: "m1", ConversationID: "conv-1", Answer: "hi",
	}}
	gw, _ := newTestGateway(invoker, failingStore{})
	w := &collectingWriter{}

	if err := gw.CreateCompletion(context.Background(), firstTurnRequest(false), w); err != nil {
		t.Fatalf("persistence fault must not fail the request: %v", err)
	}
	if w.completion == nil {
		t.Error("expected a completion despite the store fault")
	}
}

func TestEngineResponseWithoutHandle(t *testing.T) {
	invoker := &fakeInvoker{response: &backend.ChatResponse{MessageID: "m1", Answer: "hi"}}
	gw, sessions := newTestGateway(invoker, nil)
	ctx := context.Background()

	req := firstTurnRequest(false)
	if err := gw.CreateCompletion(ctx, req, &collectingWriter{}); err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	fp := conversation.Fingerprint(req.Messages, "alice")
	if _, found := sessions.Lookup(ctx, fp); found {
		t.Error("no record should be written when the engine returns no conversation id")
	}
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("store down") }
func (failingStore) HealthCheck(context.Context) error         { return errors.New("store down") }
func (failingStore) Close() error                              { return nil }
