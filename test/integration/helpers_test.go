// Package integration provides integration tests for the difygate API.
//
// Tests run against a real difygate HTTP server backed by a mock
// conversational engine, both started in-process using net/http/httptest.
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/difygate/difygate/pkg/backend"
	"github.com/difygate/difygate/pkg/conversation"
	"github.com/difygate/difygate/pkg/gateway"
	"github.com/difygate/difygate/pkg/kv/memory"
	"github.com/difygate/difygate/pkg/transport"
	transporthttp "github.com/difygate/difygate/pkg/transport/http"
)

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the gateway server and mock engine for testing.
type TestEnvironment struct {
	GatewayServer *httptest.Server
	MockEngine    *mockEngine
	EngineServer  *httptest.Server
}

// TestMain starts the mock engine and gateway server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment creates a mock engine and a gateway server wired to it.
func setupTestEnvironment() *TestEnvironment {
	eng := newMockEngine()
	engineServer := httptest.NewServer(eng)

	client, err := backend.NewClient(backend.Config{
		BaseURL: engineServer.URL,
		APIKey:  "test-key",
		Timeout: 10 * time.Second,
	})
	if err != nil {
		panic(fmt.Sprintf("creating engine client: %v", err))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New(100)
	sessions := conversation.NewSessions(store, logger)
	resolver := conversation.NewResolver(conversation.MemoryModeLastUserMessage, sessions, logger)
	gw := gateway.New("test-app", client, resolver, sessions, logger)

	// Build the handler chain matching production layout.
	adapter := transporthttp.NewAdapter(gw, transporthttp.DefaultConfig(),
		transport.Recovery(), transport.RequestID(), transport.Logging(logger))

	mux := http.NewServeMux()
	mux.Handle("/", adapter.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	gatewayServer := httptest.NewServer(mux)

	return &TestEnvironment{
		GatewayServer: gatewayServer,
		MockEngine:    eng,
		EngineServer:  engineServer,
	}
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.GatewayServer != nil {
		env.GatewayServer.Close()
	}
	if env.EngineServer != nil {
		env.EngineServer.Close()
	}
}

// BaseURL returns the gateway server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.GatewayServer.URL
}

// --- Mock engine ---

// engineCall records one request the mock engine received.
type engineCall struct {
	Query          string
	ConversationID string
	User           string
	ResponseMode   string
}

// mockEngine is a minimal chat-messages server. It issues sequential
// conversation ids and records every call for later assertions.
type mockEngine struct {
	mu            sync.Mutex
	nextID        int
	conversations map[string]bool
	calls         []engineCall
}

func newMockEngine() *mockEngine {
	return &mockEngine{conversations: make(map[string]bool)}
}

// Calls returns a copy of the recorded calls.
func (e *mockEngine) Calls() []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engineCall(nil), e.calls...)
}

func (e *mockEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/v1/chat-messages" {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Query          string `json:"query"`
		ResponseMode   string `json:"response_mode"`
		ConversationID string `json:"conversation_id"`
		User           string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.calls = append(e.calls, engineCall{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		User:           req.User,
		ResponseMode:   req.ResponseMode,
	})
	convID := req.ConversationID
	if convID == "" {
		e.nextID++
		convID = fmt.Sprintf("conv-%d", e.nextID)
		e.conversations[convID] = true
	} else if !e.conversations[convID] {
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"code": "not_found", "message": "Conversation Not Exists.", "status": 404,
		})
		return
	}
	e.mu.Unlock()

	answer := "Reply to: " + req.Query
	messageID := fmt.Sprintf("msg-%s", convID)
	created := time.Now().Unix()

	if req.ResponseMode == "streaming" {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range strings.SplitAfter(answer, " ") {
			data, _ := json.Marshal(map[string]any{
				"event":           "message",
				"message_id":      messageID,
				"conversation_id": convID,
				"created":         created,
				"answer":          word,
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		end, _ := json.Marshal(map[string]any{
			"event":           "message_end",
			"id":              messageID,
			"message_id":      messageID,
			"conversation_id": convID,
			"created":         created,
			"metadata": map[string]any{
				"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", end)
		flusher.Flush()
		return
	}

	// The blocking wire object names the message id "id"; only streaming
	// events carry "message_id".
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":              messageID,
		"conversation_id": convID,
		"created":         created,
		"answer":          answer,
		"metadata": map[string]any{
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
		},
	})
}

// --- HTTP helpers ---

// postJSON sends a POST request with JSON body and returns the response.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// getURL sends a GET request and returns the response.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// readBody reads and returns the full response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}

// decodeJSON decodes the response body into target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// completionRequest builds a chat-completions request body.
func completionRequest(stream bool, user string, messages ...map[string]string) map[string]any {
	return map[string]any{
		"model":    "gpt-3.5-turbo",
		"stream":   stream,
		"user":     user,
		"messages": messages,
	}
}

func msg(role, content string) map[string]string {
	return map[string]string{"role": role, "content": content}
}

// readSSEFrames reads all "data:" payloads from an event-stream response,
// including the terminal [DONE] sentinel.
func readSSEFrames(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var frames []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			frames = append(frames, payload)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	return frames
}
