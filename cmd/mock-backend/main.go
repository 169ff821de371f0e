// Command mock-backend runs a deterministic conversational engine for
// gateway testing. It speaks the chat-messages protocol in both
// streaming and blocking modes, issues real conversation ids, and
// rejects continuations of conversations it never created.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 5001)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "5001"
	}

	eng := &mockEngine{conversations: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat-messages", eng.handleChatMessages)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock engine starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock engine failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock engine shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID string            `json:"conversation_id"`
	User           string            `json:"user"`
}

// --- Response types ---

type chatEvent struct {
	Event          string    `json:"event"`
	ID             string    `json:"id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Created        int64     `json:"created,omitempty"`
	Answer         string    `json:"answer,omitempty"`
	Metadata       *metadata `json:"metadata,omitempty"`
}

type chatResponse struct {
	ID             string   `json:"id"`
	MessageID      string   `json:"message_id"`
	ConversationID string   `json:"conversation_id"`
	Created        int64    `json:"created"`
	Answer         string   `json:"answer"`
	Metadata       metadata `json:"metadata"`
}

type metadata struct {
	Usage usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// mockEngine tracks issued conversation ids and their turn counts.
type mockEngine struct {
	mu            sync.Mutex
	conversations map[string]int
}

// resolveConversation validates or creates the conversation, returning
// its id and turn number.
func (e *mockEngine) resolveConversation(id string) (string, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
		e.conversations[id] = 1
		return id, 1, true
	}

	turns, ok := e.conversations[id]
	if !ok {
		return "", 0, false
	}
	e.conversations[id] = turns + 1
	return id, turns + 1, true
}

func (e *mockEngine) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid_param", "invalid request body")
		return
	}
	if req.Query == "" {
		writeEngineError(w, http.StatusBadRequest, "invalid_param", "query is required")
		return
	}

	convID, turn, ok := e.resolveConversation(req.ConversationID)
	if !ok {
		writeEngineError(w, http.StatusNotFound, "not_found", "Conversation Not Exists.")
		return
	}

	answer := answerFor(req.Query, turn)
	messageID := uuid.NewString()
	created := time.Now().Unix()
	use := usage{
		PromptTokens:     len(strings.Fields(req.Query)),
		CompletionTokens: len(strings.Fields(answer)),
	}
	use.TotalTokens = use.PromptTokens + use.CompletionTokens

	if req.ResponseMode == "streaming" {
		e.streamAnswer(w, convID, messageID, created, answer, use)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		ID:             messageID,
		MessageID:      messageID,
		ConversationID: convID,
		Created:        created,
		Answer:         answer,
		Metadata:       metadata{Usage: use},
	})
}

// streamAnswer emits the answer word by word as message events followed
// by a message_end trailer.
func (e *mockEngine) streamAnswer(w http.ResponseWriter, convID, messageID string, created int64, answer string, use usage) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	words := strings.SplitAfter(answer, " ")
	for _, word := range words {
		writeEvent(w, chatEvent{
			Event:          "message",
			MessageID:      messageID,
			ConversationID: convID,
			Created:        created,
			Answer:         word,
		})
		flusher.Flush()
	}

	writeEvent(w, chatEvent{
		Event:          "message_end",
		ID:             messageID,
		MessageID:      messageID,
		ConversationID: convID,
		Created:        created,
		Metadata:       &metadata{Usage: use},
	})
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, ev chatEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeEngineError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"status":  status,
	})
}

// answerFor produces a deterministic reply so tests can assert content.
func answerFor(query string, turn int) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "count from 1 to 5"):
		return "1, 2, 3, 4, 5"
	case strings.Contains(q, "hello"):
		return "Hello! How can I help you today?"
	default:
		return fmt.Sprintf("You said: %s (turn %d)", query, turn)
	}
}
