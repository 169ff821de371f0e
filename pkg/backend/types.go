package backend

import "context"

// Event tags carried by streaming chat events. Tags outside this set are
// skipped by the protocol translator.
const (
	EventMessage      = "message"
	EventAgentMessage = "agent_message"
	EventMessageEnd   = "message_end"
	EventMessageFile  = "message_file"
	EventError        = "error"
)

// Response modes accepted by the engine.
const (
	ModeStreaming = "streaming"
	ModeBlocking  = "blocking"
)

// Usage reports the engine's token accounting. Absent fields decode to 0.
type Usage struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Metadata is the trailer attached to terminal events and blocking responses.
type Metadata struct {
	Usage Usage `json:"usage"`
}

// ChatEvent is one event from a streaming invocation. The engine's wire
// payloads are loosely typed; decoding into this closed struct defaults
// absent numerics to zero and absent strings to empty, so downstream code
// never null-checks individual fields.
type ChatEvent struct {
	Event          string   `json:"event"`
	ID             string   `json:"id"`
	MessageID      string   `json:"message_id"`
	ConversationID string   `json:"conversation_id"`
	Created        int64    `json:"created"`
	Answer         string   `json:"answer"`
	URL            string   `json:"url"`
	Metadata       Metadata `json:"metadata"`
}

// ChatResponse is the single object returned by a blocking invocation.
type ChatResponse struct {
	ID             string   `json:"id"`
	MessageID      string   `json:"message_id"`
	ConversationID string   `json:"conversation_id"`
	Created        int64    `json:"created"`
	Answer         string   `json:"answer"`
	Metadata       Metadata `json:"metadata"`
}

// Inputs carries the auxiliary variables passed to the engine alongside the
// query. Messages holds the full original message list as a JSON string so
// the engine's prompt can reference history verbatim.
type Inputs struct {
	Messages string `json:"messages"`
	User     string `json:"user"`
}

// InvokeRequest describes one engine invocation. An empty ConversationID
// starts a new conversation; a non-empty one continues an existing session.
type InvokeRequest struct {
	AppID          string `json:"app_id"`
	Inputs         Inputs `json:"inputs"`
	Query          string `json:"query"`
	ResponseMode   string `json:"response_mode"`
	ConversationID string `json:"conversation_id"`
	User           string `json:"user,omitempty"`
}

// Invoker is the engine capability consumed by the gateway orchestrator.
type Invoker interface {
	// Invoke performs a blocking invocation and returns the complete response.
	Invoke(ctx context.Context, req *InvokeRequest) (*ChatResponse, error)

	// InvokeStream performs a streaming invocation. The returned channel is
	// closed when the stream completes, errors, or the context is cancelled.
	InvokeStream(ctx context.Context, req *InvokeRequest) (<-chan ChatEvent, error)
}
