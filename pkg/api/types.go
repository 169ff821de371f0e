package api

// Role values for chat messages. Messages with an empty or unknown role are
// tolerated on input; the conversation resolver simply never selects them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Static identity reported to clients. The gateway fronts a conversational
// engine that has no model name of its own, so a fixed stand-in is
// advertised instead.
const (
	AdvertisedModel   = "gpt-3.5-turbo"
	SystemFingerprint = "difyai"
)

// Object type discriminators.
const (
	ObjectChunk      = "chat.completion.chunk"
	ObjectCompletion = "chat.completion"
)

// Message is a single entry in the client-supplied conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the inbound POST /v1/chat/completions body.
// The full message history is carried on every call; the gateway derives
// conversation continuity from it rather than from any client-side ID.
type ChatCompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	User     string    `json:"user"`
}

// Usage reports token consumption. TotalTokens is a pointer because the
// blocking completion shape omits it while streaming terminal chunks always
// carry it, zero included.
type Usage struct {
	CompletionTokens int  `json:"completion_tokens"`
	PromptTokens     int  `json:"prompt_tokens"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
}

// Delta is the incremental message payload inside a streaming chunk.
// A terminal chunk carries an empty delta, serialized as {}.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is a single choice within a streaming chunk. FinishReason is
// a pointer so intermediate chunks serialize it as an explicit null.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// ChatCompletionChunk is one streaming response chunk, serialized into an
// SSE "data:" line.
type ChatCompletionChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	SystemFingerprint string        `json:"system_fingerprint"`
	Choices           []ChunkChoice `json:"choices"`
	Usage             *Usage        `json:"usage,omitempty"`
}

// Choice is a single choice within a blocking completion.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletion is the blocking (non-streaming) response object.
type ChatCompletion struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage"`
}

// Model describes an entry in the GET /v1/models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models response body.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
