package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/difygate/difygate/pkg/api"
)

// MemoryModeLastUserMessage is the only supported strategy for deriving
// the engine query from the message history: the most recent user
// message is the query, everything before it is assumed to live in the
// engine's own conversation memory.
const MemoryModeLastUserMessage = "last_user_message"

var (
	// ErrNoUserMessage indicates the request contains no user message
	// with non-empty content, so no query can be derived.
	ErrNoUserMessage = errors.New("no user message with content found")

	// ErrUnsupportedMemoryMode indicates a memory mode other than
	// MemoryModeLastUserMessage was configured.
	ErrUnsupportedMemoryMode = errors.New("unsupported memory mode")
)

// Resolution is the outcome of correlating a request with a stored
// conversation.
type Resolution struct {
	// Fingerprint identifies the conversation thread derived from the
	// message history and user id.
	Fingerprint string

	// ConversationID is the engine-side handle, or empty when the
	// request starts a new conversation.
	ConversationID string

	// Query is the text forwarded to the engine.
	Query string

	// Continuing is true when the history contains an assistant turn,
	// meaning the client believes the conversation already exists.
	Continuing bool
}

// Resolver correlates stateless chat requests with engine conversation
// handles. It derives the query per the configured memory mode, decides
// whether the request continues an existing thread, and consults the
// session store for a previously issued handle.
type Resolver struct {
	memoryMode string
	sessions   *Sessions
	logger     *slog.Logger
}

// NewResolver creates a resolver using the given session store. An empty
// memoryMode defaults to MemoryModeLastUserMessage.
func NewResolver(memoryMode string, sessions *Sessions, logger *slog.Logger) *Resolver {
	if memoryMode == "" {
		memoryMode = MemoryModeLastUserMessage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{memoryMode: memoryMode, sessions: sessions, logger: logger}
}

// Resolve derives the engine query and conversation handle for the given
// message history. A request whose history carries no assistant turn
// always starts a new conversation, regardless of what the store holds.
// For continuing requests the stored handle is used when present; an
// absent or unreadable record falls back to a new conversation.
func (r *Resolver) Resolve(ctx context.Context, messages []api.Message, user string) (Resolution, error) {
	if r.memoryMode != MemoryModeLastUserMessage {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnsupportedMemoryMode, r.memoryMode)
	}

	query, ok := lastUserMessage(messages)
	if !ok {
		return Resolution{}, ErrNoUserMessage
	}

	res := Resolution{
		Fingerprint: Fingerprint(messages, user),
		Query:       query,
		Continuing:  hasAssistantMessage(messages),
	}

	if !res.Continuing {
		r.logger.Debug("starting new conversation", "fingerprint", res.Fingerprint)
		return res, nil
	}

	rec, found := r.sessions.Lookup(ctx, res.Fingerprint)
	if !found {
		r.logger.Debug("continuing conversation without stored handle",
			"fingerprint", res.Fingerprint)
		return res, nil
	}

	res.ConversationID = rec.ConversationID
	r.logger.Debug("resumed conversation",
		"fingerprint", res.Fingerprint, "conversation_id", rec.ConversationID)
	return res, nil
}

// lastUserMessage returns the content of the most recent user message
// with non-empty content.
func lastUserMessage(messages []api.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == api.RoleUser && messages[i].Content != "" {
			return messages[i].Content, true
		}
	}
	return "", false
}

func hasAssistantMessage(messages []api.Message) bool {
	for _, m := range messages {
		if m.Role == api.RoleAssistant {
			return true
		}
	}
	return false
}
