// Package translate converts engine chat responses into the wire shapes of
// the chat-completions surface. Streaming translation is incremental: each
// engine event maps to at most one SSE frame, and nothing buffers the whole
// answer. Blocking translation maps the single engine response object onto
// a completion object.
//
// The two modes intentionally differ in usage reporting: terminal streaming
// chunks always carry total_tokens, zero included, while the blocking shape
// omits it. Clients in the wild depend on both behaviors.
package translate

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/difygate/difygate/pkg/api"
	"github.com/difygate/difygate/pkg/backend"
)

const (
	chunkIDPrefix = "chatcmpl-"

	// chunkIDFallback is used when the engine reports no message id.
	chunkIDFallback = "chatcmpl-none"

	// doneFrame terminates every SSE stream.
	doneFrame = "data: [DONE]\n\n"

	finishReasonStop = "stop"
)

// chunkID builds the client-visible chunk id from the engine message id.
func chunkID(messageID string) string {
	if messageID == "" {
		return chunkIDFallback
	}
	return chunkIDPrefix + messageID
}

// frame serializes v into one SSE data frame.
func frame(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return "data: " + string(data) + "\n\n", nil
}

// Stream translates engine events into framed SSE payloads. The returned
// channel yields complete "data: ...\n\n" frames, ends with the [DONE]
// sentinel, and is closed when the event channel closes or ctx is
// cancelled. Event tags outside the known set are skipped.
func Stream(ctx context.Context, events <-chan backend.ChatEvent, logger *slog.Logger) <-chan string {
	if logger == nil {
		logger = slog.Default()
	}

	out := make(chan string)
	go func() {
		defer close(out)

		// File events carry no message id of their own; they reuse the id
		// of the last content chunk so clients see one logical message.
		lastID := chunkIDFallback

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					send(ctx, out, doneFrame)
					return
				}

				var chunk *api.ChatCompletionChunk
				switch ev.Event {
				case backend.EventMessage, backend.EventAgentMessage:
					lastID = chunkID(ev.MessageID)
					chunk = contentChunk(lastID, ev.Created, ev.Answer)
				case backend.EventMessageEnd:
					chunk = terminalChunk(chunkID(ev.MessageID), ev.Created, ev.Metadata.Usage)
				case backend.EventMessageFile:
					chunk = contentChunk(lastID, ev.Created, "["+ev.ID+"]("+ev.URL+")")
				case backend.EventError:
					logger.Warn("engine reported stream error, ending stream",
						"message_id", ev.MessageID)
					send(ctx, out, doneFrame)
					return
				default:
					logger.Debug("skipping unknown stream event", "event", ev.Event)
					continue
				}

				f, err := frame(chunk)
				if err != nil {
					logger.Error("encoding stream chunk failed", "error", err.Error())
					continue
				}
				if !send(ctx, out, f) {
					return
				}
			}
		}
	}()
	return out
}

// Completion translates a blocking engine response into a completion object.
// The blocking wire object carries the message id in its top-level id field;
// message_id is a fallback for engines that only populate the streaming name.
func Completion(resp *backend.ChatResponse) *api.ChatCompletion {
	id := resp.ID
	if id == "" {
		id = resp.MessageID
	}
	return &api.ChatCompletion{
		ID:                chunkID(id),
		Object:            api.ObjectCompletion,
		Created:           resp.Created,
		Model:             api.AdvertisedModel,
		SystemFingerprint: api.SystemFingerprint,
		Choices: []api.Choice{{
			Index: 0,
			Message: api.Message{
				Role:    api.RoleAssistant,
				Content: resp.Answer,
			},
			FinishReason: finishReasonStop,
		}},
		Usage: api.Usage{
			CompletionTokens: resp.Metadata.Usage.CompletionTokens,
			PromptTokens:     resp.Metadata.Usage.PromptTokens,
		},
	}
}

func contentChunk(id string, created int64, content string) *api.ChatCompletionChunk {
	return &api.ChatCompletionChunk{
		ID:                id,
		Object:            api.ObjectChunk,
		Created:           created,
		Model:             api.AdvertisedModel,
		SystemFingerprint: api.SystemFingerprint,
		Choices: []api.ChunkChoice{{
			Index:        0,
			Delta:        api.Delta{Role: api.RoleAssistant, Content: content},
			FinishReason: nil,
		}},
	}
}

func terminalChunk(id string, created int64, usage backend.Usage) *api.ChatCompletionChunk {
	reason := finishReasonStop
	total := usage.TotalTokens
	return &api.ChatCompletionChunk{
		ID:                id,
		Object:            api.ObjectChunk,
		Created:           created,
		Model:             api.AdvertisedModel,
		SystemFingerprint: api.SystemFingerprint,
		Choices: []api.ChunkChoice{{
			Index:        0,
			Delta:        api.Delta{},
			FinishReason: &reason,
		}},
		Usage: &api.Usage{
			CompletionTokens: usage.CompletionTokens,
			PromptTokens:     usage.PromptTokens,
			TotalTokens:      &total,
		},
	}
}

func send(ctx context.Context, out chan<- string, frame string) bool {
	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
