package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/difygate/difygate/pkg/api"
)

func TestBlockingCompletion(t *testing.T) {
	reqBody := completionRequest(false, "blocking-user", msg("user", "Hello"))

	resp := postJSON(t, testEnv.BaseURL()+"/v1/chat/completions", reqBody)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var completion api.ChatCompletion
	decodeJSON(t, resp, &completion)

	if completion.Object != "chat.completion" {
		t.Errorf("object = %q, want chat.completion", completion.Object)
	}
	if !strings.HasPrefix(completion.ID, "chatcmpl-") {
		t.Errorf("id = %q, want chatcmpl- prefix", completion.ID)
	}
	if completion.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q, want gpt-3.5-turbo", completion.Model)
	}
	if len(completion.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(completion.Choices))
	}
	choice := completion.Choices[0]
	if choice.Message.Role != "assistant" {
		t.Errorf("role = %q, want assistant", choice.Message.Role)
	}
	if choice.Message.Content != "Reply to: Hello" {
		t.Errorf("content = %q, want %q", choice.Message.Content, "Reply to: Hello")
	}
	if choice.FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", choice.FinishReason)
	}
	if completion.Usage.PromptTokens != 5 || completion.Usage.CompletionTokens != 7 {
		t.Errorf("usage = %+v, want prompt=5 completion=7", completion.Usage)
	}
}

func TestConversationContinuity(t *testing.T) {
	const user = "continuity-user"

	// First turn creates a new conversation at the engine.
	first := postJSON(t, testEnv.BaseURL()+"/v1/chat/completions",
		completionRequest(false, user, msg("user", "Start here")))
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first turn: expected 200, got %d: %s", first.StatusCode, readBody(t, first))
	}
	var firstCompletion api.ChatCompletion
	decodeJSON(t, first, &firstCompletion)
	first.Body.Close()

	// Second turn replays the history plus the assistant reply.
	second := postJSON(t, testEnv.BaseURL()+"/v1/chat/completions",
		completionRequest(false, user,
			msg("user", "Start here"),
			msg("assistant", firstCompletion.Choices[0].Message.Content),
			msg("user", "And continue")))
	defer second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("second turn: expected 200, got %d: %s", second.StatusCode, readBody(t, second))
	}

	// The engine must have seen the stored conversation id on turn two.
	calls := callsForUser(t, user)
	if len(calls) != 2 {
		t.Fatalf("engine calls for %s = %d, want 2", user, len(calls))
	}
	if calls[0].ConversationID != "" {
		t.Errorf("first call conversation_id = %q, want empty", calls[0].ConversationID)
	}
	if calls[1].ConversationID == "" {
		t.Error("second call conversation_id is empty, want the stored handle")
	}
	if calls[1].Query != "And continue" {
		t.Errorf("second call query = %q, want %q", calls[1].Query, "And continue")
	}
}

func TestContinuationWithoutStoredHandle(t *testing.T) {
	const user = "amnesia-user"

	// A continued history the gateway has never seen: no stored handle,
	// so the engine is invoked with an empty conversation id.
	resp := postJSON(t, testEnv.BaseURL()+"/v1/chat/completions",
		completionRequest(false, user,
			msg("user", "Unknown start"),
			msg("assistant", "Some reply"),
			msg("user", "Follow up")))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	calls := callsForUser(t, user)
	if len(calls) != 1 {
		t.Fatalf("engine calls for %s = %d, want 1", user, len(calls))
	}
	if calls[0].ConversationID != "" {
		t.Errorf("conversation_id = %q, want empty for unseen history", calls[0].ConversationID)
	}
	if calls[0].Query != "Follow up" {
		t.Errorf("query = %q, want %q", calls[0].Query, "Follow up")
	}
}

func TestModelsEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/models")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var list api.ModelList
	decodeJSON(t, resp, &list)

	if list.Object != "list" {
		t.Errorf("object = %q, want list", list.Object)
	}
	if len(list.Data) != 1 {
		t.Fatalf("models = %d, want 1", len(list.Data))
	}
	if list.Data[0].ID != "gpt-3.5-turbo" {
		t.Errorf("model id = %q, want gpt-3.5-turbo", list.Data[0].ID)
	}
}

func TestRequestIDHeader(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/chat/completions",
		completionRequest(false, "header-user", msg("user", "Hi")))
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing from response")
	}
}

// callsForUser filters the mock engine's recorded calls by user.
func callsForUser(t *testing.T, user string) []engineCall {
	t.Helper()
	var out []engineCall
	for _, c := range testEnv.MockEngine.Calls() {
		if c.User == user {
			out = append(out, c)
		}
	}
	return out
}
