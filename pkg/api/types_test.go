package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChunkFinishReasonSerializesAsNull(t *testing.T) {
	chunk := ChatCompletionChunk{
		ID:                "chatcmpl-1",
		Object:            ObjectChunk,
		Model:             AdvertisedModel,
		SystemFingerprint: SystemFingerprint,
		Choices: []ChunkChoice{
			{Index: 0, Delta: Delta{Role: RoleAssistant, Content: "Hi"}},
		},
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"finish_reason":null`) {
		t.Errorf("intermediate chunk must carry an explicit null finish_reason, got %s", data)
	}
}

func TestEmptyDeltaSerializesAsEmptyObject(t *testing.T) {
	stop := "stop"
	chunk := ChatCompletionChunk{
		Object:  ObjectChunk,
		Choices: []ChunkChoice{{Index: 0, FinishReason: &stop}},
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"delta":{}`) {
		t.Errorf("terminal chunk delta should serialize as {}, got %s", data)
	}
	if !strings.Contains(string(data), `"finish_reason":"stop"`) {
		t.Errorf("terminal chunk should carry finish_reason stop, got %s", data)
	}
}

func TestUsageTotalTokensOmittedWhenNil(t *testing.T) {
	data, err := json.Marshal(Usage{CompletionTokens: 1, PromptTokens: 2})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "total_tokens") {
		t.Errorf("nil total_tokens must be omitted, got %s", data)
	}

	total := 0
	data, err = json.Marshal(Usage{TotalTokens: &total})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"total_tokens":0`) {
		t.Errorf("zero total_tokens must still appear when set, got %s", data)
	}
}

func TestValidate(t *testing.T) {
	req := &ChatCompletionRequest{}
	if err := req.Validate(); err == nil {
		t.Error("empty messages should fail validation")
	} else if err.Type != ErrorTypeInvalidRequest {
		t.Errorf("error type = %q, want invalid_request", err.Type)
	}

	req.Messages = []Message{{Role: RoleUser, Content: "hello"}}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request failed validation: %v", err)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := NewInvalidRequestError("user", "bad value")
	if got := err.Error(); got != "invalid_request: bad value (param: user)" {
		t.Errorf("Error() = %q", got)
	}

	err = NewServerError("boom")
	if got := err.Error(); got != "server_error: boom" {
		t.Errorf("Error() = %q", got)
	}
}
