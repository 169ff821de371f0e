package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/difygate/difygate/pkg/api"
	"github.com/difygate/difygate/pkg/debug"
)

// Config holds configuration for the engine HTTP client.
type Config struct {
	// BaseURL is the engine server URL (e.g., "http://localhost:5001").
	BaseURL string

	// APIKey for engine authentication (optional).
	APIKey string

	// Timeout for blocking HTTP requests. Defaults to 120s. Streaming
	// requests are not subject to this timeout; their lifetime is bound
	// to the request context instead.
	Timeout time.Duration
}

// Client is an HTTP implementation of Invoker against the engine's
// chat-messages endpoint.
type Client struct {
	cfg    Config
	client *http.Client
}

// Ensure Client implements Invoker at compile time.
var _ Invoker = (*Client)(nil)

// NewClient creates a new engine client with the given configuration.
// Returns an error if the configuration is invalid.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Invoke performs a blocking invocation against the chat-messages endpoint.
func (c *Client) Invoke(ctx context.Context, req *InvokeRequest) (*ChatResponse, error) {
	reqCopy := *req
	reqCopy.ResponseMode = ModeBlocking

	httpResp, err := c.post(ctx, &reqCopy, c.client, "")
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var resp ChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse engine response: %s", err.Error()))
	}

	return &resp, nil
}

// InvokeStream performs a streaming invocation. It returns a channel of
// ChatEvents; the channel is closed when the stream completes, errors, or
// the context is cancelled.
func (c *Client) InvokeStream(ctx context.Context, req *InvokeRequest) (<-chan ChatEvent, error) {
	reqCopy := *req
	reqCopy.ResponseMode = ModeStreaming

	// Use a client without timeout for streaming. The context controls
	// the request lifetime instead.
	streamClient := &http.Client{
		Transport: c.client.Transport,
	}

	httpResp, err := c.post(ctx, &reqCopy, streamClient, "text/event-stream")
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	ch := make(chan ChatEvent, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseEventStream(ctx, httpResp.Body, ch)
	}()

	return ch, nil
}

// post builds and sends the chat-messages request.
func (c *Client) post(ctx context.Context, req *InvokeRequest, client *http.Client, accept string) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.cfg.BaseURL + "/v1/chat-messages"
	debug.Log("engine", "request",
		"url", url,
		"mode", req.ResponseMode,
		"conversation_id", req.ConversationID,
		"query", debug.Truncate(req.Query, 120))
	if debug.TraceIsEnabled("engine") {
		debug.Raw("engine", string(body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	debug.Log("engine", "response", "status", httpResp.StatusCode)

	return httpResp, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
