package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// parseEventStream reads SSE lines from the engine, decodes each payload
// into a ChatEvent, and sends it on ch. The channel is NOT closed by this
// function; the caller is responsible for closing it.
//
// SSE format expected:
//
//	data: {"event":"message","answer":"..."}\n
//	\n
//
// Malformed payloads are logged and skipped. Context cancellation stops
// reading between lines.
func parseEventStream(ctx context.Context, body io.Reader, ch chan<- ChatEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines that don't start with "data: " are ignored
		// (empty keep-alive lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")

		var event ChatEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			slog.Warn("skipping malformed engine event",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		select {
		case ch <- event:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		slog.Error("engine stream read error", "error", err.Error())
	}
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
