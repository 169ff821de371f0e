package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/difygate/difygate/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// completion request. The log entry includes the advertised model, the
// stream flag, message count, duration, request ID (from context), and
// whether the request succeeded or failed.
//
// HTTP-level details (status codes, paths) are logged by the metrics and
// adapter layers; this middleware logs at the handler level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next CompletionCreator) CompletionCreator {
		return CompletionCreatorFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w CompletionWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.CreateCompletion(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("model", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Int("messages", len(req.Messages)),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "completion failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "completion handled", attrs...)
			}

			return err
		})
	}
}
