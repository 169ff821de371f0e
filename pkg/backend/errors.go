package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/difygate/difygate/pkg/api"
)

// engineErrorResponse is the error body shape returned by the engine.
type engineErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mapHTTPError converts an HTTP response with a non-2xx status code into
// an APIError, extracting a descriptive message from the body when one
// is present.
func mapHTTPError(resp *http.Response) *api.APIError {
	message := extractErrorMessage(resp.Body)

	if resp.StatusCode == http.StatusBadRequest {
		if message == "" {
			message = "invalid request to engine"
		}
		return api.NewInvalidRequestError("", message)
	}

	if message == "" {
		message = fmt.Sprintf("engine error (HTTP %d)", resp.StatusCode)
	}
	return api.NewServerError(message)
}

// mapNetworkError converts a network-level error (connection refused,
// timeout, DNS failure) into an APIError.
func mapNetworkError(err error) *api.APIError {
	return api.NewServerError(fmt.Sprintf("engine connection error: %s", err.Error()))
}

// extractErrorMessage tries to parse the response body as an engine error
// and returns the message if found.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp engineErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Message != "" {
		return errResp.Message
	}

	return ""
}
