package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/difygate/difygate/pkg/api"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code. Transport-level errors (body too large, method not
// allowed) are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a plain-text error body in the
// "Error: <message>" form clients of this surface expect, with the given
// status code.
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, "Error: %s", message)
}

// WriteError writes an error as a plain-text response. APIErrors carry
// their own status mapping; anything else is treated as a server error.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, apiErr.Message, HTTPStatusFromError(apiErr))
		return
	}
	WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
}
