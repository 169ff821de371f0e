package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest covers request-shape and value errors:
	// unparsable bodies, missing user messages, unsupported memory modes,
	// and missing application configuration. Surfaced with status 400.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeServerError covers unexpected faults, chiefly backend
	// invocation failures. Surfaced with status 500.
	ErrorTypeServerError ErrorType = "server_error"
)

// APIError represents a structured gateway error with type, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewServerError creates an APIError for internal gateway errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}
