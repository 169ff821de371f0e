package api

// Validate checks the structural validity of a chat-completions request.
// Semantic checks (presence of a user message, memory mode support) are the
// conversation resolver's job; this only rejects bodies that cannot be
// dispatched at all.
func (r *ChatCompletionRequest) Validate() *APIError {
	if len(r.Messages) == 0 {
		return NewInvalidRequestError("messages", "messages must not be empty")
	}
	return nil
}
