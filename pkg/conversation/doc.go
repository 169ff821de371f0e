// Package conversation implements the correlation core of the gateway:
// deriving a stable fingerprint for an ongoing conversation from the
// client-supplied message history, persisting the engine's conversation
// handle keyed by that fingerprint, and resolving the handle back on later
// turns.
//
// Clients of the OpenAI-style interface are stateless and resend the full
// history on every call; the engine is stateful and wants only the new
// query plus an opaque conversation_id. The fingerprint bridges the two:
// it hashes the parts of a history that stay fixed across turns (the
// system message, the first user message, and the caller's user id), so
// every turn of the same conversation maps to the same record.
//
// Persistence is best-effort. A store fault never fails a request; it
// degrades the exchange to a fresh engine conversation and is logged and
// counted for diagnosis.
package conversation
