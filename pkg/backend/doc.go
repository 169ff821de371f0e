// Package backend defines the conversational-engine capability the gateway
// fronts, and an HTTP client implementation speaking the engine's
// chat-messages API. The engine is stateful: it issues an opaque
// conversation_id on the first exchange and expects only the new query plus
// that handle on subsequent turns.
package backend
