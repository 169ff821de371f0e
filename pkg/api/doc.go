// Package api defines the OpenAI-compatible chat-completions wire types
// served by the gateway, along with the structured error taxonomy shared
// across packages.
package api
