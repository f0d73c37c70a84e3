// Package llmapi defines the boundary to the external LLM endpoint: a
// stateless query (no history) and a conversation-oriented query
// (system prompt, context, and full history), both OpenAI-compatible
// chat completions calls.
package llmapi

import (
	"context"

	"llmfs/config"
	"llmfs/session"
)

// Client is the LLM Adapter boundary. Implementations never retain
// references to the Conversation passed to Converse; they read it once
// to build a request.
type Client interface {
	// Query performs a single-shot exchange: one user message, no
	// surrounding history.
	Query(ctx context.Context, model string, params config.ModelParameters, prompt string) (string, error)

	// Converse performs a multi-turn exchange carrying the effective
	// system prompt, the conversation's context, and its full history.
	// The newest user turn is already the tail of conv.Messages; the
	// request is built from the history alone.
	Converse(ctx context.Context, model string, params config.ModelParameters, conv session.Conversation) (string, error)

	// ListModels returns the upstream model identifiers currently known
	// to the endpoint.
	ListModels(ctx context.Context) ([]string, error)
}
