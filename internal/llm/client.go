// Package llm provides the language-model client used by the intent
// classifier and the free-form chat fallback.
package llm

import "context"

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Client is the completion interface the chatbot consumes. Exactly one
// implementation exists (Anthropic); the interface keeps the intent
// classifier testable without network access.
type Client interface {
	// Complete sends a conversation and returns the model's text reply.
	Complete(ctx context.Context, system string, msgs []Message, maxTokens int) (string, error)
}
