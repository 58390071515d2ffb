// Package llm provides the chat-completion client used for tutoring,
// problem generation, flowchart generation and grading judgments.
package llm

import (
	"context"
	"iter"
)

// Client is the core abstraction for LLM interaction. The response text
// is untrusted free text; callers parse it with the tolerant helpers in
// this package rather than assuming any structure.
type Client interface {
	// Complete sends a request and returns the full response text.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream sends a request and yields response text incrementally.
	// The stream must be consumed to completion (or the context canceled)
	// before any dependent state mutation is applied.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the model's role and constraints.
	System string

	// Messages is the conversation history, oldest first.
	Messages []Message

	// Model overrides the client's default model when non-empty.
	Model string

	// MaxTokens is the maximum number of tokens in the response.
	// Zero means the client default.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
