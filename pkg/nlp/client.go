// Package nlp provides the language model client used by the
// semantic layer, with retry and circuit-breaker wrappers.
package nlp

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem represents a system message.
	RoleSystem Role = "system"
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a completed chat response.
type Response struct {
	Content      string `json:"content"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Client defines the interface for language model operations.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// ChatStream sends a chat completion request and invokes fn for
	// each content fragment as it arrives. A non-nil error from fn
	// aborts the stream; ctx cancellation stops it between fragments.
	ChatStream(ctx context.Context, messages []Message, fn func(fragment string) error) error

	// Close cleans up any resources.
	Close() error
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Config holds settings for LLM clients.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}
