package harnessports

import (
	"context"
)

// ResultFormatMessage asks the provider for chat-shaped choices rather than raw text.
const ResultFormatMessage = "message"

// Message is a single chat message in provider wire terms.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is everything the provider needs for one completion.
type CompletionRequest struct {
	Model        string
	Messages     []Message // full ordered history
	ResultFormat string
}

// Usage captures token accounting for telemetry.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Completion is the provider's non-streaming response.
type Completion struct {
	Text      string
	RequestID string
	Usage     *Usage // optional usage information
}

// Provider is the abstraction for remote completion backends. Implementations report
// failures as *ProviderFailure so callers can tell transport, shape and provider errors apart.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
