// Package llm defines the Provider interface for the text generator that
// turns a per-turn system context plus dialogue history into a spoken reply.
//
// A provider wraps a remote or local model API (OpenAI, Gemini, or any
// backend reachable through any-llm) behind a single blocking Complete call.
// The session loop treats generation as a blocking collaborator with no
// internal timeout of its own; cancellation arrives through the context.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/lexibot/pkg/types"
)

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and differ between providers for the same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the generator needs for one turn.
type CompletionRequest struct {
	// SystemContext is the per-turn board/emotion context injected before
	// the conversation. Providers without a dedicated system slot prepend
	// it as a "system"-role message.
	SystemContext string

	// History is the full dialogue so far, oldest first. The session never
	// truncates it; trimming to the context window is the provider's call.
	History []types.Message

	// UserContent is the new user utterance driving this turn. It is not
	// yet part of History.
	UserContent string

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the generator's reply for one turn.
type CompletionResponse struct {
	// Content is the text to speak. Providers must return a non-empty
	// Content or an error, never both empty.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any text-generation backend.
//
// Complete must propagate context cancellation promptly and must surface
// unusable model output (empty reply, transport fault) as an error so the
// session can abandon the turn without speaking.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model,
	// constant for the lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
