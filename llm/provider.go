// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Streaming and incremental tool call assembly
// - Model discovery

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for streamed chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the default model of this provider.
	Model() string

	// ListModels returns the chat models available to the configured credentials.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// StreamChat streams a chat completion, sending text chunks to the provided channel.
	// The returned response carries the full content, any tool calls the model
	// issued and token usage when the provider reports it.
	StreamChat(ctx context.Context, req ChatRequest, chunks chan<- string) (LLMResponse, error)
}
