// Package llm provides shared data models for LLM providers.
package llm

import (
	"encoding/json"
	"fmt"
)

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`  // For assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages
}

// ToolCall represents a tool call from the LLM.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// NewToolDefinition builds a definition from a raw JSON Schema.
// An empty schema becomes an object without properties.
func NewToolDefinition(name, description string, schema json.RawMessage) (ToolDefinition, error) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &params); err != nil {
			return ToolDefinition{}, fmt.Errorf("tool %s: invalid schema: %w", name, err)
		}
	}
	return ToolDefinition{Name: name, Description: description, Parameters: params}, nil
}

// ChatRequest is a single streamed completion request.
type ChatRequest struct {
	// Model overrides the provider's default model when set.
	Model       string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	Temperature *float64
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall // Tool calls requested by the LLM
	Usage     *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Streaming bool   `json:"streaming"`
	Tools     bool   `json:"tools"`
	// MaxInputTokens is the context window when the provider reports it.
	MaxInputTokens int `json:"max_input_tokens,omitempty"`
}
