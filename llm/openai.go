// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Streaming via go-openai library, including tool call deltas

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAICompatible implements streaming for any Chat Completions compatible endpoint.
type openAICompatible struct {
	name        string
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	// legacyMaxTokens sends max_tokens instead of max_completion_tokens.
	legacyMaxTokens bool
	// chatModel filters listed models down to chat models.
	chatModel func(id string) bool
}

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	openAICompatible
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewOpenAIProviderWithConfig(openai.DefaultConfig(apiKey), model, maxTokens, temperature)
}

// NewOpenAIProviderWithConfig creates an OpenAI provider from a go-openai client config.
// Use it to point at a proxy or a local test server.
func NewOpenAIProviderWithConfig(config openai.ClientConfig, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{openAICompatible{
		name:        "openai",
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
		chatModel:   isOpenAIChatModel,
	}}
}

// isOpenAIChatModel drops embedding, audio and image models from the listing.
func isOpenAIChatModel(id string) bool {
	for _, skip := range []string{"embedding", "whisper", "tts", "dall-e", "moderation", "audio", "realtime", "image", "transcribe"} {
		if strings.Contains(id, skip) {
			return false
		}
	}
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4", "chatgpt-"} {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// Name returns the provider name.
func (p *openAICompatible) Name() string {
	return p.name
}

// Model returns the current model.
func (p *openAICompatible) Model() string {
	return p.model
}

// ListModels lists the models served by the endpoint.
func (p *openAICompatible) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}

	var models []ModelInfo
	for _, m := range list.Models {
		if p.chatModel != nil && !p.chatModel(m.ID) {
			continue
		}
		models = append(models, ModelInfo{
			ID:        m.ID,
			Name:      m.ID,
			Provider:  p.name,
			Streaming: true,
			Tools:     true,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// StreamChat streams a chat completion and assembles tool calls from their deltas.
func (p *openAICompatible) StreamChat(ctx context.Context, chat ChatRequest, chunks chan<- string) (LLMResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(chat.Messages),
		Temperature: p.temperature,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if chat.Model != "" {
		req.Model = chat.Model
	}
	if chat.Temperature != nil {
		req.Temperature = float32(*chat.Temperature)
	}
	if p.legacyMaxTokens {
		req.MaxTokens = p.maxTokens
	} else {
		req.MaxCompletionTokens = p.maxTokens
	}
	if len(chat.Tools) > 0 {
		req.Tools = convertToOpenAITools(chat.Tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	var (
		content strings.Builder
		usage   *TokenUsage
		calls   toolCallAccumulator
	)
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return LLMResponse{Content: content.String(), ToolCalls: calls.result(), Usage: usage}, nil
		}
		if err != nil {
			return LLMResponse{Content: content.String(), Usage: usage}, fmt.Errorf("stream recv failed: %w", err)
		}

		// Capture token usage from final chunk
		if response.Usage != nil {
			usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta
		for _, tc := range delta.ToolCalls {
			calls.add(tc)
		}
		if delta.Content != "" {
			content.WriteString(delta.Content)
			select {
			case chunks <- delta.Content:
			case <-ctx.Done():
				return LLMResponse{Content: content.String(), Usage: usage}, ctx.Err()
			}
		}
	}
}

// toolCallAccumulator joins streamed tool call fragments by index.
type toolCallAccumulator struct {
	order []int
	calls map[int]*ToolCall
	args  map[int]*strings.Builder
}

func (a *toolCallAccumulator) add(tc openai.ToolCall) {
	if a.calls == nil {
		a.calls = make(map[int]*ToolCall)
		a.args = make(map[int]*strings.Builder)
	}
	idx := len(a.order)
	if tc.Index != nil {
		idx = *tc.Index
	}
	call, ok := a.calls[idx]
	if !ok {
		call = &ToolCall{}
		a.calls[idx] = call
		a.args[idx] = &strings.Builder{}
		a.order = append(a.order, idx)
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	if tc.Function.Name != "" {
		call.Name = tc.Function.Name
	}
	a.args[idx].WriteString(tc.Function.Arguments)
}

func (a *toolCallAccumulator) result() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		call := *a.calls[idx]
		if args := a.args[idx].String(); args != "" {
			call.Arguments = []byte(args)
		}
		out = append(out, call)
	}
	return out
}

// convertToOpenAIMessages handles plain messages, tool calls and tool responses.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		// Handle tool calls from assistant
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}

		// Handle tool response
		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
