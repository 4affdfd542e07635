// LLMClient - routes requests across configured providers.
//
// Information Hiding:
// - Which provider serves which model
// - Model list caching and concurrent discovery
// - Conversion of history, resources and selection into chat messages
// - Streaming plumbing between provider and caller

package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/richinex/parley/model"
)

// AskOptions describes one streamed request.
type AskOptions struct {
	Prompt       string
	SystemPrompt string
	// Model selects the model; empty uses the first provider's default.
	Model       string
	Temperature *float64
	Tools       []ToolDefinition
	Resources   []model.Resource
	Selection   *model.Selection
	History     []model.Turn
	// OnProgress receives every streamed chunk in order.
	OnProgress func(chunk string)
}

// Response is the outcome of a completed request.
type Response struct {
	Content       string
	TokenCount    int
	TokenMaxCount int
	ToolCalls     []model.ToolCallRecord
}

// Client routes requests to the provider that serves the requested model.
type Client struct {
	providers []Provider
	log       *zap.Logger

	mu     sync.Mutex
	models []ModelInfo
	owner  map[string]Provider
}

// NewClient creates a client over the given providers.
// The first provider is the default one.
func NewClient(log *zap.Logger, providers ...Provider) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{providers: providers, log: log}
}

// Providers returns the configured providers in priority order.
func (c *Client) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

// DefaultModel returns the default provider's model.
func (c *Client) DefaultModel() string {
	if len(c.providers) == 0 {
		return ""
	}
	return c.providers[0].Model()
}

// ListModels returns the models of every provider, fetched concurrently and cached.
// A provider whose listing fails contributes its configured model only; an error
// is returned when every provider failed.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	c.mu.Lock()
	if c.models != nil {
		models := append([]ModelInfo(nil), c.models...)
		c.mu.Unlock()
		return models, nil
	}
	c.mu.Unlock()

	if len(c.providers) == 0 {
		return nil, errors.New("no providers configured")
	}

	listed := make([][]ModelInfo, len(c.providers))
	errs := make([]error, len(c.providers))

	var g errgroup.Group
	for i, p := range c.providers {
		g.Go(func() error {
			models, err := p.ListModels(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
				return nil
			}
			listed[i] = models
			return nil
		})
	}
	_ = g.Wait()

	var (
		models  []ModelInfo
		owner   = make(map[string]Provider)
		failed  []error
		success bool
	)
	for i, p := range c.providers {
		if errs[i] != nil {
			c.log.Warn("model listing failed", zap.String("provider", p.Name()), zap.Error(errs[i]))
			failed = append(failed, errs[i])
			listed[i] = []ModelInfo{{ID: p.Model(), Name: p.Model(), Provider: p.Name(), Streaming: true, Tools: true}}
		} else {
			success = true
		}
		for _, m := range listed[i] {
			if _, dup := owner[m.ID]; dup {
				continue
			}
			owner[m.ID] = p
			models = append(models, m)
		}
	}
	if !success {
		return nil, fmt.Errorf("list models: %w", errors.Join(failed...))
	}

	c.mu.Lock()
	c.models = models
	c.owner = owner
	c.mu.Unlock()

	c.log.Debug("models listed", zap.Int("count", len(models)))
	return append([]ModelInfo(nil), models...), nil
}

// Invalidate drops the cached model list.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.models = nil
	c.owner = nil
	c.mu.Unlock()
}

// Ask streams a completion. It returns (nil, nil) when ctx is cancelled
// before the response completes.
func (c *Client) Ask(ctx context.Context, opts AskOptions) (*Response, error) {
	provider, modelID, err := c.route(ctx, opts.Model)
	if err != nil {
		return nil, err
	}

	req := ChatRequest{
		Model:       modelID,
		Messages:    BuildMessages(opts),
		Tools:       opts.Tools,
		Temperature: opts.Temperature,
	}

	c.log.Debug("ask",
		zap.String("provider", provider.Name()),
		zap.String("model", modelID),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Tools)))

	chunks := make(chan string, 64)
	var (
		resp      LLMResponse
		streamErr error
	)
	go func() {
		defer close(chunks)
		resp, streamErr = provider.StreamChat(ctx, req, chunks)
	}()
	for chunk := range chunks {
		if opts.OnProgress != nil {
			opts.OnProgress(chunk)
		}
	}

	if ctx.Err() != nil {
		return nil, nil
	}
	if streamErr != nil {
		return nil, fmt.Errorf("%s: %w", provider.Name(), streamErr)
	}

	out := &Response{
		Content:       resp.Content,
		TokenMaxCount: c.contextWindow(modelID),
	}
	if resp.Usage != nil {
		out.TokenCount = int(resp.Usage.TotalTokens)
	}
	for _, tc := range resp.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCallRecord{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: string(tc.Arguments),
		})
	}
	return out, nil
}

// route picks the provider for a model id.
func (c *Client) route(ctx context.Context, modelID string) (Provider, string, error) {
	if len(c.providers) == 0 {
		return nil, "", errors.New("no providers configured")
	}
	if modelID == "" {
		return c.providers[0], c.providers[0].Model(), nil
	}
	for _, p := range c.providers {
		if p.Model() == modelID {
			return p, modelID, nil
		}
	}

	if p, ok := c.lookup(modelID); ok {
		return p, modelID, nil
	}
	if _, err := c.ListModels(ctx); err != nil {
		c.log.Debug("routing without model list", zap.Error(err))
	}
	if p, ok := c.lookup(modelID); ok {
		return p, modelID, nil
	}
	return c.providers[0], modelID, nil
}

func (c *Client) lookup(modelID string) (Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.owner[modelID]
	return p, ok
}

func (c *Client) contextWindow(modelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.models {
		if m.ID == modelID {
			return m.MaxInputTokens
		}
	}
	return 0
}
