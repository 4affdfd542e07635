// Package engine turns a raw prompt into one streamed model request.
//
// Information Hiding:
// - Resolution order: sticky lines, templates, agents, tools, model
// - The single in-flight request and its cancellation
// - History and sticky state of the session
// - Hook application (stream transform, callback, resource processor)

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/llm"
	"github.com/richinex/parley/model"
	"github.com/richinex/parley/prompt"
	"github.com/richinex/parley/tools"
)

// Provider is the model side of the engine.
type Provider interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
	// Ask returns (nil, nil) when ctx is cancelled mid-stream.
	Ask(ctx context.Context, opts llm.AskOptions) (*llm.Response, error)
}

// Options configures an Engine.
type Options struct {
	// Config is the base configuration every request starts from.
	Config   config.Config
	Prompts  *prompt.Registry
	Tools    *tools.Registry
	Executor *tools.Executor
	Provider Provider
	Surface  Surface
	Logger   *zap.Logger
}

// AskOptions are the per-request inputs besides the prompt.
type AskOptions struct {
	// Config is merged onto the base configuration.
	Config config.Config
	// Source is the editor context; nil for headless requests.
	Source model.Source
	// Selection replaces the session selection when set.
	Selection *model.Selection
	// OnProgress receives every surfaced token.
	OnProgress func(token string)
}

// Result is a completed request.
type Result struct {
	// Prompt is the fully resolved prompt that was sent.
	Prompt        string
	Content       string
	SystemPrompt  string
	Model         string
	Agents        []string
	Resources     []model.Resource
	ToolCalls     []model.ToolCallRecord
	TokenCount    int
	TokenMaxCount int
}

// Engine owns the session: history, sticky lines, selection and the single
// in-flight request.
type Engine struct {
	base       config.Config
	prompts    *prompt.Registry
	resolver   *prompt.Resolver
	tools      *tools.Registry
	dispatcher *Dispatcher
	provider   Provider
	surface    Surface
	log        *zap.Logger

	// askMu serializes cancelling the previous request with installing the next.
	askMu sync.Mutex

	mu        sync.Mutex
	history   []model.Turn
	sticky    []string
	selection *model.Selection
	inflight  *inflight
	nextID    uint64
}

type inflight struct {
	id       uint64
	cancel   context.CancelFunc
	done     chan struct{}
	headless bool
	// completed is set under Engine.mu once the turn has been finalized.
	completed bool
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, errors.New("engine: provider is required")
	}
	if opts.Prompts == nil {
		opts.Prompts = prompt.NewRegistry()
	}
	if opts.Tools == nil {
		opts.Tools = tools.NewRegistry()
	}
	if opts.Surface == nil {
		opts.Surface = NopSurface{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		base:       opts.Config,
		prompts:    opts.Prompts,
		resolver:   prompt.NewResolver(opts.Prompts),
		tools:      opts.Tools,
		dispatcher: NewDispatcher(opts.Tools, opts.Executor, opts.Logger.Named("dispatch")),
		provider:   opts.Provider,
		surface:    opts.Surface,
		log:        opts.Logger,
	}, nil
}

// Ask resolves text and streams the answer. Any request still in flight is
// cancelled first. A cancelled request returns (nil, nil).
func (e *Engine) Ask(ctx context.Context, text string, opts AskOptions) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}

	headless := config.Merge(e.base, opts.Config).IsHeadless()
	ctx, handle, stopped := e.begin(ctx, headless)
	defer e.end(handle)

	if stopped.running && !stopped.headless && !headless {
		e.surface.Finish(false)
	}

	req := e.resolve(ctx, text, opts, headless)
	if ctx.Err() != nil {
		e.log.Debug("request cancelled during resolution")
		return nil, nil
	}

	cfg := req.config
	onProgress := func(token string) {
		if cfg.StreamTransform != nil {
			var ok bool
			if token, ok = cfg.StreamTransform(token); !ok {
				return
			}
		}
		if !headless {
			e.surface.Token(token)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(token)
		}
	}

	e.log.Info("asking",
		zap.String("model", cfg.Model),
		zap.Strings("agents", req.agents),
		zap.Int("tools", len(req.tools)),
		zap.Int("resources", len(req.resources)),
		zap.Bool("headless", headless))

	resp, err := e.provider.Ask(ctx, llm.AskOptions{
		Prompt:       req.text,
		SystemPrompt: cfg.SystemPrompt,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		Tools:        req.tools,
		Resources:    req.resources,
		Selection:    req.selection,
		History:      req.history,
		OnProgress:   onProgress,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return e.failed(handle, cfg.Model, headless, err)
	}
	if resp == nil {
		e.log.Debug("request cancelled")
		return nil, nil
	}

	content := resp.Content
	if cfg.Callback != nil {
		content = cfg.Callback(content)
	}

	e.complete(handle)
	if !headless {
		if strings.TrimSpace(content) != "" {
			e.mu.Lock()
			e.history = append(e.history,
				model.UserTurn(req.text),
				model.AssistantTurn(content, resp.ToolCalls))
			e.mu.Unlock()
		}
		e.surface.Finish(false)
	}

	return &Result{
		Prompt:        req.text,
		Content:       content,
		SystemPrompt:  cfg.SystemPrompt,
		Model:         cfg.Model,
		Agents:        req.agents,
		Resources:     req.resources,
		ToolCalls:     resp.ToolCalls,
		TokenCount:    resp.TokenCount,
		TokenMaxCount: resp.TokenMaxCount,
	}, nil
}

func (e *Engine) failed(handle *inflight, modelID string, headless bool, err error) (*Result, error) {
	e.complete(handle)
	reqErr := &RequestError{Model: modelID, Err: err}
	e.log.Error("request failed", zap.String("model", modelID), zap.Error(err))
	if !headless {
		e.surface.Error(reqErr)
		e.surface.Finish(false)
	}
	return nil, reqErr
}

type stoppedRequest struct {
	running  bool
	headless bool
}

// begin cancels the request in flight, waits for it to unwind and installs
// a new one.
func (e *Engine) begin(parent context.Context, headless bool) (context.Context, *inflight, stoppedRequest) {
	e.askMu.Lock()
	defer e.askMu.Unlock()

	stopped := e.cancelInflight()

	ctx, cancel := context.WithCancel(parent)
	e.mu.Lock()
	e.nextID++
	handle := &inflight{id: e.nextID, cancel: cancel, done: make(chan struct{}), headless: headless}
	e.inflight = handle
	e.mu.Unlock()

	return ctx, handle, stopped
}

// complete marks handle as finalized, so a later cancel does not report it
// as interrupted.
func (e *Engine) complete(handle *inflight) {
	e.mu.Lock()
	handle.completed = true
	e.mu.Unlock()
}

// end clears the slot if it still holds handle and signals teardown.
func (e *Engine) end(handle *inflight) {
	handle.cancel()
	e.mu.Lock()
	if e.inflight == handle {
		e.inflight = nil
	}
	e.mu.Unlock()
	close(handle.done)
}

// cancelInflight must be called with askMu held.
func (e *Engine) cancelInflight() stoppedRequest {
	e.mu.Lock()
	current := e.inflight
	e.mu.Unlock()
	if current == nil {
		return stoppedRequest{}
	}

	current.cancel()
	<-current.done

	e.mu.Lock()
	completed := current.completed
	e.mu.Unlock()
	if completed {
		return stoppedRequest{}
	}
	return stoppedRequest{running: true, headless: current.headless}
}

// Stop cancels the request in flight and reports whether one was running.
// The interrupted turn is finalized. With reset the session is cleared and
// finalized as a fresh start whether or not anything was running.
func (e *Engine) Stop(reset bool) bool {
	e.askMu.Lock()
	stopped := e.cancelInflight()
	e.askMu.Unlock()

	if reset {
		e.mu.Lock()
		e.history = nil
		e.sticky = nil
		e.selection = nil
		e.mu.Unlock()
		e.log.Debug("session reset")
		e.surface.Finish(true)
		return stopped.running
	}

	if stopped.running && !stopped.headless {
		e.surface.Finish(false)
	}
	return stopped.running
}

// Reset stops any request and clears the session.
func (e *Engine) Reset() {
	e.Stop(true)
}

// History returns a copy of the conversation.
func (e *Engine) History() []model.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Turn(nil), e.history...)
}

// SetHistory replaces the conversation, for example after loading it.
func (e *Engine) SetHistory(history []model.Turn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append([]model.Turn(nil), history...)
}

// Sticky returns the session's sticky lines.
func (e *Engine) Sticky() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sticky...)
}

// SetSelection attaches a selection to the following requests.
func (e *Engine) SetSelection(sel *model.Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = sel
}

// Selection returns the session selection.
func (e *Engine) Selection() *model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Prompts returns the prompt registry.
func (e *Engine) Prompts() *prompt.Registry { return e.prompts }

// Tools returns the tool registry.
func (e *Engine) Tools() *tools.Registry { return e.tools }

// Models lists the models the provider offers.
func (e *Engine) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	return e.provider.ListModels(ctx)
}
