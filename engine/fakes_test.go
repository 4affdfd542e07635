package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/llm"
	"github.com/richinex/parley/model"
	"github.com/richinex/parley/prompt"
	"github.com/richinex/parley/tools"
)

type fakeProvider struct {
	mu        sync.Mutex
	models    []llm.ModelInfo
	listErr   error
	asks      []llm.AskOptions
	tokens    []string
	content   string
	toolCalls []model.ToolCallRecord
	err       error

	// block makes Ask wait for cancellation after streaming its tokens.
	block   bool
	started chan struct{}
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return f.models, f.listErr
}

func (f *fakeProvider) Ask(ctx context.Context, opts llm.AskOptions) (*llm.Response, error) {
	f.mu.Lock()
	f.asks = append(f.asks, opts)
	block := f.block
	f.mu.Unlock()

	for _, tok := range f.tokens {
		if opts.OnProgress != nil {
			opts.OnProgress(tok)
		}
	}
	if block {
		if f.started != nil {
			f.started <- struct{}{}
		}
		<-ctx.Done()
		return nil, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content, TokenCount: 42, TokenMaxCount: 1000, ToolCalls: f.toolCalls}, nil
}

func (f *fakeProvider) last(t *testing.T) llm.AskOptions {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.asks) == 0 {
		t.Fatal("provider was not asked")
	}
	return f.asks[len(f.asks)-1]
}

func (f *fakeProvider) setBlock(block bool) {
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()
}

type recordingSurface struct {
	mu       sync.Mutex
	statuses []string
	tokens   []string
	errs     []error
	finishes []bool
	// onFinish, when set, runs after each Finish is recorded.
	onFinish func(fresh bool)
}

func (s *recordingSurface) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, msg)
}

func (s *recordingSurface) Token(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, tok)
}

func (s *recordingSurface) Error(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSurface) Finish(fresh bool) {
	s.mu.Lock()
	s.finishes = append(s.finishes, fresh)
	s.mu.Unlock()
	if s.onFinish != nil {
		s.onFinish(fresh)
	}
}

func (s *recordingSurface) finished() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.finishes...)
}

type textArgs struct {
	Text string `json:"text"`
}

type nameArgs struct {
	Name string `json:"name"`
}

// echoTool returns "echo:<text>" and counts its calls.
func echoTool(name, agent string, calls *atomic.Int32) tools.Tool {
	return tools.Func{
		Meta: tools.Metadata{
			Name:        name,
			Description: "Echo the text back",
			Agent:       agent,
			Schema:      tools.SchemaFor(&textArgs{}),
		},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			if calls != nil {
				calls.Add(1)
			}
			text, _ := input["text"].(string)
			return []tools.Content{tools.Text("echo:" + text)}, nil
		},
	}
}

// memoryResource serves mem://{name} from data.
func memoryResource(name, agent string, data map[string]string) tools.Tool {
	return tools.Func{
		Meta: tools.Metadata{
			Name:        name,
			Description: "In-memory documents",
			Agent:       agent,
			Schema:      tools.SchemaFor(&nameArgs{}),
			URI:         "mem://{name}",
		},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			key, _ := input["name"].(string)
			body, ok := data[key]
			if !ok {
				return nil, errors.New("document not found: " + key)
			}
			return []tools.Content{{URI: "mem://" + key, Name: key, MimeType: "text/markdown", Data: body}}, nil
		},
	}
}

type harness struct {
	engine   *Engine
	provider *fakeProvider
	surface  *recordingSurface
	prompts  *prompt.Registry
	registry *tools.Registry
}

func newHarness(t *testing.T, base config.Config, toolset ...tools.Tool) *harness {
	t.Helper()

	registry := tools.NewRegistry()
	for _, tool := range toolset {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	h := &harness{
		provider: &fakeProvider{
			models:  []llm.ModelInfo{{ID: "modelY", Name: "Model Y"}, {ID: "modelZ", Name: "Model Z"}},
			tokens:  []string{"Hello", " world"},
			content: "Hello world",
		},
		surface:  &recordingSurface{},
		prompts:  prompt.NewRegistry(),
		registry: registry,
	}

	eng, err := New(Options{
		Config:   base,
		Prompts:  h.prompts,
		Tools:    registry,
		Provider: h.provider,
		Surface:  h.surface,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ids := 0
	eng.dispatcher.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	h.engine = eng
	return h
}

// constTool returns out verbatim and accepts any input.
func constTool(name, agent, out string) tools.Tool {
	return tools.Func{
		Meta: tools.Metadata{Name: name, Description: "Constant output", Agent: agent},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			return []tools.Content{tools.Text(out)}, nil
		},
	}
}

func failingTool(name, agent string) tools.Tool {
	return tools.Func{
		Meta: tools.Metadata{Name: name, Description: "Always fails", Agent: agent},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			return nil, errors.New("boom")
		},
	}
}

// bufferList is a resource without inputs.
func bufferList() tools.Tool {
	return tools.Func{
		Meta: tools.Metadata{Name: "buffers", Description: "Open buffers", URI: "mem://buffers"},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			return []tools.Content{{URI: "mem://buffers", Name: "buffers", MimeType: "text/plain", Data: "main.go\nutil.go"}}, nil
		},
	}
}

func boolPtr(b bool) *bool { return &b }
