package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/richinex/parley/engine"
	"github.com/richinex/parley/llm"
	"github.com/richinex/parley/model"
	"github.com/richinex/parley/prompt"
	"github.com/richinex/parley/storage"
	"github.com/richinex/parley/tools"
)

type echoProvider struct{}

func (echoProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai"}}, nil
}

func (echoProvider) Ask(ctx context.Context, opts llm.AskOptions) (*llm.Response, error) {
	answer := "you said: " + opts.Prompt
	if opts.OnProgress != nil {
		opts.OnProgress(answer)
	}
	return &llm.Response{Content: answer, TokenCount: 3}, nil
}

func newTestHost(t *testing.T) (*Host, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	out := newLockedWriter(&buf)

	prompts := prompt.NewRegistry()
	prompts.Set("review", prompt.Literal{Text: "Review carefully"})

	registry := tools.NewRegistry()
	err := registry.Register(tools.Func{
		Meta: tools.Metadata{Name: "clock", Description: "Current time", Agent: "util"},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			return []tools.Content{tools.Text("noon")}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	eng, err := engine.New(engine.Options{
		Prompts:  prompts,
		Tools:    registry,
		Provider: echoProvider{},
		Surface:  NewTerminal(out),
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	return NewHost(eng, storage.NewInMemoryStorage(), "test", out), &buf
}

func TestAskInteractiveSavesHistory(t *testing.T) {
	h, buf := newTestHost(t)
	ctx := context.Background()

	if err := Ask(ctx, h, "@util #clock what time is it", false); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "[Running tool: clock]") {
		t.Errorf("expected tool status in output, got %q", output)
	}
	if !strings.Contains(output, "noon") {
		t.Errorf("expected tool output echoed back, got %q", output)
	}

	saved, err := h.Store.Load(ctx, "test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved turns, got %d", len(saved))
	}
}

func TestAskHeadless(t *testing.T) {
	h, buf := newTestHost(t)
	ctx := context.Background()

	if err := Ask(ctx, h, "hello", true); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if got := buf.String(); got != "you said: hello\n" {
		t.Errorf("unexpected output %q", got)
	}
	if exists, _ := h.Store.Exists(ctx, "test"); exists {
		t.Error("headless ask should not save history")
	}
}

func TestAskEmptyPrompt(t *testing.T) {
	h, _ := newTestHost(t)
	if err := Ask(context.Background(), h, "   ", false); err == nil {
		t.Error("expected error for empty prompt")
	}
}

func TestChat(t *testing.T) {
	h, buf := newTestHost(t)
	ctx := context.Background()

	if err := Chat(ctx, h, strings.NewReader("> @util\nfirst\n")); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	history := h.Engine.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Content != "first" {
		t.Errorf("expected sticky line stripped, got %q", history[0].Content)
	}
	if got := h.Engine.Sticky(); len(got) != 1 || got[0] != "@util" {
		t.Errorf("expected sticky @util, got %v", got)
	}
	if !strings.Contains(buf.String(), "Chat session 'test'") {
		t.Errorf("missing banner in %q", buf.String())
	}
}

func TestChatCommands(t *testing.T) {
	h, buf := newTestHost(t)
	ctx := context.Background()
	h.Engine.SetHistory([]model.Turn{model.UserTurn("earlier"), model.AssistantTurn("answer", nil)})

	input := ":history\n:stop\n:bogus\n:reset\nexit\nignored\n"
	if err := Chat(ctx, h, strings.NewReader(input)); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Resuming session 'test' (2 turns)",
		"user: earlier",
		"assistant: answer",
		"Nothing running.",
		`unknown command ":bogus"`,
		"--- new session ---",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if len(h.Engine.History()) != 0 {
		t.Error("expected :reset to clear history")
	}
}

func TestListPromptsAndTools(t *testing.T) {
	h, buf := newTestHost(t)

	ListPrompts(h)
	ListTools(h, false)

	output := buf.String()
	for _, want := range []string{"/review", "Review carefully", "#clock (action)", "agent: @util"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestListModels(t *testing.T) {
	h, buf := newTestHost(t)

	if err := ListModels(context.Background(), h); err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if !strings.Contains(buf.String(), "$gpt-4o") {
		t.Errorf("expected model in output, got %q", buf.String())
	}
}

func TestHistoryShowAndClear(t *testing.T) {
	h, buf := newTestHost(t)
	ctx := context.Background()

	if err := Ask(ctx, h, "remember this", false); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	buf.Reset()

	if err := ShowHistory(ctx, h); err != nil {
		t.Fatalf("ShowHistory failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Sessions: test") || !strings.Contains(buf.String(), "user: remember this") {
		t.Errorf("unexpected history output %q", buf.String())
	}

	if err := ClearHistory(ctx, h); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	if exists, _ := h.Store.Exists(ctx, "test"); exists {
		t.Error("expected session deleted")
	}
	if len(h.Engine.History()) != 0 {
		t.Error("expected engine history cleared")
	}
}

func TestCompleteJSON(t *testing.T) {
	h, buf := newTestHost(t)

	if err := Complete(context.Background(), h, "/re", true); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	var got []engine.Candidate
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if len(got) != 1 || got[0].Word != "/review" {
		t.Errorf("unexpected candidates %+v", got)
	}

	buf.Reset()
	if err := Complete(context.Background(), h, "nothing", true); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestPrintConfigSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintConfigSchema(&buf); err != nil {
		t.Fatalf("PrintConfigSchema failed: %v", err)
	}
	if !strings.Contains(buf.String(), "prompts") {
		t.Errorf("schema missing prompts: %s", buf.String())
	}
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Token("Hello")
	term.Status("Running tool: x")
	term.Token("done")
	term.Finish(false)
	term.Finish(true)

	want := "Hello\n[Running tool: x]\ndone\n--- new session ---\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProviderName(t *testing.T) {
	t.Setenv("PARLEY_PROVIDER", "")
	if got := providerName("claude"); got != "claude" {
		t.Errorf("explicit provider ignored: %q", got)
	}
	t.Setenv("PARLEY_PROVIDER", "gemini")
	if got := providerName(""); got != "gemini" {
		t.Errorf("PARLEY_PROVIDER ignored: %q", got)
	}
}

