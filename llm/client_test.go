package llm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/richinex/parley/model"
)

type fakeProvider struct {
	name    string
	model   string
	models  []ModelInfo
	listErr error
	lists   atomic.Int32

	chunks []string
	resp   LLMResponse
	err    error
	// block waits for cancellation after the first chunk
	block bool
	last  ChatRequest
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	f.lists.Add(1)
	return f.models, f.listErr
}

func (f *fakeProvider) StreamChat(ctx context.Context, req ChatRequest, chunks chan<- string) (LLMResponse, error) {
	f.last = req
	for _, c := range f.chunks {
		select {
		case chunks <- c:
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
		if f.block {
			<-ctx.Done()
			return LLMResponse{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

func TestClientListModelsAggregatesAndCaches(t *testing.T) {
	a := &fakeProvider{name: "a", model: "a-1", models: []ModelInfo{{ID: "a-1", Provider: "a"}, {ID: "shared", Provider: "a"}}}
	b := &fakeProvider{name: "b", model: "b-1", models: []ModelInfo{{ID: "b-1", Provider: "b"}, {ID: "shared", Provider: "b"}}}
	client := NewClient(nil, a, b)

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	if strings.Join(ids, ",") != "a-1,shared,b-1" {
		t.Errorf("unexpected models: %v", ids)
	}
	if models[1].Provider != "a" {
		t.Errorf("first provider should own duplicate ids, got %q", models[1].Provider)
	}

	if _, err := client.ListModels(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a.lists.Load() != 1 || b.lists.Load() != 1 {
		t.Errorf("expected cached listing, got %d/%d calls", a.lists.Load(), b.lists.Load())
	}

	client.Invalidate()
	_, _ = client.ListModels(context.Background())
	if a.lists.Load() != 2 {
		t.Errorf("expected relisting after Invalidate, got %d", a.lists.Load())
	}
}

func TestClientListModelsPartialFailure(t *testing.T) {
	a := &fakeProvider{name: "a", model: "a-1", listErr: errors.New("unauthorized")}
	b := &fakeProvider{name: "b", model: "b-1", models: []ModelInfo{{ID: "b-2", Provider: "b"}}}
	client := NewClient(nil, a, b)

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(models) != 2 || models[0].ID != "a-1" || models[1].ID != "b-2" {
		t.Errorf("expected configured model as fallback, got %+v", models)
	}
}

func TestClientListModelsAllFail(t *testing.T) {
	a := &fakeProvider{name: "a", listErr: errors.New("down")}
	client := NewClient(nil, a)

	if _, err := client.ListModels(context.Background()); err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("expected joined error, got %v", err)
	}
}

func TestClientAskStreamsAndRecordsToolCalls(t *testing.T) {
	p := &fakeProvider{
		name:   "a",
		model:  "a-1",
		chunks: []string{"he", "llo"},
		resp: LLMResponse{
			Content:   "hello",
			ToolCalls: []ToolCall{{ID: "c1", Name: "grep", Arguments: []byte(`{"pattern":"x"}`)}},
			Usage:     &TokenUsage{TotalTokens: 12},
		},
	}
	client := NewClient(nil, p)

	var streamed []string
	resp, err := client.Ask(context.Background(), AskOptions{
		Prompt:       "hi",
		SystemPrompt: "be brief",
		OnProgress:   func(c string) { streamed = append(streamed, c) },
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if strings.Join(streamed, "|") != "he|llo" {
		t.Errorf("unexpected progress: %v", streamed)
	}
	if resp.Content != "hello" || resp.TokenCount != 12 {
		t.Errorf("unexpected response: %+v", resp)
	}
	want := model.ToolCallRecord{ID: "c1", Name: "grep", Arguments: `{"pattern":"x"}`}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0] != want {
		t.Errorf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if p.last.Model != "a-1" {
		t.Errorf("expected default model, got %q", p.last.Model)
	}
}

func TestClientAskRoutesByModel(t *testing.T) {
	a := &fakeProvider{name: "a", model: "a-1"}
	b := &fakeProvider{name: "b", model: "b-1", models: []ModelInfo{{ID: "b-big", Provider: "b", MaxInputTokens: 1000}}}
	client := NewClient(nil, a, b)

	resp, err := client.Ask(context.Background(), AskOptions{Prompt: "hi", Model: "b-big"})
	if err != nil {
		t.Fatal(err)
	}
	if b.last.Model != "b-big" {
		t.Errorf("expected b to serve b-big, got %q", b.last.Model)
	}
	if resp.TokenMaxCount != 1000 {
		t.Errorf("expected context window from listing, got %d", resp.TokenMaxCount)
	}

	if _, err := client.Ask(context.Background(), AskOptions{Prompt: "hi", Model: "unknown"}); err != nil {
		t.Fatal(err)
	}
	if a.last.Model != "unknown" {
		t.Errorf("unknown models should fall back to the default provider, got %q", a.last.Model)
	}
}

func TestClientAskCancelledReturnsNil(t *testing.T) {
	p := &fakeProvider{name: "a", model: "a-1", chunks: []string{"partial"}, block: true}
	client := NewClient(nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := client.Ask(ctx, AskOptions{
		Prompt:     "hi",
		OnProgress: func(string) { cancel() },
	})
	if resp != nil || err != nil {
		t.Errorf("expected (nil, nil) on cancellation, got (%v, %v)", resp, err)
	}
}

func TestClientAskWrapsProviderError(t *testing.T) {
	p := &fakeProvider{name: "a", model: "a-1", err: errors.New("overloaded")}
	client := NewClient(nil, p)

	_, err := client.Ask(context.Background(), AskOptions{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "a: overloaded") {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestBuildMessagesLayout(t *testing.T) {
	messages := BuildMessages(AskOptions{
		SystemPrompt: "sys",
		History: []model.Turn{
			model.UserTurn("q1"),
			model.AssistantTurn("a1", []model.ToolCallRecord{{ID: "c1", Name: "grep", Arguments: `{"pattern":"x"}`}}),
		},
		Resources: []model.Resource{{URI: "file:///a/main.go", MimeType: "text/x-go", Data: "package main\n"}},
		Selection: &model.Selection{Filename: "main.go", Filetype: "go", StartLine: 1, EndLine: 2, Content: "x := 1"},
		Prompt:    "explain",
	})

	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.Role
	}
	if strings.Join(roles, ",") != "system,user,assistant,user,user,user" {
		t.Fatalf("unexpected layout: %v", roles)
	}
	if !strings.Contains(messages[2].Content, "#grep:c1") {
		t.Errorf("assistant turn should mention its tool call: %q", messages[2].Content)
	}
	if !strings.Contains(messages[3].Content, "```go\npackage main\n```") {
		t.Errorf("unexpected resource message: %q", messages[3].Content)
	}
	if !strings.HasPrefix(messages[4].Content, "Selection from main.go lines 1-2:") {
		t.Errorf("unexpected selection message: %q", messages[4].Content)
	}
	if messages[5].Content != "explain" {
		t.Errorf("prompt should come last, got %q", messages[5].Content)
	}
}

func TestNewToolDefinition(t *testing.T) {
	def, err := NewToolDefinition("grep", "search", []byte(`{"type":"object","required":["pattern"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Parameters["type"] != "object" {
		t.Errorf("unexpected parameters: %v", def.Parameters)
	}

	empty, err := NewToolDefinition("noop", "", nil)
	if err != nil || empty.Parameters["type"] != "object" {
		t.Errorf("empty schema should become an object: %v %v", empty.Parameters, err)
	}

	if _, err := NewToolDefinition("bad", "", []byte("{")); err == nil {
		t.Error("expected error for invalid schema")
	}
}
