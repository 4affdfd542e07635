package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinex/parley/model"
	"github.com/richinex/parley/tools"
)

func newTestDispatcher(t *testing.T, toolset ...tools.Tool) (*Dispatcher, *tools.Registry) {
	t.Helper()
	registry := tools.NewRegistry()
	for _, tool := range toolset {
		require.NoError(t, registry.Register(tool))
	}
	d := NewDispatcher(registry, nil, zap.NewNop())
	d.newID = func() string { return "fixed" }
	return d, registry
}

func TestDispatchDoesNotRescanToolOutput(t *testing.T) {
	d, registry := newTestDispatcher(t,
		constTool("leak", "a", "#echo literal"),
		constTool("echo", "a", "echoed"),
	)

	out := d.Dispatch(context.Background(), DispatchRequest{
		Text:    "#leak then #echo",
		Enabled: registry.Enabled([]string{"a"}),
	})

	assert.Equal(t,
		"```text tool=leak id=fixed\n#echo literal\n``` then ```text tool=echo id=fixed\nechoed\n```",
		out.Text)
	assert.Empty(t, out.Errors)
}

func TestDispatchSkipsLiteralQuotedReference(t *testing.T) {
	d, registry := newTestDispatcher(t, constTool("a", "off", "A"), constTool("b", "on", "B"))

	out := d.Dispatch(context.Background(), DispatchRequest{
		Text:    "#a:`run #b now` #b",
		Enabled: registry.Enabled([]string{"on"}),
	})

	assert.Equal(t, "#a:`run #b now` ```text tool=b id=fixed\nB\n```", out.Text)
}

func TestDispatchReportsInsertedSpans(t *testing.T) {
	d, registry := newTestDispatcher(t, constTool("one", "a", "1"), constTool("two", "a", "2"))

	out := d.Dispatch(context.Background(), DispatchRequest{
		Text:    "x #one y #two z",
		Enabled: registry.Enabled([]string{"a"}),
	})

	require.Len(t, out.Inserted, 2)
	assert.Equal(t, "```text tool=one id=fixed\n1\n```", out.Text[out.Inserted[0].Start:out.Inserted[0].End])
	assert.Equal(t, "```text tool=two id=fixed\n2\n```", out.Text[out.Inserted[1].Start:out.Inserted[1].End])
	assert.True(t, strings.HasSuffix(out.Text, " z"))
}

func TestDispatchDefaultExecutorHasNoDeadline(t *testing.T) {
	var hasDeadline atomic.Bool
	slow := tools.Func{
		Meta: tools.Metadata{Name: "slow", Agent: "a"},
		Fn: func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
			_, ok := ctx.Deadline()
			hasDeadline.Store(ok)
			return []tools.Content{tools.Text("done")}, nil
		},
	}
	d, registry := newTestDispatcher(t, slow)

	out := d.Dispatch(context.Background(), DispatchRequest{
		Text:    "#slow go",
		Enabled: registry.Enabled([]string{"a"}),
	})

	require.Empty(t, out.Errors)
	assert.False(t, hasDeadline.Load())
}

func TestDispatchReportsStatusPerInvocation(t *testing.T) {
	d, registry := newTestDispatcher(t, constTool("one", "a", "1"), constTool("two", "a", "2"))
	var statuses []string

	d.Dispatch(context.Background(), DispatchRequest{
		Text:    "#two #one #two #missing",
		Enabled: registry.Enabled([]string{"a"}),
		Status:  func(msg string) { statuses = append(statuses, msg) },
	})

	assert.Equal(t, []string{"Running tool: two", "Running tool: one"}, statuses)
}

func TestDispatchRequiresEnabledTool(t *testing.T) {
	d, _ := newTestDispatcher(t, constTool("one", "a", "1"))

	out := d.Dispatch(context.Background(), DispatchRequest{Text: "#one please"})
	assert.Equal(t, "#one please", out.Text)
}

func TestDispatchResume(t *testing.T) {
	calls := []model.ToolCallRecord{
		{ID: "c1", Name: "tool1", Arguments: `{"text":"from history"}`},
		{ID: "c2", Name: "tool1", Arguments: `not json`},
	}

	t.Run("uses stored arguments", func(t *testing.T) {
		d, registry := newTestDispatcher(t, echoTool("tool1", "a", nil))
		out := d.Dispatch(context.Background(), DispatchRequest{
			Text:    "#tool1:c1",
			Enabled: registry.Enabled([]string{"a"}),
			Calls:   calls,
		})
		assert.Equal(t, "```text tool=tool1 id=c1\necho:from history\n```", out.Text)
	})

	t.Run("malformed arguments become empty input", func(t *testing.T) {
		d, registry := newTestDispatcher(t, echoTool("tool1", "a", nil))
		out := d.Dispatch(context.Background(), DispatchRequest{
			Text:    "#tool1:c2",
			Enabled: registry.Enabled([]string{"a"}),
			Calls:   calls,
		})
		require.Len(t, out.Errors, 1)
		assert.Equal(t, "c2", out.Errors[0].ID)
		assert.Contains(t, out.Text, "```error tool=tool1 id=c2\n")
	})

	t.Run("disabled tool stays literal", func(t *testing.T) {
		d, _ := newTestDispatcher(t, echoTool("tool1", "a", nil))
		out := d.Dispatch(context.Background(), DispatchRequest{Text: "#tool1:c1", Calls: calls})
		assert.Equal(t, "#tool1:c1", out.Text)
	})

	t.Run("unknown id is fresh input", func(t *testing.T) {
		d, registry := newTestDispatcher(t, echoTool("tool1", "a", nil))
		out := d.Dispatch(context.Background(), DispatchRequest{
			Text:    "#tool1:c9",
			Enabled: registry.Enabled([]string{"a"}),
			Calls:   calls,
		})
		assert.Equal(t, "```text tool=tool1 id=fixed\necho:c9\n```", out.Text)
	})
}

func TestDispatchURIFallbackPrefersFirstRegistered(t *testing.T) {
	d, _ := newTestDispatcher(t,
		memoryResource("first", "", map[string]string{"x": "from first"}),
		memoryResource("second", "", map[string]string{"x": "from second"}),
	)

	out := d.Dispatch(context.Background(), DispatchRequest{Text: "##mem://x"})
	require.Len(t, out.Resources, 1)
	assert.Equal(t, "from first", out.Resources[0].Data)
	assert.Empty(t, out.Sticky)
}

func TestDispatchParseErrorRendersErrorBlock(t *testing.T) {
	d, registry := newTestDispatcher(t, echoTool("tool1", "a", nil))

	out := d.Dispatch(context.Background(), DispatchRequest{
		Text:    "#tool1:`{\"text\": 5}` go",
		Enabled: registry.Enabled([]string{"a"}),
	})
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "tool1", out.Errors[0].Tool)
	assert.Contains(t, out.Text, "```error tool=tool1 id=fixed\n")
	assert.Contains(t, out.Text, "``` go")
}

func TestStoredArguments(t *testing.T) {
	assert.Equal(t, map[string]any{}, storedArguments(""))
	assert.Equal(t, map[string]any{}, storedArguments("null"))
	assert.Equal(t, map[string]any{}, storedArguments("[1,2]"))
	assert.Equal(t, map[string]any{"a": "b"}, storedArguments(`{"a":"b"}`))
}

func TestFence(t *testing.T) {
	assert.Equal(t, "```go tool=t id=1\nx := 1\n```", fence("go", "t", "1", "x := 1\n\n"))
}
