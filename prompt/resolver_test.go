package prompt

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/model"
)

func TestResolveReviewUsesStrictSystemPrompt(t *testing.T) {
	reg := NewRegistry()
	reg.Set("review", Structured{Prompt: "Check style", Config: config.Config{SystemPrompt: "strict"}})
	reg.Set("strict", Structured{Config: config.Config{SystemPrompt: "Be strict."}})

	cfg, text := NewResolver(reg).Resolve("/review", config.Config{}, config.Config{}, nil)

	assert.Equal(t, "Check style", text)
	assert.Equal(t, "Be strict.", cfg.SystemPrompt)
}

func TestResolveDepthIsBounded(t *testing.T) {
	reg := NewRegistry()
	reg.Set("loop", Literal{Text: "again /loop"})

	_, text := NewResolver(reg).Resolve("/loop", config.Config{}, config.Config{}, nil)

	assert.Equal(t, MaxDepth, strings.Count(text, "again"))
	assert.True(t, strings.HasSuffix(text, "/loop"), "residual token expected, got %q", text)
}

func TestResolveMutualRecursionTerminates(t *testing.T) {
	reg := NewRegistry()
	reg.Set("a", Literal{Text: "/b"})
	reg.Set("b", Literal{Text: "/a"})

	_, text := NewResolver(reg).Resolve("/a", config.Config{}, config.Config{}, nil)
	assert.Equal(t, "/a", text)
}

func TestResolveNoPrefixMatch(t *testing.T) {
	reg := NewRegistry()
	reg.Set("foo", Literal{Text: "FOO"})

	_, text := NewResolver(reg).Resolve("/foobar and /foo:x and /foo", config.Config{}, config.Config{}, nil)
	assert.Equal(t, "/foobar and FOO:x and FOO", text)
}

func TestResolveUnknownStaysLiteral(t *testing.T) {
	_, text := NewResolver(nil).Resolve("see src/main.go /nothing", config.Config{}, config.Config{}, nil)
	assert.Equal(t, "see src/main.go /nothing", text)
}

func TestResolveInnerConfigWins(t *testing.T) {
	reg := NewRegistry()
	reg.Set("fast", Structured{Prompt: "Be brief. /tools", Config: config.Config{Model: "gpt-4o-mini"}})
	reg.Set("tools", Structured{Prompt: "Use tools.", Config: config.Config{Agents: []string{"files"}, Sticky: []string{"@files"}}})

	base := config.Config{Model: "gpt-4o", Temperature: config.Float(0.1), Sticky: []string{"$gpt-4o"}}
	override := config.Config{Temperature: config.Float(0.5)}

	cfg, text := NewResolver(reg).Resolve("/fast explain", base, override, nil)

	assert.Equal(t, "Be brief. Use tools. explain", text)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, []string{"files"}, cfg.Agents)
	assert.Equal(t, 0.5, cfg.TemperatureOr(0))
	assert.Equal(t, []string{"$gpt-4o", "@files"}, cfg.Sticky)
}

func TestResolveLiteralSystemPrompt(t *testing.T) {
	reg := NewRegistry()
	reg.Set("copilot", Literal{Text: "You are a helpful assistant on {OS_NAME} in {DIR}."})

	src := model.StaticSource{Dir: "/work"}
	cfg, _ := NewResolver(reg).Resolve("hi", config.Config{SystemPrompt: "copilot"}, config.Config{}, src)

	assert.Equal(t, "You are a helpful assistant on "+runtime.GOOS+" in /work.", cfg.SystemPrompt)
}

func TestResolveHeadlessLeavesDirPlaceholder(t *testing.T) {
	cfg, _ := NewResolver(nil).Resolve("hi", config.Config{SystemPrompt: "cwd={DIR} os={OS_NAME}"}, config.Config{}, nil)
	assert.Equal(t, "cwd={DIR} os="+runtime.GOOS, cfg.SystemPrompt)
}

func TestResolveSystemPromptIsOneLevel(t *testing.T) {
	reg := NewRegistry()
	reg.Set("outer", Structured{Config: config.Config{SystemPrompt: "inner"}})
	reg.Set("inner", Literal{Text: "deep"})

	cfg, _ := NewResolver(reg).Resolve("", config.Config{SystemPrompt: "outer"}, config.Config{}, nil)
	assert.Equal(t, "inner", cfg.SystemPrompt)
}

func TestFromSpecs(t *testing.T) {
	reg := FromSpecs(map[string]config.PromptSpec{
		"explain": {Text: "Explain."},
		"review": {Structured: &config.PromptFields{
			Prompt:      "Check style",
			Description: "Review code",
			Config:      config.Config{SystemPrompt: "strict"},
		}},
	})

	assert.Equal(t, []string{"explain", "review"}, reg.Names())

	e, ok := reg.Get("review")
	require.True(t, ok)
	s, ok := e.(Structured)
	require.True(t, ok)
	assert.Equal(t, "strict", s.Config.SystemPrompt)
	assert.Equal(t, "Review code", e.Summary())

	e, ok = reg.Get("explain")
	require.True(t, ok)
	assert.Equal(t, Literal{Text: "Explain."}, e)
}
