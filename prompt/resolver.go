package prompt

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/model"
)

// MaxDepth bounds /name expansion. Tokens still present at the ceiling
// are left in the text.
const MaxDepth = 10

const (
	osNamePlaceholder = "{OS_NAME}"
	dirPlaceholder    = "{DIR}"
)

// templatePattern matches /name where name stops at whitespace or a colon.
var templatePattern = regexp.MustCompile(`/[^\s:]+`)

// Resolver expands prompt templates.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver over registry. A nil registry resolves
// nothing.
func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{registry: registry}
}

// Resolve merges override onto base, expands /name templates in text and
// resolves the system prompt. src may be nil for headless requests, in
// which case {DIR} is left in place.
func (r *Resolver) Resolve(text string, base, override config.Config, src model.Source) (config.Config, string) {
	entries := r.registry.snapshot()

	cfg, out := expand(entries, config.Merge(base, override), text, 0)

	if e, ok := entries[cfg.SystemPrompt]; ok {
		if sys := e.SystemText(); sys != "" {
			cfg.SystemPrompt = sys
		}
	}
	cfg.SystemPrompt = substitutePlaceholders(cfg.SystemPrompt, src)

	return cfg, out
}

func expand(entries map[string]Entry, cfg config.Config, text string, depth int) (config.Config, string) {
	if depth >= MaxDepth {
		return cfg, text
	}

	out := templatePattern.ReplaceAllStringFunc(text, func(token string) string {
		e, ok := entries[token[1:]]
		if !ok {
			return token
		}
		inner, body := expand(entries, e.Settings(), e.Body(), depth+1)
		cfg = config.Merge(cfg, inner)
		return body
	})
	return cfg, out
}

func substitutePlaceholders(s string, src model.Source) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, osNamePlaceholder, runtime.GOOS)
	if src != nil {
		s = strings.ReplaceAll(s, dirPlaceholder, src.CWD())
	}
	return s
}
