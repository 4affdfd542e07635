// Package prompt expands /name prompt templates against a named registry.
//
// Information Hiding:
// - Template tokenization hidden
// - Recursion bookkeeping hidden
// - Placeholder substitution hidden
package prompt

import (
	"sort"
	"sync"

	"github.com/richinex/parley/config"
)

// Entry is a prompt registry entry: Literal or Structured.
type Entry interface {
	// Body is the template text expanded in place of /name.
	Body() string
	// Settings is the configuration the entry contributes when expanded.
	Settings() config.Config
	// SystemText is the text used when another config names this entry
	// as its system prompt.
	SystemText() string
	// Summary is a one-line description for listings.
	Summary() string
}

// Literal is a bare template string.
type Literal struct {
	Text string
}

func (l Literal) Body() string            { return l.Text }
func (l Literal) Settings() config.Config { return config.Config{} }
func (l Literal) SystemText() string      { return l.Text }
func (l Literal) Summary() string         { return firstLine(l.Text) }

// Structured is a template with its own configuration overrides.
// Mapping is a host key-binding hint and is not interpreted here.
type Structured struct {
	Prompt      string
	Description string
	Mapping     string
	Config      config.Config
}

func (s Structured) Body() string            { return s.Prompt }
func (s Structured) Settings() config.Config { return s.Config }
func (s Structured) SystemText() string      { return s.Config.SystemPrompt }

func (s Structured) Summary() string {
	if s.Description != "" {
		return s.Description
	}
	if s.Prompt != "" {
		return firstLine(s.Prompt)
	}
	return firstLine(s.Config.SystemPrompt)
}

// Registry maps prompt names to entries. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// FromSpecs builds a registry from config file entries.
func FromSpecs(specs map[string]config.PromptSpec) *Registry {
	r := NewRegistry()
	for name, spec := range specs {
		if spec.Structured != nil {
			r.Set(name, Structured{
				Prompt:      spec.Structured.Prompt,
				Description: spec.Structured.Description,
				Mapping:     spec.Structured.Mapping,
				Config:      spec.Structured.Config,
			})
			continue
		}
		r.Set(name, Literal{Text: spec.Text})
	}
	return r
}

// Set registers or replaces an entry.
func (r *Registry) Set(name string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = e
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot copies the entry map so a resolution pass sees a stable view.
func (r *Registry) snapshot() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
