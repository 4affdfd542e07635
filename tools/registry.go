// Tool registry.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Registration order bookkeeping hidden
// - Agent grouping abstracted

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Default timeout and file size constants for tools.
const (
	DefaultToolTimeout = 30          // seconds
	DefaultMaxFileSize = 1024 * 1024 // 1MB
)

// Registry holds the available tools in registration order.
// Registration order decides which resource wins when several URI
// templates match the same reference.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// All returns the tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []Metadata {
	all := r.All()
	metadata := make([]Metadata, 0, len(all))
	for _, tool := range all {
		metadata = append(metadata, tool.Metadata())
	}
	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Name < metadata[j].Name })
	return metadata
}

// Agents returns the distinct agent tags in sorted order.
func (r *Registry) Agents() []string {
	seen := map[string]bool{}
	var agents []string
	for _, tool := range r.All() {
		agent := tool.Metadata().Agent
		if agent != "" && !seen[agent] {
			seen[agent] = true
			agents = append(agents, agent)
		}
	}
	sort.Strings(agents)
	return agents
}

// IsAgent reports whether name is an agent tag or a tool name. Naming a
// tool directly with @ enables just that tool.
func (r *Registry) IsAgent(name string) bool {
	for _, tool := range r.All() {
		meta := tool.Metadata()
		if meta.Agent == name || meta.Name == name {
			return true
		}
	}
	return false
}

// Enabled returns the tools enabled by agents, in registration order.
// A tool is enabled when its agent tag or its own name is listed.
func (r *Registry) Enabled(agents []string) []Tool {
	if len(agents) == 0 {
		return nil
	}
	want := make(map[string]bool, len(agents))
	for _, a := range agents {
		want[a] = true
	}
	var out []Tool
	for _, tool := range r.All() {
		meta := tool.Metadata()
		if (meta.Agent != "" && want[meta.Agent]) || want[meta.Name] {
			out = append(out, tool)
		}
	}
	return out
}

// Resources returns the resource tools in registration order.
func (r *Registry) Resources() []Tool {
	var out []Tool
	for _, tool := range r.All() {
		if tool.Metadata().Kind() == Resource {
			out = append(out, tool)
		}
	}
	return out
}

// Description returns a formatted description of all tools.
func (r *Registry) Description() string {
	var descriptions []string
	for _, meta := range r.List() {
		line := fmt.Sprintf("Tool: %s (%s)\nDescription: %s", meta.Name, meta.Kind(), meta.Description)
		if meta.Agent != "" {
			line += "\nAgent: @" + meta.Agent
		}
		if meta.URI != "" {
			line += "\nURI: " + meta.URI
		}
		descriptions = append(descriptions, line)
	}
	return strings.Join(descriptions, "\n\n")
}

// Agent tags of the builtin tools.
const (
	FilesAgent = "files"
	ShellAgent = "shell"
)

// Options configures the builtin tools.
type Options struct {
	TimeoutSecs     uint64
	AllowedPaths    []string
	AllowedCommands []string
	AllowedDomains  []string
}

// WithDefaults creates a registry with the builtin host tools.
// Returns error if any tool registration fails.
func WithDefaults(opts Options) (*Registry, error) {
	timeout := opts.TimeoutSecs
	if timeout == 0 {
		timeout = DefaultToolTimeout
	}

	registry := NewRegistry()
	builtins := []Tool{
		NewReadFileTool(DefaultMaxFileSize).WithAllowedPaths(opts.AllowedPaths),
		NewGlobTool(AbsoluteGlobMaxResults),
		NewRipgrepTool(timeout),
		NewShellTool(timeout).WithAllowedCommands(opts.AllowedCommands),
		NewHTTPTool(timeout).WithAllowedDomains(opts.AllowedDomains),
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}

	return registry, nil
}
