// Package tools provides the tools a prompt can reference.
//
// A tool is either an Action, run when its agent is enabled for a turn,
// or a Resource, which declares a URI template and produces addressable
// content that can be referenced directly as ##uri.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Input schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/richinex/parley/model"
)

// Kind distinguishes the two tool variants.
type Kind int

const (
	// Action tools run only when enabled through their agent.
	Action Kind = iota
	// Resource tools declare a URI template and can be referenced directly.
	Resource
)

func (k Kind) String() string {
	if k == Resource {
		return "resource"
	}
	return "action"
}

// Metadata describes what a tool does and how to call it.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Agent groups tools; @agent enables every tool carrying the tag.
	Agent string `json:"agent,omitempty"`
	// Schema is the JSON Schema of the tool input, nil when the tool
	// takes no input.
	Schema json.RawMessage `json:"schema,omitempty"`
	// URI is a URI template such as file://{+path}. Set only on
	// resource tools.
	URI string `json:"uri,omitempty"`
}

// Kind reports the tool variant.
func (m Metadata) Kind() Kind {
	if m.URI != "" {
		return Resource
	}
	return Action
}

// String returns a string representation of the tool metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Content is one item produced by a tool. Items with a URI are resources;
// the rest are inline output.
type Content struct {
	URI      string `json:"uri,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Data     string `json:"data"`
}

// IsResource reports whether the item is addressable content.
func (c Content) IsResource() bool {
	return c.URI != ""
}

// Resource converts the item to a model.Resource.
func (c Content) Resource() model.Resource {
	return model.Resource{URI: c.URI, Name: c.Name, MimeType: c.MimeType, Data: c.Data}
}

// Text creates an inline text item.
func Text(data string) Content {
	return Content{Data: data, MimeType: "text/plain"}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution logic,
// data structures, and error handling strategies behind this interface.
type Tool interface {
	// Metadata returns tool metadata (name, agent, schema, uri).
	Metadata() Metadata

	// Resolve runs the tool with parsed input. src is nil for headless
	// requests; prompt is the full prompt text the reference came from.
	Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error)
}

// Func adapts a function to the Tool interface.
type Func struct {
	Meta Metadata
	Fn   func(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error)
}

// Metadata returns the tool metadata.
func (f Func) Metadata() Metadata { return f.Meta }

// Resolve calls Fn.
func (f Func) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	return f.Fn(ctx, input, src, prompt)
}

// Config holds tool execution configuration.
// A zero TimeoutSecs applies no deadline beyond the caller's context.
// Retries default to 1.
type Config struct {
	TimeoutSecs uint64
	MaxRetries  uint32
}

// Timeout returns the configured per-attempt timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Retries returns the configured attempts, defaulting to 1 if zero.
func (c *Config) Retries() uint32 {
	if c == nil || c.MaxRetries == 0 {
		return 1
	}
	return c.MaxRetries
}

// workDir returns the directory relative paths resolve against.
func workDir(src model.Source) string {
	if src == nil || src.CWD() == "" {
		return "."
	}
	return src.CWD()
}

// resolvePath anchors a relative path at the source directory.
func resolvePath(path string, src model.Source) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir(src), path)
}

// pathAllowed checks if a path is within the allowed paths.
// If allowedPaths is empty, all paths are allowed.
func pathAllowed(path string, allowedPaths []string) bool {
	if len(allowedPaths) == 0 {
		return true
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, allowed := range allowedPaths {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if absPath == allowedAbs || strings.HasPrefix(absPath, allowedAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// stringArg reads a string input value.
func stringArg(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an integer input value. JSON numbers arrive as float64.
func intArg(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// boolArg reads a boolean input value.
func boolArg(input map[string]any, key string) (bool, bool) {
	v, ok := input[key].(bool)
	return v, ok
}

// stringsArg reads a string list input value.
func stringsArg(input map[string]any, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}
