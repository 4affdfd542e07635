package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/parley/model"
	"github.com/richinex/parley/reference"
	"github.com/richinex/parley/tools"
)

// Dispatcher resolves #tool and ##resource references in prompt text and
// substitutes their output.
type Dispatcher struct {
	registry *tools.Registry
	executor *tools.Executor
	log      *zap.Logger
	newID    func() string
}

// NewDispatcher creates a dispatcher over registry. A nil executor runs
// tools once with no deadline beyond the request context.
func NewDispatcher(registry *tools.Registry, executor *tools.Executor, log *zap.Logger) *Dispatcher {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if executor == nil {
		executor = tools.NewDefaultExecutor()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{registry: registry, executor: executor, log: log, newID: uuid.NewString}
}

// DispatchRequest is one resolution pass.
type DispatchRequest struct {
	Text string
	// Enabled are the tools enabled by the @agents of this turn.
	Enabled []tools.Tool
	// Calls are the tool calls recorded in history, oldest first.
	Calls  []model.ToolCallRecord
	Source model.Source
	// Status receives "Running tool: <name>" before each invocation.
	Status func(msg string)
}

// Dispatched is the outcome of a pass.
type Dispatched struct {
	Text      string
	Resources []model.Resource
	// Sticky holds ##uri lines produced by resumed calls.
	Sticky []string
	Errors []*ToolError
	// Inserted are the spans of Text holding substituted output.
	Inserted []reference.Span
}

// invocation is a reference bound to a tool.
type invocation struct {
	tool tools.Tool
	name string
	id   string
	// raw is parsed against the schema unless input is already bound.
	raw     string
	input   map[string]any
	bound   bool
	resumed bool
}

// Dispatch resolves every reference in first-occurrence order. Each
// distinct pattern is substituted once, at the offset where it was scanned.
// Unresolved references stay literal.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) Dispatched {
	enabled := make(map[string]tools.Tool, len(req.Enabled))
	for _, t := range req.Enabled {
		enabled[t.Metadata().Name] = t
	}

	out := Dispatched{Text: req.Text}
	// delta tracks how far substitutions have shifted later offsets.
	delta := 0
	for _, ref := range reference.ScanTools(req.Text).Values() {
		inv, ok := d.bind(ref, enabled, req.Calls)
		if !ok {
			d.log.Debug("reference left literal", zap.String("pattern", ref.Pattern))
			continue
		}

		if req.Status != nil {
			req.Status("Running tool: " + inv.name)
		}
		replacement := d.invoke(ctx, inv, req, &out)

		at := ref.Start + delta
		text, replaced := reference.ReplaceAt(out.Text, at, ref.Pattern, replacement)
		if !replaced {
			continue
		}
		out.Text = text
		out.Inserted = append(out.Inserted, reference.Span{Start: at, End: at + len(replacement)})
		delta += len(replacement) - len(ref.Pattern)
	}
	return out
}

// bind applies the precedence: resume, enabled tool, direct resource,
// URI template fallback.
func (d *Dispatcher) bind(ref reference.ToolRef, enabled map[string]tools.Tool, calls []model.ToolCallRecord) (invocation, bool) {
	name := ref.Name

	if ref.HasInput() {
		id := strings.TrimSpace(*ref.Input)
		for _, call := range calls {
			if call.Name != name || call.ID != id {
				continue
			}
			tool, ok := enabled[name]
			if !ok {
				return invocation{}, false
			}
			return invocation{
				tool:    tool,
				name:    name,
				id:      call.ID,
				input:   storedArguments(call.Arguments),
				bound:   true,
				resumed: true,
			}, true
		}
	}

	if tool, ok := enabled[name]; ok {
		return invocation{tool: tool, name: name, raw: ref.InputOrEmpty()}, true
	}
	if tool, ok := d.registry.Get(name); ok && tool.Metadata().Kind() == tools.Resource {
		return invocation{tool: tool, name: name, raw: ref.InputOrEmpty()}, true
	}
	if tool, params, ok := d.registry.MatchResource(name); ok {
		return invocation{tool: tool, name: tool.Metadata().Name, input: params, bound: true}, true
	}
	return invocation{}, false
}

// storedArguments decodes recorded call arguments. Absent or malformed
// arguments become an empty input.
func storedArguments(args string) map[string]any {
	input := map[string]any{}
	if strings.TrimSpace(args) == "" {
		return input
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(args), &decoded); err != nil || decoded == nil {
		return input
	}
	return decoded
}

func (d *Dispatcher) invoke(ctx context.Context, inv invocation, req DispatchRequest, out *Dispatched) string {
	id := inv.id
	if id == "" {
		id = d.newID()
	}

	input := inv.input
	if !inv.bound {
		parsed, err := tools.ParseInput(inv.raw, inv.tool.Metadata().Schema)
		if err != nil {
			return d.fail(out, inv.name, id, err)
		}
		input = parsed
	}

	d.log.Debug("running tool",
		zap.String("tool", inv.name),
		zap.String("id", id),
		zap.Bool("resumed", inv.resumed))

	contents, err := d.executor.Execute(ctx, inv.tool, input, req.Source, req.Text)
	if err != nil {
		return d.fail(out, inv.name, id, err)
	}

	parts := make([]string, 0, len(contents))
	for _, item := range contents {
		if item.IsResource() {
			token := "##" + item.URI
			out.Resources = append(out.Resources, item.Resource())
			if inv.resumed {
				out.Sticky = append(out.Sticky, token)
			}
			parts = append(parts, token)
			continue
		}
		parts = append(parts, fence(model.Filetype(item.MimeType, ""), inv.name, id, item.Data))
	}
	return strings.Join(parts, "\n")
}

func (d *Dispatcher) fail(out *Dispatched, name, id string, err error) string {
	toolErr := &ToolError{Tool: name, ID: id, Err: err}
	out.Errors = append(out.Errors, toolErr)
	d.log.Warn("tool failed", zap.String("tool", name), zap.String("id", id), zap.Error(err))
	return fence("error", name, id, err.Error())
}

func fence(filetype, name, id, body string) string {
	return fmt.Sprintf("```%s tool=%s id=%s\n%s\n```", filetype, name, id, strings.TrimRight(body, "\n"))
}
