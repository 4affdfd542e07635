package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/internal/orderedset"
	"github.com/richinex/parley/llm"
	"github.com/richinex/parley/model"
	"github.com/richinex/parley/prompt"
	"github.com/richinex/parley/reference"
)

// request is a fully resolved prompt ready to be sent.
type request struct {
	config    config.Config
	text      string
	agents    []string
	tools     []llm.ToolDefinition
	resources []model.Resource
	selection *model.Selection
	history   []model.Turn
}

// resolve runs sticky insertion, template expansion, agent scanning, tool
// dispatch and model extraction, in that order.
func (e *Engine) resolve(ctx context.Context, text string, opts AskOptions, headless bool) *request {
	e.mu.Lock()
	history := append([]model.Turn(nil), e.history...)
	sticky := append([]string(nil), e.sticky...)
	selection := e.selection
	e.mu.Unlock()
	if opts.Selection != nil {
		selection = opts.Selection
	}

	lines, body := prompt.SplitSticky(text)
	if len(lines) > 0 {
		sticky = config.AccumulateSticky(config.Merge(e.base, opts.Config).Sticky, lines)
	} else if len(sticky) == 0 {
		sticky = config.Merge(e.base, opts.Config).Sticky
	}

	cfg, resolved := e.resolver.Resolve(prompt.WithSticky(sticky, body), e.base, opts.Config, opts.Source)

	for _, name := range cfg.Resources {
		if token := "##" + name; !strings.Contains(resolved, token) {
			resolved += "\n" + token
		}
	}

	scanned, resolved := reference.ScanAgents(resolved, e.tools.IsAgent)
	agents := orderedset.FromKeys(cfg.Agents...)
	for _, a := range scanned {
		agents.Set(a, a)
	}
	enabled := e.tools.Enabled(agents.Keys())

	dispatched := e.dispatcher.Dispatch(ctx, DispatchRequest{
		Text:    resolved,
		Enabled: enabled,
		Calls:   model.ToolCalls(history),
		Source:  opts.Source,
		Status: func(msg string) {
			if !headless {
				e.surface.Status(msg)
			}
		},
	})
	resolved = dispatched.Text

	// Model tokens are read from tool-resolved text outside substituted
	// output; listing models may need the network, so only look when a
	// token is present.
	var selected string
	if strings.Contains(resolved, "$") {
		models, err := e.provider.ListModels(ctx)
		if err != nil {
			e.log.Warn("model listing failed, $model tokens left as text", zap.Error(err))
		} else {
			known := make(map[string]bool, len(models))
			for _, m := range models {
				known[m.ID] = true
			}
			selected, resolved = reference.ExtractModelOutside(resolved, func(id string) bool { return known[id] }, dispatched.Inserted)
		}
	}
	if selected != "" {
		cfg.Model = selected
	}

	resources := dispatched.Resources
	if cfg.ResourceProcessor != nil {
		processed, err := cfg.ResourceProcessor(ctx, resolved, resources)
		if err != nil {
			e.log.Warn("using unprocessed resources", zap.Error(&ResourceProcessingError{Err: err}))
		} else {
			resources = processed
		}
	}

	if !headless {
		next := config.AccumulateSticky(sticky, cfg.Sticky)
		next = config.AccumulateSticky(next, dispatched.Sticky)
		if cfg.RemembersAsSticky() {
			next = rememberSticky(next, selected, scanned)
		}
		e.mu.Lock()
		e.sticky = next
		e.mu.Unlock()
	}

	defs := make([]llm.ToolDefinition, 0, len(enabled))
	for _, t := range enabled {
		meta := t.Metadata()
		def, err := llm.NewToolDefinition(meta.Name, meta.Description, meta.Schema)
		if err != nil {
			e.log.Warn("tool not offered to the model", zap.String("tool", meta.Name), zap.Error(err))
			continue
		}
		defs = append(defs, def)
	}

	return &request{
		config:    cfg,
		text:      strings.TrimSpace(resolved),
		agents:    agents.Keys(),
		tools:     defs,
		resources: resources,
		selection: selection,
		history:   history,
	}
}

// rememberSticky records the chosen model and agents as sticky lines. A new
// model replaces the remembered one.
func rememberSticky(sticky []string, modelID string, agents []string) []string {
	var lines []string
	if modelID != "" {
		for _, s := range sticky {
			if !strings.HasPrefix(s, "$") {
				lines = append(lines, s)
			}
		}
		lines = append(lines, "$"+modelID)
	} else {
		lines = append(lines, sticky...)
	}
	for _, a := range agents {
		lines = append(lines, "@"+a)
	}
	return config.AccumulateSticky(nil, lines)
}
