package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/parley/internal/dsa"
	"github.com/richinex/parley/tools"
)

// Candidate is one completion for a partially typed reference.
type Candidate struct {
	Word        string `json:"word"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// Completion kinds.
const (
	KindPrompt   = "prompt"
	KindAgent    = "agent"
	KindTool     = "tool"
	KindResource = "resource"
	KindModel    = "model"
)

// Complete returns the references starting with prefix, in lexical order.
// Prefixes are "/" (prompts), "@" (agents), "#" (tools), "##" (resources)
// and "$" (models). Models are listed only for a "$" prefix.
func (e *Engine) Complete(ctx context.Context, prefix string) []Candidate {
	index := dsa.NewTrie[Candidate]()

	switch {
	case strings.HasPrefix(prefix, "/"):
		for _, name := range e.prompts.Names() {
			entry, _ := e.prompts.Get(name)
			index.Insert("/"+name, Candidate{Word: "/" + name, Kind: KindPrompt, Description: entry.Summary()})
		}
	case strings.HasPrefix(prefix, "@"):
		for _, agent := range e.tools.Agents() {
			index.Insert("@"+agent, Candidate{Word: "@" + agent, Kind: KindAgent})
		}
		for _, meta := range e.tools.List() {
			index.Insert("@"+meta.Name, Candidate{Word: "@" + meta.Name, Kind: KindTool, Description: meta.Description})
		}
	case strings.HasPrefix(prefix, "##"):
		for _, meta := range e.tools.List() {
			if meta.Kind() == tools.Resource {
				index.Insert("##"+meta.Name, Candidate{Word: "##" + meta.Name, Kind: KindResource, Description: meta.URI})
			}
		}
	case strings.HasPrefix(prefix, "#"):
		for _, meta := range e.tools.List() {
			kind := KindTool
			if meta.Kind() == tools.Resource {
				kind = KindResource
			}
			index.Insert("#"+meta.Name, Candidate{Word: "#" + meta.Name, Kind: kind, Description: meta.Description})
		}
	case strings.HasPrefix(prefix, "$"):
		models, err := e.provider.ListModels(ctx)
		if err != nil {
			e.log.Warn("model completion unavailable", zap.Error(err))
			return nil
		}
		for _, m := range models {
			index.Insert("$"+m.ID, Candidate{Word: "$" + m.ID, Kind: KindModel, Description: m.Name})
		}
	default:
		return nil
	}

	var out []Candidate
	index.WalkPrefix(prefix, func(_ string, c Candidate) bool {
		out = append(out, c)
		return false
	})
	return out
}
