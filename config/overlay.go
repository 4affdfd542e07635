package config

import (
	"context"

	"github.com/richinex/parley/internal/orderedset"
	"github.com/richinex/parley/model"
)

// StreamTransform rewrites a streamed token before it is surfaced.
// Returning false suppresses the token.
type StreamTransform func(token string) (string, bool)

// Callback transforms the final response content before it is recorded.
type Callback func(content string) string

// ResourceProcessor post-processes the resources resolved for a request.
type ResourceProcessor func(ctx context.Context, prompt string, resources []model.Resource) ([]model.Resource, error)

// Config is the effective configuration of a single request.
//
// Configs are merged with Merge: scalars replace when set, lists replace
// when non-nil, Sticky accumulates, hooks replace when non-nil.
type Config struct {
	SystemPrompt     string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	Model            string   `yaml:"model,omitempty" json:"model,omitempty"`
	Agents           []string `yaml:"agents,omitempty" json:"agents,omitempty"`
	Temperature      *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Sticky           []string `yaml:"sticky,omitempty" json:"sticky,omitempty"`
	Resources        []string `yaml:"resources,omitempty" json:"resources,omitempty"`
	Headless         *bool    `yaml:"headless,omitempty" json:"headless,omitempty"`
	RememberAsSticky *bool    `yaml:"remember_as_sticky,omitempty" json:"remember_as_sticky,omitempty"`

	StreamTransform   StreamTransform   `yaml:"-" json:"-"`
	Callback          Callback          `yaml:"-" json:"-"`
	ResourceProcessor ResourceProcessor `yaml:"-" json:"-"`
}

// Merge returns base with each overlay applied in order; later overlays win.
// None of the inputs are modified.
func Merge(base Config, overlays ...Config) Config {
	out := base.clone()
	for _, o := range overlays {
		if o.SystemPrompt != "" {
			out.SystemPrompt = o.SystemPrompt
		}
		if o.Model != "" {
			out.Model = o.Model
		}
		if o.Agents != nil {
			out.Agents = cloneStrings(o.Agents)
		}
		if o.Temperature != nil {
			t := *o.Temperature
			out.Temperature = &t
		}
		if o.Resources != nil {
			out.Resources = cloneStrings(o.Resources)
		}
		if o.Headless != nil {
			h := *o.Headless
			out.Headless = &h
		}
		if o.RememberAsSticky != nil {
			r := *o.RememberAsSticky
			out.RememberAsSticky = &r
		}
		if len(o.Sticky) > 0 {
			out.Sticky = AccumulateSticky(out.Sticky, o.Sticky)
		}
		if o.StreamTransform != nil {
			out.StreamTransform = o.StreamTransform
		}
		if o.Callback != nil {
			out.Callback = o.Callback
		}
		if o.ResourceProcessor != nil {
			out.ResourceProcessor = o.ResourceProcessor
		}
	}
	return out
}

// AccumulateSticky appends lines to existing, keeping first-seen order and dropping duplicates.
func AccumulateSticky(existing []string, lines []string) []string {
	set := orderedset.FromKeys(existing...)
	for _, line := range lines {
		set.Set(line, line)
	}
	return set.Keys()
}

// IsHeadless reports whether the request must leave the output surface and history alone.
func (c Config) IsHeadless() bool {
	return c.Headless != nil && *c.Headless
}

// RemembersAsSticky reports whether selected model and agents persist as sticky lines.
func (c Config) RemembersAsSticky() bool {
	return c.RememberAsSticky != nil && *c.RememberAsSticky
}

// TemperatureOr returns the configured temperature or def when unset.
func (c Config) TemperatureOr(def float64) float64 {
	if c.Temperature == nil {
		return def
	}
	return *c.Temperature
}

func (c Config) clone() Config {
	out := c
	out.Agents = cloneStrings(c.Agents)
	out.Sticky = cloneStrings(c.Sticky)
	out.Resources = cloneStrings(c.Resources)
	if c.Temperature != nil {
		t := *c.Temperature
		out.Temperature = &t
	}
	if c.Headless != nil {
		h := *c.Headless
		out.Headless = &h
	}
	if c.RememberAsSticky != nil {
		r := *c.RememberAsSticky
		out.RememberAsSticky = &r
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Float returns a pointer to v, for literal Temperature values.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for literal Headless/RememberAsSticky values.
func Bool(v bool) *bool { return &v }
