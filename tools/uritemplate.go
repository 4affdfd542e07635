package tools

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// templateVar matches {name} and {+name} in a URI template.
var templateVar = regexp.MustCompile(`\{(\+?)([A-Za-z0-9_.]+)\}`)

var templateCache sync.Map

type compiledTemplate struct {
	re   *regexp.Regexp
	keys []string
}

// compileTemplate turns a URI template into an anchored regexp.
// {name} matches one path segment; {+name} matches the rest, slashes
// included.
func compileTemplate(template string) compiledTemplate {
	if cached, ok := templateCache.Load(template); ok {
		return cached.(compiledTemplate)
	}

	var b strings.Builder
	var keys []string
	b.WriteString("^")
	last := 0
	for _, m := range templateVar.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(regexp.QuoteMeta(template[last:m[0]]))
		if m[3] > m[2] {
			b.WriteString("(.+)")
		} else {
			b.WriteString("([^/]+)")
		}
		keys = append(keys, template[m[4]:m[5]])
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(template[last:]))
	b.WriteString("$")

	ct := compiledTemplate{re: regexp.MustCompile(b.String()), keys: keys}
	templateCache.Store(template, ct)
	return ct
}

// MatchURI tests uri against a URI template and returns the bound
// variables on success.
func MatchURI(uri, template string) (map[string]any, bool) {
	if template == "" {
		return nil, false
	}
	ct := compileTemplate(template)
	m := ct.re.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	params := make(map[string]any, len(ct.keys))
	for i, key := range ct.keys {
		params[key] = m[i+1]
	}
	return params, true
}

// TemplateVars returns the variable names of a URI template in order.
func TemplateVars(template string) []string {
	keys := compileTemplate(template).keys
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// ExpandURI fills a URI template with input values. Missing variables
// expand to the empty string.
func ExpandURI(template string, input map[string]any) string {
	return templateVar.ReplaceAllStringFunc(template, func(token string) string {
		m := templateVar.FindStringSubmatch(token)
		return fmt.Sprint(valueOr(input[m[2]], ""))
	})
}

func valueOr(v, def any) any {
	if v == nil {
		return def
	}
	return v
}

// MatchResource returns the first resource tool, in registration order,
// whose URI template matches uri.
func (r *Registry) MatchResource(uri string) (Tool, map[string]any, bool) {
	for _, tool := range r.Resources() {
		if params, ok := MatchURI(uri, tool.Metadata().URI); ok {
			return tool, params, true
		}
	}
	return nil, nil, false
}
