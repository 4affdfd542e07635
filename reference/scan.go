// Package reference extracts @agent, #tool, ##resource and $model
// references from prompt text.
package reference

import (
	"regexp"
	"sort"
	"strings"

	"github.com/richinex/parley/internal/orderedset"
)

var (
	agentPattern = regexp.MustCompile(`@([^\s:]+)`)
	modelPattern = regexp.MustCompile(`\$([^\s]+)`)

	// #name:`input`; the closing backtick must be followed by a byte that
	// is neither a backtick nor a word character, or the end of the text.
	quotedPattern = regexp.MustCompile("(?s)#([^\\s:`]+):`(.*?)`(?:[^`\\w]|$)")
	// #name or #name:input; input runs up to whitespace or a backtick.
	unquotedPattern = regexp.MustCompile("#([^\\s:`]+)(?::([^\\s`]*))?")
	// ##name; name is the whole non-whitespace run.
	resourcePattern = regexp.MustCompile(`##([^\s]+)`)
)

// ToolRef is one #tool or ##resource reference found in text.
type ToolRef struct {
	Name string
	// Input is nil for ##name references.
	Input *string
	// Pattern is the exact matched substring.
	Pattern string
	// Start is the byte offset of the first occurrence in the scanned text.
	Start int
}

// HasInput reports whether the reference carried an input.
func (r ToolRef) HasInput() bool {
	return r.Input != nil && *r.Input != ""
}

// InputOrEmpty returns the input, or "" for ##name references.
func (r ToolRef) InputOrEmpty() string {
	if r.Input == nil {
		return ""
	}
	return *r.Input
}

// ScanAgents removes @name tokens accepted by known and returns the
// accepted names in first-occurrence order. Other @tokens stay literal.
func ScanAgents(text string, known func(string) bool) ([]string, string) {
	agents := orderedset.New[string, struct{}]()
	rest := agentPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[1:]
		if known == nil || !known(name) {
			return token
		}
		agents.Set(name, struct{}{})
		return ""
	})
	return agents.Keys(), rest
}

// ExtractModel removes $name tokens accepted by known. The last accepted
// token selects the model. Other $tokens stay literal.
func ExtractModel(text string, known func(string) bool) (string, string) {
	return ExtractModelOutside(text, known, nil)
}

// ExtractModelOutside is ExtractModel ignoring tokens that start inside
// any of the skip spans.
func ExtractModelOutside(text string, known func(string) bool, skip []Span) (string, string) {
	var selected string
	var b strings.Builder
	last := 0
	for _, m := range modelPattern.FindAllStringIndex(text, -1) {
		name := text[m[0]+1 : m[1]]
		if known == nil || !known(name) || inAny(skip, m[0]) {
			continue
		}
		selected = name
		b.WriteString(text[last:m[0]])
		last = m[1]
	}
	if last == 0 {
		return selected, text
	}
	b.WriteString(text[last:])
	return selected, b.String()
}

func inAny(spans []Span, i int) bool {
	for _, s := range spans {
		if s.contains(i) {
			return true
		}
	}
	return false
}

type candidate struct {
	Span
	ref ToolRef
}

// ScanTools collects #tool and ##resource references keyed by their exact
// matched text, in order of first appearance. Quoted references take
// precedence: an unquoted or ## match overlapping a quoted span is dropped.
func ScanTools(text string) *orderedset.Set[string, ToolRef] {
	var quoted []Span
	var found []candidate

	for _, m := range quotedPattern.FindAllStringSubmatchIndex(text, -1) {
		// The boundary byte consumed by the pattern is not part of it.
		end := m[5] + 1
		input := text[m[4]:m[5]]
		s := Span{m[0], end}
		quoted = append(quoted, s)
		found = append(found, candidate{s, ToolRef{
			Name:    text[m[2]:m[3]],
			Input:   &input,
			Pattern: text[m[0]:end],
			Start:   m[0],
		}})
	}

	overlaps := func(start int) bool { return inAny(quoted, start) }

	for _, m := range unquotedPattern.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		if strings.HasPrefix(name, "#") || overlaps(m[0]) {
			continue
		}
		input := ""
		if m[4] >= 0 {
			input = text[m[4]:m[5]]
		}
		found = append(found, candidate{Span{m[0], m[1]}, ToolRef{
			Name:    name,
			Input:   &input,
			Pattern: text[m[0]:m[1]],
			Start:   m[0],
		}})
	}

	for _, m := range resourcePattern.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(m[0]) {
			continue
		}
		found = append(found, candidate{Span{m[0], m[1]}, ToolRef{
			Name:    text[m[2]:m[3]],
			Pattern: text[m[0]:m[1]],
			Start:   m[0],
		}})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	refs := orderedset.New[string, ToolRef]()
	for _, c := range found {
		if !refs.Has(c.ref.Pattern) {
			refs.Set(c.ref.Pattern, c.ref)
		}
	}
	return refs
}

// ReplaceAt substitutes pattern at byte offset at. It reports false, leaving
// text unchanged, when pattern does not occur exactly there.
func ReplaceAt(text string, at int, pattern, replacement string) (string, bool) {
	if pattern == "" || at < 0 || at+len(pattern) > len(text) || text[at:at+len(pattern)] != pattern {
		return text, false
	}
	return text[:at] + replacement + text[at+len(pattern):], true
}

// Span is a half-open byte range [Start, End) of text.
type Span struct{ Start, End int }

func (s Span) contains(i int) bool { return i >= s.Start && i < s.End }
