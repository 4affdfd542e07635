package prompt

import "strings"

// StickyPrefix marks a sticky line at the top of a prompt.
const StickyPrefix = "> "

// SplitSticky separates the leading sticky lines of text from the body.
// Blank lines between sticky lines are skipped. The returned lines have
// the prefix removed.
func SplitSticky(text string) (sticky []string, body string) {
	lines := strings.Split(text, "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, StickyPrefix) {
			break
		}
		if s := strings.TrimSpace(line[len(StickyPrefix):]); s != "" {
			sticky = append(sticky, s)
		}
	}
	return sticky, strings.Join(lines[i:], "\n")
}

// WithSticky prepends sticky directives to body so they take part in
// resolution, one per line and without the prefix.
func WithSticky(sticky []string, body string) string {
	if len(sticky) == 0 {
		return body
	}
	return strings.Join(sticky, "\n") + "\n" + body
}

// FormatSticky renders sticky directives with their prefix, as a host
// shows them above the next prompt.
func FormatSticky(sticky []string) string {
	var b strings.Builder
	for _, s := range sticky {
		b.WriteString(StickyPrefix)
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}
