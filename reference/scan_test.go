package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setOf(names ...string) func(string) bool {
	m := map[string]bool{}
	for _, n := range names {
		m[n] = true
	}
	return func(s string) bool { return m[s] }
}

func TestScanAgents(t *testing.T) {
	agents, rest := ScanAgents("@files look at @unknown and @files again @shell", setOf("files", "shell"))

	assert.Equal(t, []string{"files", "shell"}, agents)
	assert.Equal(t, " look at @unknown and  again ", rest)
}

func TestScanAgentsNoneKnown(t *testing.T) {
	agents, rest := ScanAgents("mail me at me@example.com", nil)
	assert.Empty(t, agents)
	assert.Equal(t, "mail me at me@example.com", rest)
}

func TestExtractModelLastWins(t *testing.T) {
	model, rest := ExtractModel("$gpt-4o explain $claude costs $5", setOf("gpt-4o", "claude"))
	assert.Equal(t, "claude", model)
	assert.Equal(t, " explain  costs $5", rest)
}

func TestScanToolsFamilies(t *testing.T) {
	text := "#shell:`ls -la` then #file:main.go and ##buffer plus #glob"
	refs := ScanTools(text)

	require.Equal(t, []string{"#shell:`ls -la`", "#file:main.go", "##buffer", "#glob"}, refs.Keys())

	shell, _ := refs.Get("#shell:`ls -la`")
	assert.Equal(t, "shell", shell.Name)
	require.NotNil(t, shell.Input)
	assert.Equal(t, "ls -la", *shell.Input)

	file, _ := refs.Get("#file:main.go")
	assert.Equal(t, "file", file.Name)
	assert.Equal(t, "main.go", file.InputOrEmpty())

	buffer, _ := refs.Get("##buffer")
	assert.Equal(t, "buffer", buffer.Name)
	assert.Nil(t, buffer.Input)

	glob, _ := refs.Get("#glob")
	require.NotNil(t, glob.Input)
	assert.Equal(t, "", *glob.Input)
	assert.False(t, glob.HasInput())
}

func TestScanToolsQuotedSuppressesOverlap(t *testing.T) {
	refs := ScanTools("#shell:`echo #inner ##res` done")

	require.Equal(t, 1, refs.Len())
	ref, ok := refs.Get("#shell:`echo #inner ##res`")
	require.True(t, ok)
	assert.Equal(t, "echo #inner ##res", ref.InputOrEmpty())
}

func TestScanToolsQuotedNeedsTrailingBoundary(t *testing.T) {
	refs := ScanTools("#shell:`echo `date` now` end")

	keys := refs.Keys()
	require.NotEmpty(t, keys)
	ref, _ := refs.Get(keys[0])
	assert.Equal(t, "shell", ref.Name)
	assert.Equal(t, "echo `date", ref.InputOrEmpty())
}

func TestScanToolsDeduplicatesRepeats(t *testing.T) {
	refs := ScanTools("#file:a.go #file:a.go #file:b.go")
	assert.Equal(t, []string{"#file:a.go", "#file:b.go"}, refs.Keys())
}

func TestScanToolsResourceURI(t *testing.T) {
	refs := ScanTools("read ##file:///tmp/notes.md please")

	require.Equal(t, []string{"##file:///tmp/notes.md"}, refs.Keys())
	ref, _ := refs.Get("##file:///tmp/notes.md")
	assert.Equal(t, "file:///tmp/notes.md", ref.Name)
}

func TestScanToolsQuotedBeforePunctuation(t *testing.T) {
	for _, tail := range []string{",", ".", ")"} {
		t.Run(tail, func(t *testing.T) {
			refs := ScanTools("(run #tool1:`hello world`" + tail + " please")

			require.Equal(t, []string{"#tool1:`hello world`"}, refs.Keys())
			ref, _ := refs.Get("#tool1:`hello world`")
			assert.Equal(t, "hello world", ref.InputOrEmpty())
			assert.Equal(t, 5, ref.Start)
		})
	}
}

func TestScanToolsQuotedAtEnd(t *testing.T) {
	refs := ScanTools("#tool1:`hello world`")
	assert.Equal(t, []string{"#tool1:`hello world`"}, refs.Keys())
}

func TestScanToolsStartIsFirstOccurrence(t *testing.T) {
	refs := ScanTools("#a:`run #b now` #b and #b")

	require.Equal(t, []string{"#a:`run #b now`", "#b"}, refs.Keys())
	b, _ := refs.Get("#b")
	assert.Equal(t, 16, b.Start)
}

func TestReplaceAt(t *testing.T) {
	tests := []struct {
		name, text, pattern, want string
		at                        int
		ok                        bool
	}{
		{"at offset", "#glob a #glob", "#glob", "#glob a X", 8, true},
		{"quoted", "#shell:`ls` x", "#shell:`ls`", "X x", 0, true},
		{"mismatch", "#file:main.go", "#glob", "#file:main.go", 0, false},
		{"out of range", "#a", "#a", "#a", 5, false},
		{"negative", "#a", "#a", "#a", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReplaceAt(tt.text, tt.at, tt.pattern, "X")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestExtractModelOutsideSkipsSpans(t *testing.T) {
	text := "$modelY out: price is $modelZ today"
	skip := []Span{{Start: 8, End: len(text)}}

	model, rest := ExtractModelOutside(text, setOf("modelY", "modelZ"), skip)
	assert.Equal(t, "modelY", model)
	assert.Equal(t, " out: price is $modelZ today", rest)

	model, rest = ExtractModelOutside("nothing here", setOf("modelY"), nil)
	assert.Empty(t, model)
	assert.Equal(t, "nothing here", rest)
}
