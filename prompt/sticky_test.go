package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSticky(t *testing.T) {
	sticky, body := SplitSticky("> #file:main.go\n\n> @files\nExplain this\n> not sticky")

	assert.Equal(t, []string{"#file:main.go", "@files"}, sticky)
	assert.Equal(t, "Explain this\n> not sticky", body)
}

func TestSplitStickyNone(t *testing.T) {
	sticky, body := SplitSticky("Explain this")
	assert.Empty(t, sticky)
	assert.Equal(t, "Explain this", body)
}

func TestSplitStickyOnlySticky(t *testing.T) {
	sticky, body := SplitSticky("> $gpt-4o")
	assert.Equal(t, []string{"$gpt-4o"}, sticky)
	assert.Empty(t, body)
}

func TestWithSticky(t *testing.T) {
	assert.Equal(t, "@files\n$gpt-4o\nhello", WithSticky([]string{"@files", "$gpt-4o"}, "hello"))
	assert.Equal(t, "hello", WithSticky(nil, "hello"))
	assert.Equal(t, "> @files\n> $gpt-4o\n", FormatSticky([]string{"@files", "$gpt-4o"}))
}
