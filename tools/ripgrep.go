// Ripgrep Tool - Fast repository search.
//
// Information Hiding:
// - Ripgrep command construction hidden
// - Output parsing abstracted
// - Error handling internalized

package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/richinex/parley/model"
)

// RipgrepTool provides fast file searching via ripgrep.
type RipgrepTool struct {
	timeoutSecs       uint64
	defaultMaxResults int
}

// NewRipgrepTool creates a new ripgrep tool with the given timeout.
func NewRipgrepTool(timeoutSecs uint64) *RipgrepTool {
	return &RipgrepTool{
		timeoutSecs:       timeoutSecs,
		defaultMaxResults: 200,
	}
}

// WithMaxResults sets the default maximum results.
func (t *RipgrepTool) WithMaxResults(max int) *RipgrepTool {
	t.defaultMaxResults = max
	return t
}

type ripgrepArgs struct {
	Pattern       string   `json:"pattern" jsonschema:"description=The search pattern"`
	Path          string   `json:"path,omitempty" jsonschema:"description=Path to search in (default: working directory)"`
	Glob          []string `json:"glob,omitempty" jsonschema:"description=Glob patterns to filter files"`
	CaseSensitive *bool    `json:"case_sensitive,omitempty" jsonschema:"description=Case sensitive search (default: true)"`
	FixedStrings  bool     `json:"fixed_strings,omitempty" jsonschema:"description=Treat pattern as literal string"`
	MaxResults    int      `json:"max_results,omitempty" jsonschema:"description=Maximum number of matching lines"`
	Context       int      `json:"context,omitempty" jsonschema:"description=Lines of context around matches"`
}

var ripgrepSchema = SchemaFor(&ripgrepArgs{})

// Metadata returns the tool metadata.
func (t *RipgrepTool) Metadata() Metadata {
	return Metadata{
		Name:        "grep",
		Description: "Search file contents with ripgrep (rg)",
		Agent:       FilesAgent,
		Schema:      ripgrepSchema,
	}
}

// args builds the rg command line from tool input.
func (t *RipgrepTool) args(input map[string]any, src model.Source) ([]string, error) {
	pattern := stringArg(input, "pattern")
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	rgArgs := []string{"--no-messages", "--color=never", "--line-number"}

	if n, ok := intArg(input, "context"); ok && n > 0 {
		rgArgs = append(rgArgs, "-C", fmt.Sprintf("%d", n))
	}

	maxCount := t.defaultMaxResults
	if n, ok := intArg(input, "max_results"); ok && n > 0 {
		maxCount = n
	}
	if maxCount > 0 {
		rgArgs = append(rgArgs, "--max-count", fmt.Sprintf("%d", maxCount))
	}

	if cs, ok := boolArg(input, "case_sensitive"); ok && !cs {
		rgArgs = append(rgArgs, "-i")
	}
	if fixed, ok := boolArg(input, "fixed_strings"); ok && fixed {
		rgArgs = append(rgArgs, "-F")
	}

	for _, g := range stringsArg(input, "glob") {
		if strings.TrimSpace(g) != "" {
			rgArgs = append(rgArgs, "-g", g)
		}
	}

	searchPath := stringArg(input, "path")
	if searchPath == "" {
		searchPath = workDir(src)
	} else {
		searchPath = resolvePath(searchPath, src)
	}

	return append(rgArgs, "--", pattern, searchPath), nil
}

// Resolve runs the ripgrep search.
func (t *RipgrepTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	rgArgs, err := t.args(input, src)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rg", rgArgs...)
	output, err := cmd.CombinedOutput()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("rg timed out after %d seconds", t.timeoutSecs)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// rg returns exit code 1 when no matches are found
			if exitErr.ExitCode() == 1 {
				return []Content{Text("No matches found")}, nil
			}
			return nil, fmt.Errorf("rg failed with exit code %d\noutput: %s", exitErr.ExitCode(), string(output))
		}
		return nil, fmt.Errorf("failed to execute rg: %w", err)
	}

	return []Content{Text(string(output))}, nil
}
