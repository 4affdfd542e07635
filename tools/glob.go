// Glob tool for file discovery.
//
// Returns file paths matching a glob pattern without reading content.
// Content is loaded separately through the file resource.

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/richinex/parley/model"
)

const (
	// DefaultGlobMaxResults is the default maximum results per query.
	DefaultGlobMaxResults = 100
	// AbsoluteGlobMaxResults is the hard limit to prevent excessive memory.
	AbsoluteGlobMaxResults = 1000
)

// GlobTool finds files matching glob patterns.
type GlobTool struct {
	maxResults int
}

// NewGlobTool creates a new glob tool.
// If maxResults <= 0, AbsoluteGlobMaxResults is used.
func NewGlobTool(maxResults int) *GlobTool {
	if maxResults <= 0 {
		maxResults = AbsoluteGlobMaxResults
	}
	return &GlobTool{maxResults: maxResults}
}

// GlobArgs are the arguments for the glob tool.
type GlobArgs struct {
	Pattern    string `json:"pattern" jsonschema:"description=Glob pattern (e.g. '**/*.go' or 'src/**/*.ts')"`
	Path       string `json:"path,omitempty" jsonschema:"description=Base directory to search from (default: working directory)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum files to return"`
}

var globSchema = SchemaFor(&GlobArgs{})

// Metadata returns tool metadata.
func (t *GlobTool) Metadata() Metadata {
	return Metadata{
		Name:        "glob",
		Description: "Find files matching a glob pattern. Returns file paths only (no content). Hidden directories (starting with .) are skipped.",
		Agent:       FilesAgent,
		Schema:      globSchema,
	}
}

// Resolve runs the glob search.
func (t *GlobTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	pattern := stringArg(input, "pattern")
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	basePath := stringArg(input, "path")
	if basePath == "" {
		basePath = workDir(src)
	} else {
		basePath = resolvePath(basePath, src)
	}

	maxResults := DefaultGlobMaxResults
	if n, ok := intArg(input, "max_results"); ok && n > 0 {
		maxResults = n
	}
	if maxResults > t.maxResults {
		maxResults = t.maxResults
	}

	matches, err := t.findMatches(ctx, basePath, pattern, maxResults)
	if err != nil {
		return nil, err
	}

	return []Content{Text(t.formatResult(pattern, basePath, matches, maxResults))}, nil
}

// findMatches finds files matching the pattern in basePath.
func (t *GlobTool) findMatches(ctx context.Context, basePath, pattern string, maxResults int) ([]string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	dirInfo, err := os.Stat(absBase)
	if err != nil {
		return nil, fmt.Errorf("path not found: %s", basePath)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", basePath)
	}

	// Normalize pattern: strip leading "./" as it's redundant
	pattern = strings.TrimPrefix(pattern, "./")

	if strings.Contains(pattern, "**") {
		return t.findMatchesRecursive(ctx, absBase, pattern, maxResults)
	}
	return t.findMatchesSimple(absBase, pattern, maxResults)
}

// findMatchesRecursive handles patterns with ** using WalkDir.
func (t *GlobTool) findMatchesRecursive(ctx context.Context, absBase, pattern string, maxResults int) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(absBase, func(path string, entry os.DirEntry, err error) error {
		// Check for cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			// Skip other errors (I/O issues, etc.)
			return nil
		}

		if entry.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(entry.Name(), ".") && entry.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(absBase, path)
		if err != nil {
			return nil
		}

		if matchGlobPattern(relPath, pattern) {
			matches = append(matches, relPath)
			if len(matches) >= maxResults {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return matches, err
	}

	sort.Strings(matches)
	return matches, nil
}

// findMatchesSimple handles patterns without ** using filepath.Glob.
func (t *GlobTool) findMatchesSimple(absBase, pattern string, maxResults int) ([]string, error) {
	fullPattern := filepath.Join(absBase, pattern)
	globMatches, err := filepath.Glob(fullPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	var matches []string
	for _, m := range globMatches {
		fileInfo, err := os.Stat(m)
		if err != nil || fileInfo.IsDir() {
			continue
		}
		relPath, err := filepath.Rel(absBase, m)
		if err != nil {
			continue
		}
		matches = append(matches, relPath)
		if len(matches) >= maxResults {
			break
		}
	}

	sort.Strings(matches)
	return matches, nil
}

// formatResult formats the matches as a listing.
func (t *GlobTool) formatResult(pattern, basePath string, matches []string, maxResults int) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching pattern '%s' in %s", pattern, basePath)
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Found %d files matching '%s':\n", len(matches), pattern)
	for _, m := range matches {
		fmt.Fprintln(&result, m)
	}

	if len(matches) >= maxResults {
		fmt.Fprintf(&result, "\n(limited to %d results)", maxResults)
	}

	return result.String()
}

// matchGlobPattern matches a path against a glob pattern with ** support.
func matchGlobPattern(path, pattern string) bool {
	// Normalize separators
	path = filepath.ToSlash(path)
	pattern = filepath.ToSlash(pattern)

	parts := strings.Split(pattern, "**")

	if len(parts) == 1 {
		// No **, use simple match
		return matchPattern(pattern, path)
	}

	// Handle ** patterns
	// **/*.go means any directory depth followed by .go files
	// src/**/*.go means src/ then any depth then .go files

	// Check prefix (before first **)
	prefix := strings.TrimSuffix(parts[0], "/")
	if prefix != "" && !strings.HasPrefix(path, prefix) {
		return false
	}

	// Check suffix (after last **)
	suffix := strings.TrimPrefix(parts[len(parts)-1], "/")
	if suffix != "" {
		if strings.Contains(suffix, "/") {
			// Suffix has directory components
			if !strings.HasSuffix(path, suffix) {
				if !matchPattern("*/"+suffix, "/"+path) {
					return false
				}
			}
		} else {
			// Suffix is just a filename pattern
			if !matchPattern(suffix, filepath.Base(path)) {
				return false
			}
		}
	}

	return true
}

// matchPattern wraps filepath.Match, returning false on error.
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
