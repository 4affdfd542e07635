// Filesystem resource tool.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path validation and security checks hidden
// - Content type detection abstracted

package tools

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/richinex/parley/model"
)

// FileURITemplate addresses local files.
const FileURITemplate = "file://{+path}"

// ReadFileTool exposes local files as resources.
type ReadFileTool struct {
	allowedPaths []string
	maxSizeBytes int64
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool(maxSizeBytes int64) *ReadFileTool {
	return &ReadFileTool{
		maxSizeBytes: maxSizeBytes,
	}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *ReadFileTool) WithAllowedPaths(paths []string) *ReadFileTool {
	t.allowedPaths = paths
	return t
}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path to the file to read (relative paths start at the working directory)"`
}

var readFileSchema = SchemaFor(&readFileArgs{})

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() Metadata {
	return Metadata{
		Name:        "file",
		Description: "Read the contents of a file from the filesystem",
		Schema:      readFileSchema,
		URI:         FileURITemplate,
	}
}

// Resolve reads the file and returns it as a file:// resource.
func (t *ReadFileTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	path := stringArg(input, "path")
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	path = resolvePath(path, src)

	if !pathAllowed(path, t.allowedPaths) {
		return nil, fmt.Errorf("access to path '%s' is not allowed", path)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}
	if info.Size() > t.maxSizeBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return []Content{{
		URI:      "file://" + filepath.ToSlash(abs),
		Name:     filepath.Base(abs),
		MimeType: mimeTypeFor(abs),
		Data:     string(content),
	}}, nil
}

var textTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
}

// mimeTypeFor guesses a content type from the file extension, falling
// back to text/x-<ext>.
func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := textTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "text/x-" + strings.TrimPrefix(ext, ".")
}
