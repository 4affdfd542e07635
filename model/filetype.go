package model

import (
	"path/filepath"
	"strings"
)

// Filetype derives a code fence language from a mimetype, falling back to
// the extension of uri.
func Filetype(mimeType, uri string) string {
	if sub, ok := strings.CutPrefix(mimeType, "text/x-"); ok {
		return sub
	}
	switch mimeType {
	case "text/markdown":
		return "markdown"
	case "application/json":
		return "json"
	case "application/yaml":
		return "yaml"
	case "application/toml":
		return "toml"
	case "text/html":
		return "html"
	case "text/plain":
		return "text"
	case "":
	default:
		if _, sub, ok := strings.Cut(mimeType, "/"); ok && !strings.ContainsAny(sub, "+.;") {
			return sub
		}
	}
	if ext := strings.TrimPrefix(filepath.Ext(uri), "."); ext != "" {
		return ext
	}
	return "text"
}
