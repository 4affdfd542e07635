// Package json parses JSON objects out of loosely formatted text.
//
// Tool inputs typed by users and arguments emitted by models are often
// not strict JSON: they arrive wrapped in markdown fences, surrounded by
// commentary, or with trailing commas and unquoted keys.
package json

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// extractJSON finds and returns the JSON object portion of a string.
// It handles:
// 1. Pure JSON - returns the full input
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - finds first '{' and last '}'
func extractJSON(s string) (string, error) {
	s = stripMarkdownCodeBlocks(s)

	if json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.Index(s, "{")
	if start != -1 {
		end := strings.LastIndex(s, "}")
		if end != -1 && end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("failed to extract valid JSON: %q", preview(s))
}

// stripMarkdownCodeBlocks removes markdown code block markers.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}

// ParseObject parses a JSON object from s. Malformed input is passed
// through json-repair before giving up. Non-object values are rejected.
func ParseObject(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty input")
	}

	candidate, err := extractJSON(s)
	if err != nil {
		repaired, rerr := jsonrepair.RepairJSON(stripMarkdownCodeBlocks(s))
		if rerr != nil {
			return nil, fmt.Errorf("failed to repair JSON %q: %w", preview(s), rerr)
		}
		candidate = repaired
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("not a JSON object: %q", preview(s))
	}
	if out == nil {
		return nil, fmt.Errorf("not a JSON object: %q", preview(s))
	}
	return out, nil
}

// LooksLikeObject reports whether s, once trimmed, is brace delimited.
func LooksLikeObject(s string) bool {
	s = stripMarkdownCodeBlocks(s)
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
