package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/richinex/parley/mcp"
)

// File is the on-disk configuration: engine defaults, the prompt
// registry and the MCP servers to connect.
type File struct {
	Config     `yaml:",inline"`
	Prompts    map[string]PromptSpec       `yaml:"prompts,omitempty"`
	MCPServers map[string]mcp.ServerConfig `yaml:"mcp_servers,omitempty"`
}

// PromptSpec is one prompt registry entry as written in a config file:
// either a bare string template or a mapping.
type PromptSpec struct {
	Text       string        `yaml:"-"`
	Structured *PromptFields `yaml:"-"`
}

// PromptFields is the mapping form of a PromptSpec.
type PromptFields struct {
	Prompt      string `yaml:"prompt,omitempty"`
	Description string `yaml:"description,omitempty"`
	Mapping     string `yaml:"mapping,omitempty"`
	Config      `yaml:",inline"`
}

// UnmarshalYAML accepts a scalar or a mapping.
func (p *PromptSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&p.Text)
	case yaml.MappingNode:
		var fields PromptFields
		if err := node.Decode(&fields); err != nil {
			return err
		}
		p.Structured = &fields
		return nil
	default:
		return fmt.Errorf("line %d: prompt must be a string or a mapping", node.Line)
	}
}

// MarshalYAML writes the scalar form for text entries.
func (p PromptSpec) MarshalYAML() (any, error) {
	if p.Structured != nil {
		return p.Structured, nil
	}
	return p.Text, nil
}

// LoadFile reads a YAML, JSON or JSON5 config file. Environment
// variables in the file are expanded before parsing.
func LoadFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	raw, err := parseRaw([]byte(os.ExpandEnv(string(data))), path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return decodeRaw(raw)
}

func parseRaw(data []byte, pathHint string) (map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(pathHint))
	if ext == ".json" || ext == ".json5" {
		var raw map[string]any
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]any{}
		}
		return raw, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("expected single document")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func decodeRaw(raw map[string]any) (*File, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &f, nil
}
