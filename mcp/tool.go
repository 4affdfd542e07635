// MCP Tool Wrapper - Makes MCP tools and resource templates usable as tools.
//
// Information Hiding:
// - MCP client lifecycle hidden
// - Result conversion hidden
// - Tool execution coordination hidden

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/parley/model"
	"github.com/richinex/parley/tools"
)

// ToolManager holds the tools of one MCP server sharing a single client.
// The caller must call Close() when done to release resources.
type ToolManager struct {
	name   string
	client *Client
	tools  []tools.Tool
}

// Name returns the server name, which is also the agent tag of its tools.
func (m *ToolManager) Name() string {
	return m.name
}

// Tools returns the discovered tools.
func (m *ToolManager) Tools() []tools.Tool {
	return m.tools
}

// Close closes the MCP client and releases resources.
func (m *ToolManager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Connect starts a server and discovers its tools.
func Connect(ctx context.Context, name string, server ServerConfig, log *zap.Logger) (*ToolManager, error) {
	client, err := NewClient(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %s: %w", name, err)
	}
	manager, err := Discover(ctx, name, client, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	return manager, nil
}

// Discover lists the tools and resource templates of a connected server.
// Tools become actions tagged with the server name; each resource
// template becomes a resource tool.
func Discover(ctx context.Context, name string, client *Client, log *zap.Logger) (*ToolManager, error) {
	if log == nil {
		log = zap.NewNop()
	}

	toolInfos, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	result := make([]tools.Tool, 0, len(toolInfos))
	for _, info := range toolInfos {
		result = append(result, &actionTool{
			client:      client,
			server:      name,
			toolName:    info.Name,
			description: stringValue(info.Description),
			inputSchema: normalizeSchema(info.InputSchema),
		})
	}

	templates, err := client.ListResourceTemplates(ctx)
	if err != nil {
		// Servers without resource support answer with method-not-found.
		log.Debug("mcp server lists no resource templates", zap.String("server", name), zap.Error(err))
	}
	for _, tmpl := range templates {
		result = append(result, &resourceTool{
			client:   client,
			server:   name,
			template: tmpl,
		})
	}

	log.Debug("mcp server discovered",
		zap.String("server", name),
		zap.Int("tools", len(toolInfos)),
		zap.Int("resource_templates", len(templates)))

	return &ToolManager{name: name, client: client, tools: result}, nil
}

// ConnectAll connects every configured server and registers its tools.
// Servers that fail to start and tools whose names collide are logged
// and skipped.
func ConnectAll(ctx context.Context, servers map[string]ServerConfig, registry *tools.Registry, log *zap.Logger) []*ToolManager {
	if log == nil {
		log = zap.NewNop()
	}
	var managers []*ToolManager
	for _, name := range ServerNames(servers) {
		manager, err := Connect(ctx, name, servers[name], log)
		if err != nil {
			log.Warn("mcp server unavailable", zap.String("server", name), zap.Error(err))
			continue
		}
		for _, tool := range manager.Tools() {
			if err := registry.Register(tool); err != nil {
				log.Warn("mcp tool skipped", zap.String("server", name), zap.Error(err))
			}
		}
		managers = append(managers, manager)
	}
	return managers
}

// stringValue returns empty string for nil pointers.
func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeSchema drops empty or null schemas.
func normalizeSchema(schema json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(schema))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil
	}
	return schema
}

// actionTool calls an MCP tool through the shared client.
type actionTool struct {
	client      *Client
	server      string
	toolName    string
	description string
	inputSchema json.RawMessage
}

// Metadata returns the tool metadata.
func (w *actionTool) Metadata() tools.Metadata {
	return tools.Metadata{
		Name:        w.toolName,
		Description: w.description,
		Agent:       w.server,
		Schema:      w.inputSchema,
	}
}

// Resolve calls the MCP tool using the shared client.
func (w *actionTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
	result, err := w.client.CallTool(ctx, w.toolName, input)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	content := convertContent(result.Content)
	if result.IsError {
		var msgs []string
		for _, c := range content {
			msgs = append(msgs, c.Data)
		}
		return nil, errors.New(strings.Join(msgs, "\n"))
	}
	return content, nil
}

// resourceTool reads resources addressed by an MCP resource template.
type resourceTool struct {
	client   *Client
	server   string
	template ResourceTemplate
}

// Metadata returns the tool metadata. The input schema lists the
// template variables.
func (w *resourceTool) Metadata() tools.Metadata {
	return tools.Metadata{
		Name:        toolName(w.template.Name),
		Description: w.template.Description,
		Schema:      templateSchema(w.template.URITemplate),
		URI:         w.template.URITemplate,
	}
}

// Resolve expands the template and reads the resource.
func (w *resourceTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]tools.Content, error) {
	uri := tools.ExpandURI(w.template.URITemplate, input)
	contents, err := w.client.ReadResource(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("resource read failed: %w", err)
	}
	out := make([]tools.Content, 0, len(contents))
	for _, c := range contents {
		out = append(out, resourceContent(c, w.template.MimeType))
	}
	return out, nil
}

// toolName turns a resource template name into a reference-safe name.
func toolName(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// templateSchema builds an object schema with one required string
// property per template variable.
func templateSchema(template string) json.RawMessage {
	vars := tools.TemplateVars(template)
	if len(vars) == 0 {
		return nil
	}
	props := make(map[string]any, len(vars))
	for _, v := range vars {
		props[v] = map[string]any{"type": "string"}
	}
	schema, err := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   vars,
	})
	if err != nil {
		return nil
	}
	return schema
}

func resourceContent(c ResourceContents, fallbackMime string) tools.Content {
	data := c.Text
	if data == "" {
		data = c.Blob
	}
	mimeType := c.MimeType
	if mimeType == "" {
		mimeType = fallbackMime
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}
	return tools.Content{URI: c.URI, Name: c.URI, MimeType: mimeType, Data: data}
}

// convertContent maps tools/call content items to tool content.
func convertContent(items []ContentItem) []tools.Content {
	out := make([]tools.Content, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "resource":
			if item.Resource != nil {
				out = append(out, resourceContent(*item.Resource, ""))
			}
		case "text":
			out = append(out, tools.Text(item.Text))
		default:
			out = append(out, tools.Content{Data: item.Data, MimeType: item.MimeType})
		}
	}
	return out
}
