// Package model provides domain types shared across packages.
package model

import "strings"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation history.
// History is append-only; persistence is left to the storage package.
type Turn struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates an assistant turn carrying any tool calls the model issued.
func AssistantTurn(content string, calls []ToolCallRecord) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolCallRecord is a tool call previously emitted by the model.
// A later user turn may resume it by echoing #name:id.
type ToolCallRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized JSON object
}

// ToolCalls returns every tool call recorded in history, oldest first.
func ToolCalls(history []Turn) []ToolCallRecord {
	var calls []ToolCallRecord
	for _, turn := range history {
		calls = append(calls, turn.ToolCalls...)
	}
	return calls
}

// Source is the editor context a prompt was issued from.
// Hosts supply it; headless requests have none.
type Source interface {
	BufferID() int
	WindowID() int
	CWD() string
}

// StaticSource is a fixed Source, useful for hosts without a live editor.
type StaticSource struct {
	Buffer int
	Window int
	Dir    string
}

func (s StaticSource) BufferID() int { return s.Buffer }
func (s StaticSource) WindowID() int { return s.Window }
func (s StaticSource) CWD() string   { return s.Dir }

// Selection is the region of a buffer attached to a request.
type Selection struct {
	Filename  string `json:"filename"`
	Filetype  string `json:"filetype"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// Empty reports whether the selection carries no content.
func (s *Selection) Empty() bool {
	return s == nil || strings.TrimSpace(s.Content) == ""
}

// Resource is addressable content produced by a resource tool.
type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Data     string `json:"data"`
}
