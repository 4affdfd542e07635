package llm

import (
	"fmt"
	"strings"

	"github.com/richinex/parley/model"
)

// BuildMessages lays out a request as: system prompt, history, resources,
// selection and finally the prompt itself.
func BuildMessages(opts AskOptions) []ChatMessage {
	var messages []ChatMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, SystemMessage(opts.SystemPrompt))
	}

	for _, turn := range opts.History {
		switch turn.Role {
		case model.RoleUser:
			messages = append(messages, UserMessage(turn.Content))
		case model.RoleAssistant:
			messages = append(messages, AssistantMessage(withToolCalls(turn.Content, turn.ToolCalls)))
		}
	}

	for _, r := range opts.Resources {
		messages = append(messages, UserMessage(formatResource(r)))
	}

	if !opts.Selection.Empty() {
		messages = append(messages, UserMessage(formatSelection(opts.Selection)))
	}

	messages = append(messages, UserMessage(opts.Prompt))
	return messages
}

// withToolCalls renders recorded calls as text. Replaying them as native tool
// calls would require matching tool results, which history does not keep.
func withToolCalls(content string, calls []model.ToolCallRecord) string {
	if len(calls) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(content)
	for _, call := range calls {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Requested tool call #%s:%s", call.Name, call.ID)
		if call.Arguments != "" {
			fmt.Fprintf(&b, " with arguments %s", call.Arguments)
		}
	}
	return b.String()
}

func formatResource(r model.Resource) string {
	title := r.URI
	if r.Name != "" && r.Name != r.URI {
		title = fmt.Sprintf("%s (%s)", r.Name, r.URI)
	}
	return fmt.Sprintf("Resource: %s\n```%s\n%s\n```", title, model.Filetype(r.MimeType, r.URI), strings.TrimRight(r.Data, "\n"))
}

func formatSelection(s *model.Selection) string {
	header := "Selection"
	if s.Filename != "" {
		header += " from " + s.Filename
	}
	if s.StartLine > 0 {
		header += fmt.Sprintf(" lines %d-%d", s.StartLine, s.EndLine)
	}
	return fmt.Sprintf("%s:\n```%s\n%s\n```", header, s.Filetype, strings.TrimRight(s.Content, "\n"))
}
