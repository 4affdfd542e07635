// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - REPL line handling and background requests hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/engine"
	"github.com/richinex/parley/prompt"
	"github.com/richinex/parley/tools"
)

var errNoPrompt = errors.New("no prompt given")

// Ask runs a single prompt. Headless requests print the streamed answer
// and leave the session history untouched.
func Ask(ctx context.Context, h *Host, text string, headless bool) error {
	if strings.TrimSpace(text) == "" {
		return errNoPrompt
	}
	res, err := h.ask(ctx, text, headless)
	if err != nil {
		var reqErr *engine.RequestError
		if errors.As(err, &reqErr) && !headless {
			// Already shown by the terminal surface.
			return fmt.Errorf("request failed")
		}
		return err
	}
	if res == nil {
		return nil
	}
	if headless {
		fmt.Fprintln(h.out)
	}
	if h.verbose {
		printTokenStats(os.Stderr, res)
	}
	return nil
}

func (h *Host) ask(ctx context.Context, text string, headless bool) (*engine.Result, error) {
	opts := engine.AskOptions{Source: source()}
	if headless {
		opts.Config = config.Config{Headless: &headless}
		opts.OnProgress = func(token string) { io.WriteString(h.out, token) }
	}

	res, err := h.Engine.Ask(ctx, text, opts)
	if err != nil || res == nil {
		return res, err
	}
	if !headless {
		h.saveHistory(ctx)
	}
	return res, nil
}

// Chat reads prompts from in until EOF or "exit". Lines starting with "> "
// are sticky lines and are sent together with the next prompt line.
// Requests run in the background so :stop can interrupt them; a new
// prompt cancels the one still streaming.
func Chat(ctx context.Context, h *Host, in io.Reader) error {
	fmt.Fprintf(h.out, "Chat session '%s'. Commands: :stop, :reset, :history, :sticky. Type 'exit' to quit.\n\n", h.Session)
	if n := len(h.Engine.History()); n > 0 {
		fmt.Fprintf(h.out, "Resuming session '%s' (%d turns)\n\n", h.Session, n)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	var sticky []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		input := strings.TrimSpace(line)

		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			return nil
		case strings.HasPrefix(line, prompt.StickyPrefix):
			sticky = append(sticky, line)
			continue
		case strings.HasPrefix(input, ":"):
			if err := h.command(ctx, input); err != nil {
				fmt.Fprintf(h.out, "%v\n", err)
			}
			continue
		}

		text := input
		if len(sticky) > 0 {
			text = strings.Join(sticky, "\n") + "\n" + input
			sticky = nil
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ask(ctx, text, false); err != nil {
				var reqErr *engine.RequestError
				if !errors.As(err, &reqErr) {
					fmt.Fprintf(h.out, "Error: %v\n", err)
				}
			}
		}()
	}
	return scanner.Err()
}

// command handles a ":" REPL command.
func (h *Host) command(ctx context.Context, input string) error {
	switch input {
	case ":stop":
		if !h.Engine.Stop(false) {
			fmt.Fprintln(h.out, "Nothing running.")
		}
	case ":reset":
		h.Engine.Reset()
		if err := h.Store.Delete(ctx, h.Session); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
	case ":history":
		printHistory(h.out, h)
	case ":sticky":
		fmt.Fprint(h.out, prompt.FormatSticky(h.Engine.Sticky()))
	default:
		return fmt.Errorf("unknown command %q", input)
	}
	return nil
}

// ListModels prints every model the configured providers offer.
func ListModels(ctx context.Context, h *Host) error {
	models, err := h.Engine.Models(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	fmt.Fprintf(h.out, "Available models (%d):\n\n", len(models))
	for _, m := range models {
		line := fmt.Sprintf("  $%-40s %s", m.ID, m.Provider)
		if m.MaxInputTokens > 0 {
			line += fmt.Sprintf("  (%d tokens)", m.MaxInputTokens)
		}
		fmt.Fprintln(h.out, line)
	}
	return nil
}

// ListPrompts prints the prompt registry.
func ListPrompts(h *Host) {
	registry := h.Engine.Prompts()
	names := registry.Names()
	if len(names) == 0 {
		fmt.Fprintln(h.out, "No prompts configured.")
		return
	}
	fmt.Fprintln(h.out, "Available prompts:")
	fmt.Fprintln(h.out)
	for _, name := range names {
		entry, _ := registry.Get(name)
		fmt.Fprintf(h.out, "  /%s\n    %s\n\n", name, entry.Summary())
	}
}

// ListTools prints the tools and resources with their agents.
func ListTools(h *Host, verbose bool) {
	fmt.Fprintln(h.out, "Available tools:")
	fmt.Fprintln(h.out)

	for _, meta := range h.Engine.Tools().List() {
		prefix := "#"
		if meta.Kind() == tools.Resource {
			prefix = "##"
		}
		fmt.Fprintf(h.out, "  %s%s (%s)\n", prefix, meta.Name, meta.Kind())
		fmt.Fprintf(h.out, "    %s\n", meta.Description)
		if meta.Agent != "" {
			fmt.Fprintf(h.out, "    agent: @%s\n", meta.Agent)
		}
		if meta.URI != "" {
			fmt.Fprintf(h.out, "    uri: %s\n", meta.URI)
		}
		if verbose && len(meta.Schema) > 0 {
			fmt.Fprintf(h.out, "    schema: %s\n", meta.Schema)
		}
		fmt.Fprintln(h.out)
	}
}

// ShowHistory prints the session's conversation and the known sessions.
func ShowHistory(ctx context.Context, h *Host) error {
	sessions, err := h.Store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	fmt.Fprintf(h.out, "Sessions: %s\n\n", strings.Join(sessions, ", "))
	printHistory(h.out, h)
	return nil
}

// ClearHistory deletes the session's conversation.
func ClearHistory(ctx context.Context, h *Host) error {
	if err := h.Store.Delete(ctx, h.Session); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	h.Engine.SetHistory(nil)
	fmt.Fprintf(h.out, "Cleared session '%s'\n", h.Session)
	return nil
}

// PrintConfigSchema writes the JSON Schema of the config file.
func PrintConfigSchema(out io.Writer) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", schema)
	return err
}

// Complete prints the completions of a partial reference, as JSON when
// asJSON is set.
func Complete(ctx context.Context, h *Host, prefix string, asJSON bool) error {
	candidates := h.Engine.Complete(ctx, prefix)
	if asJSON {
		if candidates == nil {
			candidates = []engine.Candidate{}
		}
		enc := json.NewEncoder(h.out)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}
	for _, c := range candidates {
		if c.Description != "" {
			fmt.Fprintf(h.out, "%s\t%s\n", c.Word, c.Description)
		} else {
			fmt.Fprintln(h.out, c.Word)
		}
	}
	return nil
}

func printHistory(out io.Writer, h *Host) {
	history := h.Engine.History()
	if len(history) == 0 {
		fmt.Fprintf(out, "Session '%s' is empty.\n", h.Session)
		return
	}
	for _, turn := range history {
		fmt.Fprintf(out, "%s: %s\n", turn.Role, truncateString(turn.Content, maxHistoryContentLen))
		for _, call := range turn.ToolCalls {
			fmt.Fprintf(out, "  #%s:%s %s\n", call.Name, call.ID, call.Arguments)
		}
	}
}

func printTokenStats(out io.Writer, res *engine.Result) {
	if res.TokenMaxCount > 0 {
		fmt.Fprintf(out, "[%s: %d/%d tokens]\n", res.Model, res.TokenCount, res.TokenMaxCount)
		return
	}
	fmt.Fprintf(out, "[%s: %d tokens]\n", res.Model, res.TokenCount)
}

const maxHistoryContentLen = 400

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
