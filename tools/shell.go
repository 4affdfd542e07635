// Shell Command Executor Tool.
//
// Information Hiding:
// - Shell execution details hidden
// - Command validation hidden
// - Output parsing abstracted

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

// ShellTool executes shell commands via sh -c in the source directory.
type ShellTool struct {
	timeoutSecs     uint64
	allowedCommands []string
}

// NewShellTool creates a new shell tool with the given timeout.
func NewShellTool(timeoutSecs uint64) *ShellTool {
	return &ShellTool{
		timeoutSecs: timeoutSecs,
	}
}

// WithAllowedCommands sets the allowlist for commands.
func (t *ShellTool) WithAllowedCommands(commands []string) *ShellTool {
	t.allowedCommands = commands
	return t
}

type shellArgs struct {
	Command string `json:"command" jsonschema:"description=The shell command to execute"`
}

var shellSchema = SchemaFor(&shellArgs{})

// Metadata returns the tool metadata.
func (t *ShellTool) Metadata() Metadata {
	return Metadata{
		Name:        "shell",
		Description: "Execute a shell command and return its output",
		Agent:       ShellAgent,
		Schema:      shellSchema,
	}
}

// Resolve runs the shell command.
func (t *ShellTool) Resolve(ctx context.Context, input map[string]any, src model.Source, prompt string) ([]Content, error) {
	command := stringArg(input, "command")
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	if !t.isCommandAllowed(command) {
		return nil, fmt.Errorf("command '%s' is not in the allowed list", command)
	}

	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workDir(src)
	output, err := cmd.CombinedOutput()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("command timed out after %d seconds", t.timeoutSecs)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command failed with exit code %d\noutput: %s",
				exitErr.ExitCode(), string(output))
		}
		return nil, fmt.Errorf("failed to execute command: %w", err)
	}

	return []Content{Text(string(output))}, nil
}

// isCommandAllowed checks if the command is in the allowlist.
func (t *ShellTool) isCommandAllowed(command string) bool {
	if len(t.allowedCommands) == 0 {
		return true
	}

	// Extract base command (first word)
	baseCmd := strings.Fields(command)
	if len(baseCmd) == 0 {
		return false
	}

	for _, allowed := range t.allowedCommands {
		if allowed == baseCmd[0] {
			return true
		}
	}
	return false
}
