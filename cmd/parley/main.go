// Package main provides the parley CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/parley/cli"
)

var (
	// Global flags
	provider    string
	modelID     string
	configPath  string
	historyPath string
	session     string
	toolRetries uint32
	verbose     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Resolve prompt references and stream answers from LLMs",
		Long: `Parley resolves a prompt before sending it to a model:

- /name expands prompt templates from the config file
- @agent enables the tools of an agent
- #tool, #tool:input and #tool:` + "`quoted input`" + ` run tools inline
- ##resource attaches resources, by name or by URI
- $model selects the model
- leading "> " lines stay sticky for the following prompts`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&modelID, "model", "m", "", "Default model (overrides the provider default)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file with defaults, prompts and MCP servers (YAML, JSON or JSON5)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "History store (.db for SQLite, a directory for JSON files)")
	rootCmd.PersistentFlags().StringVarP(&session, "session", "s", cli.DefaultSession, "Session ID for conversation persistence")
	rootCmd.PersistentFlags().Uint32Var(&toolRetries, "tool-retries", 3, "Maximum attempts for transient tool failures")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs and token counts")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(promptsCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(completeCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options(requireModel bool) cli.Options {
	return cli.Options{
		Provider:     provider,
		Model:        modelID,
		ConfigPath:   configPath,
		HistoryPath:  historyPath,
		Session:      session,
		ToolRetries:  toolRetries,
		Verbose:      verbose,
		RequireModel: requireModel,
	}
}

// withHost opens a host for the duration of fn.
func withHost(cmd *cobra.Command, requireModel bool, fn func(*cli.Host) error) error {
	h, err := cli.Open(cmd.Context(), options(requireModel), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

func askCmd() *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Resolve and send a single prompt",
		Long: `Resolve and send a single prompt. Without arguments the prompt is read
from stdin. Headless requests print only the answer and leave the session
history alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read prompt: %w", err)
				}
				text = string(data)
			}
			return withHost(cmd, true, func(h *cli.Host) error {
				return cli.Ask(cmd.Context(), h, text, headless)
			})
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Print the answer only and do not record history")

	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, true, func(h *cli.Host) error {
				return cli.Chat(cmd.Context(), h, cmd.InOrStdin())
			})
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, true, func(h *cli.Host) error {
				return cli.ListModels(cmd.Context(), h)
			})
		},
	}
}

func promptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List prompt templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, false, func(h *cli.Host) error {
				cli.ListPrompts(h)
				return nil
			})
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools and resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, false, func(h *cli.Host) error {
				cli.ListTools(h, verboseTools)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "schema", "S", false, "Show tool input schemas")

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the stored conversation",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the session's conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, false, func(h *cli.Host) error {
				return cli.ShowHistory(cmd.Context(), h)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the session's conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, false, func(h *cli.Host) error {
				return cli.ClearHistory(cmd.Context(), h)
			})
		},
	})

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config file helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.PrintConfigSchema(cmd.OutOrStdout())
		},
	})

	return cmd
}

func completeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "complete [prefix]",
		Short: "Complete a partial /prompt, @agent, #tool, ##resource or $model reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requireModel := strings.HasPrefix(args[0], "$")
			return withHost(cmd, requireModel, func(h *cli.Host) error {
				return cli.Complete(cmd.Context(), h, args[0], asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print candidates as JSON")

	return cmd
}
