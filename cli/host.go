// Host wiring for CLI commands.
//
// Information Hiding:
// - Provider selection and construction hidden
// - Config file, prompt registry and tool registry assembly hidden
// - MCP server lifecycle hidden
// - Conversation persistence hidden

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/richinex/parley/config"
	"github.com/richinex/parley/engine"
	"github.com/richinex/parley/internal/logging"
	"github.com/richinex/parley/llm"
	"github.com/richinex/parley/mcp"
	"github.com/richinex/parley/model"
	"github.com/richinex/parley/prompt"
	"github.com/richinex/parley/storage"
	"github.com/richinex/parley/tools"
)

// DefaultSession is used when no session id is given.
const DefaultSession = "default"

// Options holds CLI execution options.
type Options struct {
	Provider    string
	Model       string
	ConfigPath  string
	HistoryPath string
	Session     string
	ToolRetries uint32
	Verbose     bool
	// RequireModel fails Open when no provider can be built.
	RequireModel bool
}

// Host is one CLI process worth of engine state.
type Host struct {
	Engine   *engine.Engine
	Client   *llm.Client
	Store    storage.ConversationStorage
	Session  string
	Settings config.Settings

	out      io.Writer
	log      *zap.Logger
	verbose  bool
	managers []*mcp.ToolManager
}

// Open builds the engine and its collaborators from the environment and
// the config file.
func Open(ctx context.Context, opts Options, out io.Writer) (*Host, error) {
	out = newLockedWriter(out)
	log, err := logging.New(opts.Verbose)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(providerName(opts.Provider))
	if err != nil {
		return nil, err
	}
	if opts.Model != "" {
		settings.LLM.Model = opts.Model
	}

	file := &config.File{}
	if path := firstNonEmpty(opts.ConfigPath, settings.Engine.ConfigPath); path != "" {
		file, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	registry, err := tools.WithDefaults(tools.Options{
		TimeoutSecs:  settings.Engine.ToolTimeoutSecs,
		AllowedPaths: []string{cwd},
	})
	if err != nil {
		return nil, err
	}
	managers := mcp.ConnectAll(ctx, file.MCPServers, registry, log.Named("mcp"))

	client, err := buildClient(settings, log, opts.RequireModel)
	if err != nil {
		closeManagers(managers)
		return nil, err
	}

	historyPath := firstNonEmpty(opts.HistoryPath, settings.Engine.HistoryPath)
	if dir := filepath.Dir(historyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			closeManagers(managers)
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	store, err := storage.Open(historyPath)
	if err != nil {
		closeManagers(managers)
		return nil, err
	}

	base := file.Config
	if base.Model == "" {
		base.Model = settings.LLM.Model
	}
	if base.Temperature == nil {
		t := settings.LLM.Temperature
		base.Temperature = &t
	}

	eng, err := engine.New(engine.Options{
		Config:   base,
		Prompts:  prompt.FromSpecs(file.Prompts),
		Tools:    registry,
		Executor: tools.NewExecutor(tools.Config{MaxRetries: opts.ToolRetries}),
		Provider: client,
		Surface:  NewTerminal(out),
		Logger:   log.Named("engine"),
	})
	if err != nil {
		store.Close()
		closeManagers(managers)
		return nil, err
	}

	h := &Host{
		Engine:   eng,
		Client:   client,
		Store:    store,
		Session:  firstNonEmpty(opts.Session, DefaultSession),
		Settings: settings,
		out:      out,
		log:      log,
		verbose:  opts.Verbose,
		managers: managers,
	}
	if err := h.loadHistory(ctx); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// NewHost wraps an existing engine. out should be the writer the
// engine's surface writes to.
func NewHost(eng *engine.Engine, store storage.ConversationStorage, session string, out io.Writer) *Host {
	return &Host{
		Engine:  eng,
		Store:   store,
		Session: firstNonEmpty(session, DefaultSession),
		out:     newLockedWriter(out),
		log:     zap.NewNop(),
	}
}

// Close stops any request, disconnects MCP servers and closes storage.
func (h *Host) Close() error {
	h.Engine.Stop(false)
	closeManagers(h.managers)
	_ = h.log.Sync()
	return h.Store.Close()
}

func (h *Host) loadHistory(ctx context.Context) error {
	history, err := h.Store.Load(ctx, h.Session)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	h.Engine.SetHistory(history)
	if len(history) > 0 {
		h.log.Info("resumed session", zap.String("session", h.Session), zap.Int("turns", len(history)))
	}
	return nil
}

func (h *Host) saveHistory(ctx context.Context) {
	if err := h.Store.Save(ctx, h.Session, h.Engine.History()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
	}
}

// buildClient creates a client over every provider with a key set. When
// none can be built and required is false, the client is empty and model
// requests fail.
func buildClient(settings config.Settings, log *zap.Logger, required bool) (*llm.Client, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}
	providers, err := llm.AvailableFromEnv(providerType, settings.LLM.Model,
		settings.LLM.MaxTokens, float32(settings.LLM.Temperature))
	if err != nil {
		if required {
			return nil, err
		}
		log.Warn("no model provider available", zap.Error(err))
		providers = nil
	}
	return llm.NewClient(log.Named("llm"), providers...), nil
}

// providerName picks the explicit provider, then PARLEY_PROVIDER, then the
// first provider with an API key, then openai.
func providerName(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("PARLEY_PROVIDER"); env != "" {
		return env
	}
	if configured := config.ConfiguredProviders(); len(configured) > 0 {
		return configured[0]
	}
	return "openai"
}

func closeManagers(managers []*mcp.ToolManager) {
	for _, m := range managers {
		_ = m.Close()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// source is the editor context of a CLI request: the working directory.
func source() model.Source {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return model.StaticSource{Dir: dir}
}
