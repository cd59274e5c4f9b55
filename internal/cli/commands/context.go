package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cache"
	"github.com/mytalk-labs/mytalk/internal/cli/config"
	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/locale"
	"github.com/mytalk-labs/mytalk/internal/prompt"
	"github.com/mytalk-labs/mytalk/internal/store"
	"github.com/mytalk-labs/mytalk/internal/tts"
	"github.com/mytalk-labs/mytalk/internal/workspace"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Store     *store.SQLStore
	Workspace *workspace.Workspace
	Engine    *engine.Engine
	Renderer  *output.Renderer
	Loc       *locale.Localizer
}

// NewCommandContext creates a CommandContext with the library opened
// and the engine assembled. Returns the context and a cleanup function
// that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	ws := workspace.New(cfg.DataDir)
	if err := ws.Init(); err != nil {
		return nil, nil, err
	}

	st := store.New(cfg.Library.Driver, cfg.Library.DSN)
	if err := st.Open(); err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	eng, err := createEngine(cfg, st, ws, logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = st.Close()
	}

	return &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Store:     st,
		Workspace: ws,
		Engine:    eng,
		Renderer:  r,
		Loc:       getLocalizer(cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without the
// library or engine. For commands that never touch the database.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Workspace: workspace.New(cfg.DataDir),
		Renderer:  r,
		Loc:       getLocalizer(cfg),
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration. It uses
// config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	dataDir := getEnvOrDefault("MYTALK_DATA_DIR", config.DefaultDataDir)
	cfg := &config.Config{
		DataDir:      dataDir,
		PromptsDir:   getEnvOrDefault("MYTALK_PROMPTS_DIR", config.DefaultPromptsDir),
		Provider:     getEnvOrDefault("MYTALK_PROVIDER", config.DefaultProvider),
		Language:     os.Getenv("MYTALK_LANGUAGE"),
		Verbose:      os.Getenv("MYTALK_VERBOSE") == "true",
		OutputFormat: os.Getenv("MYTALK_OUTPUT"),
	}
	cfg.TTS.Engine = getEnvOrDefault("MYTALK_TTS_ENGINE", config.DefaultTTSEngine)
	cfg.Library.Driver = "sqlite"
	cfg.Library.DSN = dataDir + "/library.db"
	cfg.Drive.Folder = config.DefaultDriveFolder
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getLocalizer(cfg *config.Config) *locale.Localizer {
	loc, err := locale.New(cfg.Language)
	if err != nil {
		loc, _ = locale.New("en")
	}
	return loc
}

func createEngine(cfg *config.Config, st *store.SQLStore, ws *workspace.Workspace, logger *slog.Logger) (*engine.Engine, error) {
	prompts, err := prompt.Load(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	speaker, err := createSpeaker(cfg, ws, logger)
	if err != nil {
		return nil, err
	}

	provider := strings.ToLower(cfg.Provider)
	return engine.New(engine.Config{
		Store:     st,
		Workspace: ws,
		Prompts:   prompts,
		Speaker:   speaker,
		LLM: llm.Config{
			Provider: provider,
			APIKey:   cfg.APIKeyFor(provider),
			Model:    cfg.ModelFor(provider),
			BaseURL:  cfg.BaseURLFor(provider),
			Logger:   logger,
		},
		Logger: logger,
	})
}

// createSpeaker assembles the synthesizer chain, with the audio cache
// when enabled.
func createSpeaker(cfg *config.Config, ws *workspace.Workspace, logger *slog.Logger) (*tts.Synthesizer, error) {
	ttsCfg := tts.Config{
		Engine:    cfg.TTS.Engine,
		Fallback:  cfg.TTS.Fallback,
		Voice:     cfg.TTS.Voice,
		Voice2:    cfg.TTS.Voice2,
		Timeout:   cfg.TTS.Timeout,
		OpenAIKey: cfg.APIKeyFor("openai"),
		GoogleKey: cfg.APIKeyFor("google"),
		Logger:    logger,
	}
	if cfg.TTS.Cache {
		audioCache, err := cache.New(ws.CacheDir(), 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio cache: %w", err)
		}
		ttsCfg.Cache = audioCache
	}
	return tts.NewSynthesizer(ttsCfg)
}

// today returns the current date formatted for stats keys.
func today() string {
	return time.Now().Format("2006-01-02")
}

// shortID trims a script id to its printable prefix. Commands accept
// the prefix back, so the short form is enough to act on.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// displayPath returns a path relative to the working directory when
// the target lives under it.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
