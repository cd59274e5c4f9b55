// Package engine orchestrates script creation. A creation run renders
// the prompt, calls the language model, translates, derives the
// practice versions, persists everything to the workspace and library,
// and synthesizes audio, recording each step in the run history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/prompt"
	"github.com/mytalk-labs/mytalk/internal/script"
	"github.com/mytalk-labs/mytalk/internal/stats"
	"github.com/mytalk-labs/mytalk/internal/tts"
	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// defaultAudioWorkers bounds concurrent audio synthesis.
const defaultAudioWorkers = 2

// Speaker synthesizes audio for scripts. *tts.Synthesizer implements
// it; tests substitute fakes.
type Speaker interface {
	Speak(ctx context.Context, text string) (*tts.Result, error)
	SpeakDialogue(ctx context.Context, lines []script.Line) (*tts.Result, error)
}

// Engine drives the creation pipeline.
type Engine struct {
	store    core.Store
	ws       *workspace.Workspace
	prompts  *prompt.Registry
	speaker  Speaker
	recorder *stats.Recorder
	logger   *slog.Logger

	llmCfg       llm.Config
	audioWorkers int

	// Language model provider (lazy initialized)
	providerMu sync.Mutex
	provider   llm.Provider
}

// Config holds engine configuration.
type Config struct {
	// Store is the opened library store. The engine borrows it; the
	// caller owns its lifecycle.
	Store core.Store
	// Workspace is the data directory manager.
	Workspace *workspace.Workspace
	// Prompts is the loaded prompt registry.
	Prompts *prompt.Registry
	// Speaker synthesizes audio. Nil disables audio steps entirely.
	Speaker Speaker
	// LLM configures the lazily created provider.
	LLM llm.Config
	// Provider, when set, is used instead of constructing one from LLM.
	Provider llm.Provider
	// AudioWorkers bounds concurrent synthesis (default 2).
	AudioWorkers int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine with a lazy language model connection. The
// provider is only constructed when a run needs it, so commands that
// never generate do not need an API key.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	if cfg.Workspace == nil {
		return nil, errors.New("engine requires a workspace")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("engine requires a prompt registry")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.AudioWorkers
	if workers <= 0 {
		workers = defaultAudioWorkers
	}

	logger.Debug("initializing engine", "llm_provider", cfg.LLM.Provider, "audio_workers", workers)

	return &Engine{
		store:        cfg.Store,
		ws:           cfg.Workspace,
		prompts:      cfg.Prompts,
		speaker:      cfg.Speaker,
		recorder:     stats.NewRecorder(cfg.Store),
		logger:       logger,
		llmCfg:       cfg.LLM,
		audioWorkers: workers,
		provider:     cfg.Provider,
	}, nil
}

// ensureProvider lazily constructs the language model provider.
func (e *Engine) ensureProvider() (llm.Provider, error) {
	e.providerMu.Lock()
	defer e.providerMu.Unlock()

	if e.provider != nil {
		return e.provider, nil
	}

	e.logger.Debug("creating llm provider", "provider", e.llmCfg.Provider)
	provider, err := llm.New(e.llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}
	e.provider = provider
	return provider, nil
}

// DeleteScript removes a script from the library, its project folder,
// and the index. The database row goes first; filesystem cleanup
// failures are reported but do not resurrect the script.
func (e *Engine) DeleteScript(id string) error {
	s, err := e.store.GetScript(id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteScript(id); err != nil {
		return err
	}

	var errs []error
	if s.ProjectDir != "" {
		if err := e.ws.RemoveProject(s.ProjectDir); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.ws.RemoveFromIndex(id); err != nil {
		errs = append(errs, err)
	}

	e.logger.Info("script deleted", "script_id", id, "title", s.Title)
	return errors.Join(errs...)
}
