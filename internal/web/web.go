// Package web serves the MyTalk browser UI: the script library, a
// creation form with live generation progress, and audio playback.
package web

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/web/notifier"
	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// Config holds configuration for the web server.
type Config struct {
	// Engine runs script generation with the configured defaults.
	Engine *engine.Engine
	// NewEngine builds an engine for a per-run provider or voice
	// override from the create form. Nil disables overrides.
	NewEngine func(provider, voice string) (*engine.Engine, error)
	// Store is the opened library.
	Store core.Store
	// Workspace locates script folders and audio files.
	Workspace *workspace.Workspace

	Host  string
	Port  int
	Watch bool

	// Providers and Voices populate the create form dropdowns.
	Providers       []string
	DefaultProvider string
	Voices          []string
	DefaultVoice    string

	SessionSecret string
	Logger        *slog.Logger
}

// Server is the MyTalk web server.
type Server struct {
	engine    *engine.Engine
	newEngine func(provider, voice string) (*engine.Engine, error)
	store     core.Store
	ws        *workspace.Workspace

	host  string
	port  int
	watch bool

	providers       []string
	defaultProvider string
	voices          []string
	defaultVoice    string

	sessionStore *sessions.CookieStore
	notifier     *notifier.Notifier
	runs         *runLog
	logger       *slog.Logger
}

// NewServer creates a web server instance.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400) // prefs last a day
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		engine:          cfg.Engine,
		newEngine:       cfg.NewEngine,
		store:           cfg.Store,
		ws:              cfg.Workspace,
		host:            cfg.Host,
		port:            cfg.Port,
		watch:           cfg.Watch,
		providers:       cfg.Providers,
		defaultProvider: cfg.DefaultProvider,
		voices:          cfg.Voices,
		defaultVoice:    cfg.DefaultVoice,
		sessionStore:    sessionStore,
		notifier:        notifier.New(),
		runs:            newRunLog(),
		logger:          cfg.Logger,
	}
}

// URL returns the address to open in a browser.
func (s *Server) URL() string {
	host := s.host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, s.port)
}

// Serve starts the web server and blocks until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("starting web server", "addr", s.URL())

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	s.setupRoutes(r)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchScripts(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down web server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE library updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watchScripts watches the scripts directory and broadcasts a library
// refresh when files change. Script runs create whole project folders,
// so new directories are added to the watch as they appear.
func (s *Server) watchScripts(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, s.ws.ScriptsDir()); err != nil {
		s.logger.Error("failed to watch scripts directory", "error", err)
		// Continue without watching rather than killing the server.
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}

			if !libraryFile(event.Name) && event.Op&fsnotify.Remove == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("scripts changed, refreshing library", "file", event.Name)
				s.notifier.Broadcast()
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// libraryFile reports whether a path is worth a library refresh.
func libraryFile(name string) bool {
	switch filepath.Ext(name) {
	case ".md", ".json", ".mp3", ".wav", ".aiff":
		return true
	}
	return false
}

// watchDirRecursive adds a directory and all subdirectories to the
// watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
