package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/web"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host      string
	Port      int
	NoBrowser bool
	Watch     bool
	Dev       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MyTalk web UI",
		Long: `Start a local web server for browsing and creating scripts.

The web UI provides:
- Script library with live updates
- A creation form with per-run provider and voice choice
- Step-by-step generation progress
- Audio playback for every version
- Practice tracking`,
		Example: `  # Start on the default address
  mytalk serve

  # Serve on another port
  mytalk serve --port 3000

  # Start without auto-opening the browser
  mytalk serve --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Address to bind (default: 127.0.0.1)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8501)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open the browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Refresh the library when script files change")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Development mode: watch on, no browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger
	r := cmdCtx.Renderer

	// CLI flags override the config file.
	host := cfg.Server.Host
	if opts.Host != "" {
		host = opts.Host
	}

	port := cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}

	autoOpen := cfg.Server.AutoOpen
	if opts.NoBrowser {
		autoOpen = false
	}

	watch := cfg.Server.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	if opts.Dev {
		autoOpen = false
		watch = true
	}

	// The form builds an engine per override, so drop-downs need the
	// full provider and voice lists up front.
	var voices []string
	if speaker, err := createSpeaker(cfg, cmdCtx.Workspace, logger); err == nil {
		for _, eng := range speaker.Engines() {
			if eng.Ready {
				voices = eng.Voices
				break
			}
		}
	}

	newEngine := func(provider, voice string) (*engine.Engine, error) {
		override := *cfg
		override.Provider = provider
		override.TTS.Voice = voice
		return createEngine(&override, cmdCtx.Store, cmdCtx.Workspace, logger)
	}

	server := web.NewServer(web.Config{
		Engine:          cmdCtx.Engine,
		NewEngine:       newEngine,
		Store:           cmdCtx.Store,
		Workspace:       cmdCtx.Workspace,
		Host:            host,
		Port:            port,
		Watch:           watch,
		Providers:       llm.Known(),
		DefaultProvider: strings.ToLower(cfg.Provider),
		Voices:          voices,
		DefaultVoice:    cfg.TTS.Voice,
		SessionSecret:   serveSessionSecret(),
		Logger:          logger,
	})

	if autoOpen {
		url := server.URL()
		go func() { _ = openBrowser(url) }()
	}

	r.Println(fmt.Sprintf("Serving MyTalk on %s", server.URL()))
	r.Muted("Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return server.Serve(ctx)
}

// serveSessionSecret returns the cookie signing key. Browser prefs are
// the only thing in the session, so a fixed development key is fine
// when the environment does not provide one.
func serveSessionSecret() string {
	if secret := os.Getenv("MYTALK_SESSION_SECRET"); secret != "" {
		return secret
	}
	return "mytalk-dev-secret-change-in-production" //nolint:gosec
}
