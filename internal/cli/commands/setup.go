package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/config"
	"github.com/mytalk-labs/mytalk/internal/workspace"
)

// NewSetupCommand creates the setup command.
func NewSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Prepare the workspace and check the environment",
		Long: `Prepare the data directories, write a default configuration when
none exists, and check that providers and audio engines are usable.

Run this once after installing, or any time to re-check the environment.`,
		Example: `  # Prepare and check everything
  mytalk setup`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd)
		},
	}
}

func runSetup(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	r.Header(1, "MyTalk Setup")
	r.Println("")

	// Data directories
	r.Header(2, "Workspace")
	ws := workspace.New(cfg.DataDir)
	if err := ws.Init(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}
	r.StatusLine(cfg.DataDir, "success", "data directory")

	// Default config when none was found
	if config.GetConfigFileUsed() == "" {
		root := cfg.WorkspaceRoot
		if root == "" {
			root = "."
		}
		cfgPath := filepath.Join(root, "mytalk.yaml")
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := copyTemplate(root, false); err != nil {
				return fmt.Errorf("failed to write default config: %w", err)
			}
			r.StatusLine(cfgPath, "success", "created")
		}
	} else {
		r.StatusLine(config.GetConfigFileUsed(), "success", "config file")
	}

	// Language model providers
	r.Println("")
	r.Header(2, "Providers")
	missing := 0
	for _, name := range []string{"openai", "anthropic", "gemini"} {
		status := "success"
		detail := "key configured"
		if cfg.APIKeyFor(name) == "" {
			detail = "no API key"
			status = "pending"
			if name == cfg.Provider {
				status = "failed"
				missing++
			}
		}
		r.StatusLine(name, status, detail)
	}

	// Audio engines
	r.Println("")
	r.Header(2, "Audio engines")
	speaker, err := createSpeaker(cfg, ws, cmdCtx.Logger)
	if err != nil {
		return err
	}
	for _, eng := range speaker.Engines() {
		if eng.Ready {
			r.StatusLine(eng.Name, "success", eng.Format)
		} else {
			r.StatusLine(eng.Name, "pending", eng.Detail)
		}
	}

	r.Println("")
	if missing > 0 {
		r.Warning(fmt.Sprintf("The active provider %q has no API key", cfg.Provider))
		r.Println("")
		r.Println("Set it with one of:")
		r.Println("  export " + keyEnvName(cfg.Provider) + "=...")
		r.Println("  providers." + cfg.Provider + ".api_key in mytalk.yaml")
		return nil
	}

	r.Success("Setup complete")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  mytalk new       Generate a study script")
	r.Println("  mytalk list      Browse the library")
	r.Println("  mytalk doctor    Run a full health check")
	return nil
}

// keyEnvName returns the conventional API key variable for a provider.
func keyEnvName(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}
