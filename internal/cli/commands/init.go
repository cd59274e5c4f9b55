package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new MyTalk workspace",
		Long: `Initialize a new MyTalk workspace with default configuration.

This creates:
  - mytalk.yaml configuration file
  - data/ directory for scripts, audio, and the library database
  - prompts/ directory for custom prompt templates
  - .gitignore keeping keys and generated data out of version control`,
		Example: `  # Initialize in current directory
  mytalk init

  # Initialize in a new directory
  mytalk init my-english

  # Force overwrite existing config
  mytalk init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "mytalk.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("mytalk.yaml already exists. Use --force to overwrite")
	}

	if err := copyTemplate(dir, force); err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}

	for _, sub := range []string{"data", "data/scripts", "data/backups", "data/logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	files, _ := listTemplateFiles()
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}
	r.StatusLine("data/", "success", "")

	r.Println("")
	r.Success("MyTalk workspace initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Set OPENAI_API_KEY (or configure a provider in mytalk.yaml)")
	r.Println("  2. Run 'mytalk new' to generate your first script")
	r.Println("  3. Run 'mytalk practice' to study it")
	r.Println("  4. Run 'mytalk serve' for the web interface")

	return nil
}
