package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/export"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Format string
	Dir    string
	All    bool
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export [script]",
		Short: "Export scripts as JSON or Markdown",
		Long: `Export a script, or the whole library with --all, to standalone
files. Each script becomes one file named like its project folder.`,
		Example: `  # One script to the default exports folder
  mytalk export coffee

  # Whole library as markdown into ./out
  mytalk export --all --format markdown --dir out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			return runExport(cmd, ref, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Format, "format", "f", "json", "Export format (json, markdown)")
	flags.StringVarP(&opts.Dir, "dir", "d", "", "Target directory (default <data>/exports)")
	flags.BoolVarP(&opts.All, "all", "a", false, "Export every script in the library")

	return cmd
}

func runExport(cmd *cobra.Command, ref string, opts *ExportOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	if ref == "" && !opts.All {
		return fmt.Errorf("pass a script to export, or --all for the whole library")
	}
	if ref != "" && opts.All {
		return fmt.Errorf("--all cannot be combined with a script argument")
	}

	dir := opts.Dir
	if dir == "" {
		dir = cmdCtx.Workspace.ExportsDir()
	}

	var scripts []*core.Script
	if opts.All {
		scripts, err = cmdCtx.Store.ListScripts(core.SearchOptions{})
		if err != nil {
			return fmt.Errorf("failed to list scripts: %w", err)
		}
		if len(scripts) == 0 {
			r.Println(cmdCtx.Loc.T("scripts_none", nil))
			return nil
		}
	} else {
		s, err := findScript(cmdCtx.Store, ref)
		if err != nil {
			return err
		}
		scripts = []*core.Script{s}
	}

	var paths []string
	for _, s := range scripts {
		versions, err := cmdCtx.Store.ListVersions(s.ID)
		if err != nil {
			return fmt.Errorf("failed to load versions for %s: %w", shortID(s.ID), err)
		}
		path, err := export.Write(dir, export.Bundle{Script: s, Versions: versions}, format)
		if err != nil {
			return err
		}
		paths = append(paths, path)
		r.StatusLine(s.Title, "success", displayPath(path))
	}

	r.Println()
	r.Success(fmt.Sprintf("Exported %d script(s) to %s", len(paths), displayPath(dir)))
	return nil
}
