package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <script>",
		Short: "Delete a script from your library",
		Long: `Delete a script, its practice versions, its audio, and its project
folder. The argument is a script id, an id prefix, or part of the
title.`,
		Example: `  mytalk delete 3f2a81c0
  mytalk delete "old interview" --force`,
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without confirmation")

	return cmd
}

func runDelete(cmd *cobra.Command, ref string, force bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	script, err := findScript(cmdCtx.Store, ref)
	if err != nil {
		return err
	}

	if !force {
		if !r.IsTTY() {
			return fmt.Errorf("refusing to delete %q without --force", script.Title)
		}
		r.Printf("Delete %q and its audio? [y/N] ", script.Title)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			r.Muted("Cancelled")
			return nil
		}
	}

	if err := cmdCtx.Engine.DeleteScript(script.ID); err != nil {
		return fmt.Errorf("failed to delete script: %w", err)
	}

	r.Success(cmdCtx.Loc.T("script_deleted", map[string]any{"Title": script.Title}))
	return nil
}
