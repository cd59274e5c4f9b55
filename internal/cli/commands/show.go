package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/store"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// ShowOptions holds options for the show command.
type ShowOptions struct {
	Kind string
	All  bool
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	opts := &ShowOptions{}

	cmd := &cobra.Command{
		Use:   "show <script>",
		Short: "Show a script and its translation",
		Long: `Show a library script. The argument is a script id, an id prefix,
or part of the title.

Shows the original version by default. Use --kind for a derived
version, or --all for every version.`,
		Example: `  # Show by id prefix
  mytalk show 3f2a81c0

  # Find by title
  mytalk show coffee

  # The podcast version
  mytalk show coffee --kind podcast

  # Everything as JSON
  mytalk show coffee --all --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Kind, "kind", "k", "", "Version to show (original, ted, podcast, daily)")
	flags.BoolVarP(&opts.All, "all", "a", false, "Show every version")

	return cmd
}

func runShow(cmd *cobra.Command, ref string, opts *ShowOptions) error {
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

	versions, err := cmdCtx.Store.ListVersions(script.ID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}

	shown := versions
	if !opts.All {
		kind := core.KindOriginal
		if opts.Kind != "" {
			kind = core.VersionKind(strings.ToLower(opts.Kind))
			if !kind.Valid() {
				return fmt.Errorf("unknown version kind %q (available: original, ted, podcast, daily)", opts.Kind)
			}
		}
		shown = nil
		for _, v := range versions {
			if v.Kind == kind {
				shown = []*core.Version{v}
				break
			}
		}
		if shown == nil {
			return fmt.Errorf("script %q has no %s version", script.Title, kind)
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return showJSON(cmdCtx, script, shown)
	case output.ModeMarkdown:
		return showMarkdown(cmdCtx, script, shown)
	default:
		return showText(cmdCtx, script, shown, versions)
	}
}

// showText renders a script for reading in the terminal.
func showText(cmdCtx *CommandContext, script *core.Script, shown, all []*core.Version) error {
	r := cmdCtx.Renderer

	r.Header(1, script.Title)
	if script.TitleKo != "" {
		r.Println(script.TitleKo)
	}
	r.Muted(fmt.Sprintf("%s · %s · %s", script.Category, script.CreatedAt.Format("2006-01-02"), shortID(script.ID)))

	for _, v := range shown {
		r.Println()
		r.Header(2, v.Kind.Display())
		r.Println(strings.TrimSpace(v.Content))
		if v.Translation != "" {
			r.Println()
			r.Muted(strings.TrimSpace(v.Translation))
		}
		if v.AudioPath != "" {
			r.Println()
			r.Muted(fmt.Sprintf("audio: %s", displayPath(audioAbsPath(cmdCtx, script, v))))
		}
	}

	if len(shown) < len(all) {
		others := make([]string, 0, len(all))
		for _, v := range all {
			if !containsVersion(shown, v.Kind) {
				others = append(others, string(v.Kind))
			}
		}
		r.Println()
		r.Muted(fmt.Sprintf("also available: %s  (mytalk show %s --kind <kind>)", strings.Join(others, ", "), shortID(script.ID)))
	}

	return nil
}

// showMarkdown renders a script as markdown.
func showMarkdown(cmdCtx *CommandContext, script *core.Script, shown []*core.Version) error {
	r := cmdCtx.Renderer

	r.Println(output.FormatHeader(1, script.Title))
	r.Println("")
	r.Println(output.FormatKeyValue("ID", script.ID))
	if script.TitleKo != "" {
		r.Println(output.FormatKeyValue("Korean Title", script.TitleKo))
	}
	r.Println(output.FormatKeyValue("Category", string(script.Category)))
	r.Println(output.FormatKeyValue("Created", script.CreatedAt.Format("2006-01-02 15:04")))

	for _, v := range shown {
		r.Println("")
		r.Println(output.FormatHeader(2, v.Kind.Display()))
		r.Println("")
		r.Println(strings.TrimSpace(v.Content))
		if v.Translation != "" {
			r.Println("")
			r.Println(output.FormatHeader(3, "Korean"))
			r.Println("")
			r.Println(strings.TrimSpace(v.Translation))
		}
		if v.AudioPath != "" {
			r.Println("")
			r.Println(output.FormatKeyValue("Audio", audioAbsPath(cmdCtx, script, v)))
		}
	}

	return nil
}

// showJSON renders a script as a ShowOutput payload.
func showJSON(cmdCtx *CommandContext, script *core.Script, shown []*core.Version) error {
	out := output.ShowOutput{
		Script: output.ScriptInfo{
			ID:         script.ID,
			Title:      script.Title,
			TitleKo:    script.TitleKo,
			Category:   string(script.Category),
			SourceKind: string(script.SourceKind),
			ProjectDir: script.ProjectDir,
			CreatedAt:  script.CreatedAt.Format(time.RFC3339),
			Kinds:      kindNames(shown),
			HasAudio:   hasAudio(shown),
		},
		Versions: make([]output.VersionInfo, 0, len(shown)),
	}
	for _, v := range shown {
		out.Versions = append(out.Versions, output.VersionInfo{
			Kind:        string(v.Kind),
			Content:     v.Content,
			Translation: v.Translation,
			AudioFile:   v.AudioPath,
		})
	}
	return cmdCtx.Renderer.JSON(out)
}

// findScript resolves a user-supplied reference to a stored script.
// The reference may be a full id, an id prefix, or a title fragment.
func findScript(st *store.SQLStore, ref string) (*core.Script, error) {
	scripts, err := st.ListScripts(core.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to search library: %w", err)
	}

	var matches []*core.Script
	for _, s := range scripts {
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		needle := strings.ToLower(ref)
		for _, s := range scripts {
			if strings.Contains(strings.ToLower(s.Title), needle) || strings.Contains(s.TitleKo, ref) {
				matches = append(matches, s)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no script matches %q. Run 'mytalk list' to see your library", ref)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, fmt.Sprintf("%s (%s)", shortID(m.ID), m.Title))
		}
		return nil, fmt.Errorf("%q matches %d scripts: %s", ref, len(matches), strings.Join(names, ", "))
	}
}

// audioAbsPath resolves a version's audio file under the workspace.
func audioAbsPath(cmdCtx *CommandContext, script *core.Script, v *core.Version) string {
	return filepath.Join(cmdCtx.Workspace.ScriptsDir(), script.ProjectDir, v.AudioPath)
}

func containsVersion(versions []*core.Version, kind core.VersionKind) bool {
	for _, v := range versions {
		if v.Kind == kind {
			return true
		}
	}
	return false
}
