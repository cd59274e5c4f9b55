package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Category string
	Search   string
	Limit    int
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scripts in your library",
		Long: `List library scripts, newest first.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List everything
  mytalk list

  # Business scripts only
  mytalk list --category business

  # Search titles and content
  mytalk list --search "coffee"

  # JSON for scripts
  mytalk list --output json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Category, "category", "c", "", "Filter by category (everyday, business, travel, academic)")
	flags.StringVarP(&opts.Search, "search", "s", "", "Search titles, Korean titles, and content")
	flags.IntVarP(&opts.Limit, "limit", "n", 0, "Show at most this many scripts")

	return cmd
}

// listedScript pairs a script with its stored versions.
type listedScript struct {
	script   *core.Script
	versions []*core.Version
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	category := core.Category(opts.Category)
	if opts.Category != "" && !category.Valid() {
		return fmt.Errorf("unknown category %q (available: %s)", opts.Category, categoryNames())
	}

	scripts, err := cmdCtx.Store.ListScripts(core.SearchOptions{
		Query:    opts.Search,
		Category: category,
		Limit:    opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list scripts: %w", err)
	}

	listed := make([]listedScript, 0, len(scripts))
	for _, s := range scripts {
		versions, err := cmdCtx.Store.ListVersions(s.ID)
		if err != nil {
			return fmt.Errorf("failed to load versions for %s: %w", shortID(s.ID), err)
		}
		listed = append(listed, listedScript{script: s, versions: versions})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listJSON(cmdCtx, listed)
	case output.ModeMarkdown:
		return listMarkdown(cmdCtx, listed)
	default:
		return listText(cmdCtx, listed)
	}
}

// listText outputs scripts in styled text format.
func listText(cmdCtx *CommandContext, listed []listedScript) error {
	r := cmdCtx.Renderer
	loc := cmdCtx.Loc

	if len(listed) == 0 {
		r.Println(loc.T("scripts_none", nil))
		return nil
	}

	r.Header(1, fmt.Sprintf("Library (%d scripts)", len(listed)))

	for i, entry := range listed {
		s := entry.script
		r.ScriptLine(i+1, s.Title, string(s.Category), kindNames(entry.versions))
		r.Muted(fmt.Sprintf("      %s  %s", shortID(s.ID), s.CreatedAt.Format("2006-01-02")))
	}

	r.Println()
	r.Muted(loc.Tn("scripts_total", len(listed), map[string]any{"Count": len(listed)}))
	return nil
}

// listMarkdown outputs scripts in markdown format.
func listMarkdown(cmdCtx *CommandContext, listed []listedScript) error {
	r := cmdCtx.Renderer

	r.Println(output.FormatHeader(1, fmt.Sprintf("Library (%d scripts)", len(listed))))
	r.Println("")

	for _, entry := range listed {
		s := entry.script
		r.Println(output.FormatHeader(2, s.Title))
		r.Println(output.FormatKeyValue("ID", s.ID))
		if s.TitleKo != "" {
			r.Println(output.FormatKeyValue("Korean Title", s.TitleKo))
		}
		r.Println(output.FormatKeyValue("Category", string(s.Category)))
		r.Println(output.FormatKeyValue("Created", s.CreatedAt.Format("2006-01-02 15:04")))
		if kinds := kindNames(entry.versions); len(kinds) > 0 {
			r.Println(output.FormatKeyValue("Versions", strings.Join(kinds, ", ")))
		}
		if hasAudio(entry.versions) {
			r.Println(output.FormatKeyValue("Audio", "yes"))
		}
		r.Println("")
	}

	return nil
}

// listJSON outputs scripts and a summary in JSON format.
func listJSON(cmdCtx *CommandContext, listed []listedScript) error {
	r := cmdCtx.Renderer

	listOutput := output.ListOutput{
		Scripts: make([]output.ScriptInfo, 0, len(listed)),
		Summary: output.ListSummary{
			Total:      len(listed),
			ByCategory: make(map[string]int),
		},
	}

	for _, entry := range listed {
		s := entry.script
		info := output.ScriptInfo{
			ID:         s.ID,
			Title:      s.Title,
			TitleKo:    s.TitleKo,
			Category:   string(s.Category),
			SourceKind: string(s.SourceKind),
			ProjectDir: s.ProjectDir,
			CreatedAt:  s.CreatedAt.Format(time.RFC3339),
			Kinds:      kindNames(entry.versions),
			HasAudio:   hasAudio(entry.versions),
		}
		listOutput.Summary.ByCategory[string(s.Category)]++
		if info.HasAudio {
			listOutput.Summary.WithAudio++
		}
		listOutput.Scripts = append(listOutput.Scripts, info)
	}

	return r.JSON(listOutput)
}

func kindNames(versions []*core.Version) []string {
	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, string(v.Kind))
	}
	return names
}

func hasAudio(versions []*core.Version) bool {
	for _, v := range versions {
		if v.AudioPath != "" {
			return true
		}
	}
	return false
}
