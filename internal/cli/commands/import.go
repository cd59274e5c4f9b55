package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/frontmatter"
	"github.com/mytalk-labs/mytalk/internal/importer"
	"github.com/mytalk-labs/mytalk/internal/workspace"
)

// ImportOptions holds options for the import command.
type ImportOptions struct {
	URL    string
	File   string
	Name   string
	Stdout bool
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an article or file as source material",
		Long: `Fetch a web article or read a local file, convert it to markdown,
and save it under the workspace imports folder. The saved file is
ready for 'mytalk new --file'.`,
		Example: `  # Import an article
  mytalk import --url https://example.com/article

  # Import a local file under a custom name
  mytalk import --file ~/notes/trip.txt --name busan-trip

  # Print the extracted markdown instead of saving
  mytalk import --url https://example.com/article --stdout`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.URL, "url", "", "Web article to import")
	flags.StringVar(&opts.File, "file", "", "Local text or markdown file to import")
	flags.StringVar(&opts.Name, "name", "", "File name for the saved material (without extension)")
	flags.BoolVar(&opts.Stdout, "stdout", false, "Print the markdown instead of saving it")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	if (opts.URL == "") == (opts.File == "") {
		return errors.New("pass exactly one of --url or --file")
	}

	var (
		art *importer.Article
		err error
	)
	if opts.URL != "" {
		art, err = importer.FetchArticle(cmd.Context(), opts.URL)
	} else {
		art, err = importer.ReadFile(opts.File)
	}
	if err != nil {
		return err
	}

	body := art.Markdown
	if !strings.HasPrefix(body, "#") {
		body = fmt.Sprintf("# %s\n\n%s", art.Title, body)
	}

	if opts.Stdout {
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(map[string]string{
				"title":    art.Title,
				"source":   art.Source,
				"markdown": art.Markdown,
			})
		}
		r.Println(body)
		return nil
	}

	if err := cmdCtx.Workspace.Init(); err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = workspace.SafeTitle(art.Title)
	}

	// The header keeps the title and origin attached to the saved file,
	// so 'mytalk new --file' can restore them later.
	header := frontmatter.Render(&frontmatter.Material{
		Title:  art.Title,
		Source: art.Source,
	})

	path := filepath.Join(cmdCtx.Workspace.ImportsDir(), name+".md")
	if err := os.WriteFile(path, []byte(header+body+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to save material: %w", err)
	}

	r.Success(fmt.Sprintf("Imported %q", art.Title))
	r.Muted(fmt.Sprintf("mytalk new --file %s", displayPath(path)))
	return nil
}
