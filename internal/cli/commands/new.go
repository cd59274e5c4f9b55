package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/importer"
	"github.com/mytalk-labs/mytalk/internal/locale"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// NewCmdOptions holds options for the new command.
type NewCmdOptions struct {
	Category string
	Kinds    string
	NoAudio  bool
	File     string
	URL      string
	Image    string
	Yes      bool
}

// NewNewCommand creates the new command.
func NewNewCommand() *cobra.Command {
	opts := &NewCmdOptions{}

	cmd := &cobra.Command{
		Use:   "new [topic]",
		Short: "Create a new practice script",
		Long: `Generate an English practice script with a Korean translation.

The script is written by the configured language model, derived into the
requested practice versions (ted, podcast, daily), translated, saved to
the library, and voiced by the configured speech engine.

Without a topic or a source flag, an interactive wizard asks for the
details.`,
		Example: `  # Generate from a topic
  mytalk new "Ordering coffee at a cafe"

  # Business script without audio
  mytalk new --category business --no-audio "Negotiating a deadline"

  # Use a web article as source material
  mytalk new --url https://example.com/article

  # Original and daily versions only, from a notes file
  mytalk new --file notes.md --kinds daily

  # JSON progress events for scripting
  mytalk new "Weekend plans" --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Category, "category", "c", "", "Script category (everyday, business, travel, academic)")
	flags.StringVar(&opts.Kinds, "kinds", "", "Derived versions, comma separated (ted, podcast, daily; 'none' for the original only)")
	flags.BoolVar(&opts.NoAudio, "no-audio", false, "Skip audio synthesis")
	flags.StringVar(&opts.File, "file", "", "Generate from a text or markdown file")
	flags.StringVar(&opts.URL, "url", "", "Generate from a web article")
	flags.StringVar(&opts.Image, "image", "", "Attach an image as source reference")
	flags.BoolVarP(&opts.Yes, "yes", "y", false, "Skip the wizard and use defaults")

	return cmd
}

func runNew(cmd *cobra.Command, args []string, opts *NewCmdOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	ctx := cmd.Context()

	sources := 0
	for _, s := range []string{opts.File, opts.URL, opts.Image} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("only one of --file, --url, --image may be used")
	}

	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" && sources == 0 {
		if opts.Yes || !r.IsTTY() {
			return errors.New("a topic is required. Pass one as an argument, or run 'mytalk new' in a terminal for the wizard")
		}
		if err := runNewWizard(r, cmdCtx.Loc, opts, &topic); err != nil {
			return err
		}
	}

	req := engine.Request{
		Category: core.Category(strings.ToLower(strings.TrimSpace(opts.Category))),
		Audio:    !opts.NoAudio,
	}
	if req.Category != "" && !req.Category.Valid() {
		return fmt.Errorf("unknown category %q (available: %s)", opts.Category, categoryNames())
	}
	kinds, err := parseKinds(opts.Kinds)
	if err != nil {
		return err
	}
	req.Kinds = kinds

	switch {
	case opts.File != "":
		art, err := importer.ReadFile(opts.File)
		if err != nil {
			return err
		}
		req.Source = core.SourceFile
		req.Input = opts.File
		req.Material = art.Markdown
		// A category pinned in the material header wins over the
		// default, but never over an explicit flag.
		if req.Category == "" && art.Category != "" {
			req.Category = art.Category
		}
	case opts.URL != "":
		if r.EffectiveMode() == output.ModeText {
			r.Muted(fmt.Sprintf("Fetching %s", opts.URL))
		}
		art, err := importer.FetchArticle(ctx, opts.URL)
		if err != nil {
			return err
		}
		req.Source = core.SourceURL
		req.Input = opts.URL
		req.Material = art.Markdown
	case opts.Image != "":
		if _, err := os.Stat(opts.Image); err != nil {
			return fmt.Errorf("cannot read image: %w", err)
		}
		// Images are kept as a reference, not analyzed. The file name
		// seeds the script.
		req.Source = core.SourceImage
		req.Input = opts.Image
		req.Material = fmt.Sprintf("An image file named %q that the learner wants to describe and discuss.", filepath.Base(opts.Image))
	default:
		req.Source = core.SourceTopic
		req.Input = topic
	}

	if r.EffectiveMode() == output.ModeJSON {
		return createWithEvents(ctx, cmdCtx, req)
	}
	return createWithStatus(ctx, cmdCtx, req)
}

// createWithStatus runs the pipeline with per-step status lines and a
// human summary. Used for both text and markdown output.
func createWithStatus(ctx context.Context, cmdCtx *CommandContext, req engine.Request) error {
	r := cmdCtx.Renderer
	loc := cmdCtx.Loc
	markdown := r.EffectiveMode() == output.ModeMarkdown

	if !markdown {
		r.Muted(fmt.Sprintf("Creating your script with %s", cmdCtx.Cfg.Provider))
		req.OnProgress = func(p engine.Progress) {
			switch p.Status {
			case core.StepStatusSuccess, core.StepStatusFailed:
				r.StatusLine(stepLabel(loc, p.Step), string(p.Status), p.Detail)
			}
		}
	}

	start := time.Now()
	result, err := cmdCtx.Engine.CreateScript(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", loc.T("run_failed", nil), err)
	}

	dir := displayPath(result.Project.Dir())
	if markdown {
		r.Header(2, result.Script.Title)
		r.Println(output.FormatKeyValue("ID", result.Script.ID))
		if result.Script.TitleKo != "" {
			r.Println(output.FormatKeyValue("Korean Title", result.Script.TitleKo))
		}
		r.Println(output.FormatKeyValue("Category", string(result.Script.Category)))
		r.Println(output.FormatKeyValue("Versions", versionNames(result.Versions)))
		r.Println(output.FormatKeyValue("Folder", dir))
		return nil
	}

	r.Println()
	r.Success(loc.T("run_complete", map[string]any{"Dir": dir}))
	detail := result.Script.Title
	if result.Script.TitleKo != "" {
		detail += "  " + result.Script.TitleKo
	}
	r.Muted(detail)
	r.Muted(fmt.Sprintf("mytalk show %s  (completed in %s)", shortID(result.Script.ID), time.Since(start).Round(time.Millisecond)))
	return nil
}

// createWithEvents runs the pipeline emitting one JSON line per event
// for progress tracking.
func createWithEvents(ctx context.Context, cmdCtx *CommandContext, req engine.Request) error {
	r := cmdCtx.Renderer

	// Audio steps report from multiple goroutines.
	var mu sync.Mutex
	emit := func(event output.RunEvent) {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		mu.Lock()
		fmt.Fprintln(r.Writer(), string(data))
		mu.Unlock()
	}

	runID := fmt.Sprintf("run_%d", time.Now().UnixNano())
	start := time.Now()
	emit(output.RunEvent{Event: "run_start", RunID: runID})

	req.OnProgress = func(p engine.Progress) {
		event := output.RunEvent{
			RunID:  runID,
			Step:   p.Step,
			Status: string(p.Status),
			Done:   p.Done,
			Total:  p.Total,
		}
		if p.Status == core.StepStatusRunning {
			event.Event = "step_start"
		} else {
			event.Event = "step_complete"
		}
		if p.Status == core.StepStatusFailed {
			event.Error = p.Detail
		} else {
			event.Detail = p.Detail
		}
		emit(event)
	}

	result, runErr := cmdCtx.Engine.CreateScript(ctx, req)

	final := output.RunEvent{
		Event:     "run_complete",
		RunID:     runID,
		Status:    "completed",
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	if runErr != nil {
		final.Status = "failed"
		final.Error = runErr.Error()
	} else {
		final.ScriptID = result.Script.ID
		final.Title = result.Script.Title
		final.Dir = result.Project.Dir()
	}
	emit(final)

	return runErr
}

// runNewWizard fills in topic, category, kinds and audio interactively.
func runNewWizard(r *output.Renderer, loc *locale.Localizer, opts *NewCmdOptions, topic *string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "cancel",
	})
	if err != nil {
		return fmt.Errorf("failed to start wizard: %w", err)
	}
	defer rl.Close()

	r.Println(loc.T("new_prompt_topic", nil))
	for {
		line, err := readWizardLine(rl)
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != "" {
			*topic = strings.TrimSpace(line)
			break
		}
	}

	if opts.Category == "" {
		r.Println()
		r.Println(fmt.Sprintf("%s (%s)", loc.T("new_prompt_category", nil), categoryNames()))
		rl.SetPrompt(fmt.Sprintf("[%s] > ", core.CategoryEveryday))
		for {
			line, err := readWizardLine(rl)
			if err != nil {
				return err
			}
			line = strings.ToLower(strings.TrimSpace(line))
			if line == "" {
				opts.Category = string(core.CategoryEveryday)
				break
			}
			if core.Category(line).Valid() {
				opts.Category = line
				break
			}
			r.Warning(fmt.Sprintf("unknown category %q", line))
		}
	}

	if opts.Kinds == "" {
		r.Println()
		r.Println(fmt.Sprintf("%s (ted, podcast, daily; enter for all, 'none' for the original only)", loc.T("new_prompt_kinds", nil)))
		rl.SetPrompt("[all] > ")
		for {
			line, err := readWizardLine(rl)
			if err != nil {
				return err
			}
			line = strings.ToLower(strings.TrimSpace(line))
			if line == "" || line == "all" {
				break
			}
			if _, err := parseKinds(line); err != nil {
				r.Warning(err.Error())
				continue
			}
			opts.Kinds = line
			break
		}
	}

	r.Println()
	r.Println(loc.T("new_prompt_audio", nil))
	rl.SetPrompt("[Y/n] > ")
	line, err := readWizardLine(rl)
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "n", "no":
		opts.NoAudio = true
	}

	r.Println()
	return nil
}

// readWizardLine reads one line, treating interrupt and EOF as a
// cancelled wizard.
func readWizardLine(rl *readline.Instance) (string, error) {
	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", errors.New("cancelled")
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

// parseKinds parses the --kinds flag. Empty means every derived kind,
// "none" means the original only.
func parseKinds(s string) ([]core.VersionKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	if s == "none" {
		return []core.VersionKind{}, nil
	}
	parts := strings.Split(s, ",")
	kinds := make([]core.VersionKind, 0, len(parts))
	for _, p := range parts {
		kind := core.VersionKind(strings.TrimSpace(p))
		if kind == core.KindOriginal {
			// The original is always produced.
			continue
		}
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown version kind %q (available: ted, podcast, daily)", strings.TrimSpace(p))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// stepLabel localizes a pipeline step name for display.
func stepLabel(loc *locale.Localizer, step string) string {
	name, kindStr, _ := strings.Cut(step, ":")
	data := map[string]any{}
	if kindStr != "" {
		data["Kind"] = core.VersionKind(kindStr).Display()
	}
	switch name {
	case core.StepGenerate:
		return loc.T("step_generate", nil)
	case core.StepTranslate:
		if kindStr == "" {
			return loc.T("step_translate", nil)
		}
		return loc.T("step_translate_kind", data)
	case core.StepPersist:
		return loc.T("step_persist", nil)
	case "derive":
		return loc.T("step_derive", data)
	case "audio":
		return loc.T("step_audio", data)
	}
	return step
}

func categoryNames() string {
	cats := core.AllCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func versionNames(versions []*core.Version) string {
	names := make([]string, len(versions))
	for i, v := range versions {
		names[i] = string(v.Kind)
	}
	return strings.Join(names, ", ")
}
