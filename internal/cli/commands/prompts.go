package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/prompt"
)

// PromptInfo describes one prompt template for JSON output.
type PromptInfo struct {
	Name   string   `json:"name"`
	Args   []string `json:"args"`
	Doc    string   `json:"doc,omitempty"`
	Source string   `json:"source"`
}

// NewPromptsCommand creates the prompts command group.
func NewPromptsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect the prompt templates",
		Long: `Inspect the Starlark prompt templates that drive generation.

Built-in templates can be overridden by dropping .star files in the
prompts directory. A file function named like a built-in replaces it.`,
	}

	cmd.AddCommand(newPromptsListCommand())
	cmd.AddCommand(newPromptsRenderCommand())

	return cmd
}

func newPromptsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available prompt templates",
		Example: `  mytalk prompts list
  mytalk prompts list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPromptsList(cmd)
		},
	}
}

func runPromptsList(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	registry, err := prompt.Load(cmdCtx.Cfg.PromptsDir)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	templates := registry.List()

	switch r.EffectiveMode() {
	case output.ModeJSON:
		infos := make([]PromptInfo, 0, len(templates))
		for _, t := range templates {
			infos = append(infos, PromptInfo{Name: t.Name, Args: t.Args, Doc: t.Doc, Source: t.Source})
		}
		return r.JSON(infos)

	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Prompt Templates"))
		r.Println("")
		for _, t := range templates {
			r.Println(output.FormatHeader(2, t.Name))
			r.Println(output.FormatKeyValue("Args", strings.Join(t.Args, ", ")))
			r.Println(output.FormatKeyValue("Source", t.Source))
			if t.Doc != "" {
				r.Println(output.FormatKeyValue("Doc", t.Doc))
			}
			r.Println("")
		}
		return nil

	default:
		r.Header(1, "Prompt Templates")
		for _, t := range templates {
			r.StatusLine(fmt.Sprintf("%s(%s)", t.Name, strings.Join(t.Args, ", ")), "ok", t.Source)
		}
		r.Println()
		r.Muted(fmt.Sprintf("Override by adding .star files under %s", cmdCtx.Cfg.PromptsDir))
		return nil
	}
}

func newPromptsRenderCommand() *cobra.Command {
	var args []string

	cmd := &cobra.Command{
		Use:   "render <name>",
		Short: "Render a prompt template with arguments",
		Long: `Render a prompt template and print the text that would be sent to
the language model. Arguments are passed as --arg key=value.`,
		Example: `  mytalk prompts render original --arg topic="Ordering coffee" --arg category=everyday
  mytalk prompts render translate --arg text="Nice to meet you."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			return runPromptsRender(cmd, posArgs[0], args)
		},
	}

	cmd.Flags().StringArrayVar(&args, "arg", nil, "Template argument as key=value (repeatable)")

	return cmd
}

func runPromptsRender(cmd *cobra.Command, name string, rawArgs []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	kwargs := make(map[string]string, len(rawArgs))
	for _, raw := range rawArgs {
		key, value, found := strings.Cut(raw, "=")
		if !found || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid --arg %q, expected key=value", raw)
		}
		kwargs[strings.TrimSpace(key)] = value
	}

	registry, err := prompt.Load(cmdCtx.Cfg.PromptsDir)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	text, err := registry.Render(name, kwargs)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"name": name, "prompt": text})
	}
	r.Println(text)
	return nil
}
