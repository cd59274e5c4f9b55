package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
)

// EngineInfo describes one speech engine for JSON output.
type EngineInfo struct {
	Name   string   `json:"name"`
	Format string   `json:"format"`
	Ready  bool     `json:"ready"`
	Detail string   `json:"detail,omitempty"`
	Voices []string `json:"voices,omitempty"`
}

// NewTTSCommand creates the tts command group.
func NewTTSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tts",
		Short: "Inspect and try the speech engines",
	}

	cmd.AddCommand(newTTSEnginesCommand())
	cmd.AddCommand(newTTSSayCommand())

	return cmd
}

func newTTSEnginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List speech engines in fallback order",
		Long: `List the configured speech engine chain. The first ready engine
synthesizes audio; later ones are fallbacks.`,
		Example: `  mytalk tts engines
  mytalk tts engines --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTTSEngines(cmd)
		},
	}
}

func runTTSEngines(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	speaker, err := createSpeaker(cmdCtx.Cfg, cmdCtx.Workspace, cmdCtx.Logger)
	if err != nil {
		return err
	}
	statuses := speaker.Engines()

	switch r.EffectiveMode() {
	case output.ModeJSON:
		infos := make([]EngineInfo, 0, len(statuses))
		for _, st := range statuses {
			infos = append(infos, EngineInfo{
				Name:   st.Name,
				Format: st.Format,
				Ready:  st.Ready,
				Detail: st.Detail,
				Voices: st.Voices,
			})
		}
		return r.JSON(infos)

	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Speech Engines"))
		r.Println("")
		for _, st := range statuses {
			state := "ready"
			if !st.Ready {
				state = "unavailable"
				if st.Detail != "" {
					state += " (" + st.Detail + ")"
				}
			}
			r.Println(output.FormatKeyValue(st.Name, state))
		}
		return nil

	default:
		r.Header(1, "Speech Engines")
		for _, st := range statuses {
			status := "success"
			detail := st.Format
			if !st.Ready {
				status = "pending"
				detail = st.Detail
			}
			r.StatusLine(st.Name, status, detail)
		}
		r.Println()
		r.Muted("Order follows tts.engine and tts.fallback in mytalk.yaml")
		return nil
	}
}

func newTTSSayCommand() *cobra.Command {
	var (
		voice   string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize a phrase to an audio file",
		Long: `Synthesize a phrase with the configured engine chain and write the
audio to a file. Handy for checking voices before generating a full
script.`,
		Example: `  mytalk tts say "Good morning! How was your weekend?"
  mytalk tts say "안녕하세요" --voice nova --out hello.mp3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTTSSay(cmd, strings.Join(args, " "), voice, outFile)
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "Voice to use (engine specific)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output file (default say-<timestamp>.<format>)")

	return cmd
}

func runTTSSay(cmd *cobra.Command, text, voice, outFile string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	cfg := cmdCtx.Cfg
	if voice != "" {
		cfg.TTS.Voice = voice
	}

	speaker, err := createSpeaker(cfg, cmdCtx.Workspace, cmdCtx.Logger)
	if err != nil {
		return err
	}

	var spinner *output.Spinner
	if r.EffectiveMode() == output.ModeText {
		spinner = r.NewSpinner("Synthesizing...")
		spinner.Start()
	}

	result, err := speaker.Speak(cmd.Context(), text)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Synthesis failed")
		}
		return err
	}

	if outFile == "" {
		outFile = fmt.Sprintf("say-%s%s", time.Now().Format("20060102-150405"), result.Ext())
	}
	if err := os.WriteFile(outFile, result.Audio, 0o600); err != nil {
		if spinner != nil {
			spinner.Fail("Could not write audio")
		}
		return fmt.Errorf("failed to write audio: %w", err)
	}

	if spinner != nil {
		spinner.Success(fmt.Sprintf("Saved %s (%s, %s)", outFile, result.Engine, result.Voice))
		return nil
	}
	r.Success(fmt.Sprintf("Saved %s (%s, %s)", outFile, result.Engine, result.Voice))
	return nil
}
