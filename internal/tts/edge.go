package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var edgeVoices = []string{
	"en-US-JennyNeural",
	"en-US-GuyNeural",
	"en-US-AriaNeural",
	"en-GB-SoniaNeural",
	"en-AU-NatashaNeural",
}

// EdgeEngine shells out to the edge-tts command line tool, which uses
// the free Microsoft Edge speech service.
type EdgeEngine struct {
	bin string
}

func NewEdgeEngine() *EdgeEngine {
	bin, _ := exec.LookPath("edge-tts")
	return &EdgeEngine{bin: bin}
}

func (e *EdgeEngine) Name() string     { return "edge" }
func (e *EdgeEngine) Format() string   { return FormatMP3 }
func (e *EdgeEngine) Voices() []string { return edgeVoices }

func (e *EdgeEngine) Available() error {
	if e.bin == "" {
		return errors.New(`edge-tts not found on PATH (install with "pip install edge-tts")`)
	}
	return nil
}

func (e *EdgeEngine) ResolveVoice(requested string, slot Slot) string {
	if strings.Contains(requested, "Neural") {
		return requested
	}
	if slot == SlotSecondary {
		return "en-US-GuyNeural"
	}
	return "en-US-JennyNeural"
}

func (e *EdgeEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	out, cleanup, err := tempAudioFile("mytalk-edge-*.mp3")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, e.bin,
		"--voice", voice,
		"--text", text,
		"--write-media", out,
	)
	if err := runCaptured(cmd); err != nil {
		return nil, fmt.Errorf("edge-tts failed: %w", err)
	}
	return readAudioFile(out)
}

// tempAudioFile reserves a temp path for a synthesizer to write into.
func tempAudioFile(pattern string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path = f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}

func readAudioFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("no audio was written")
	}
	return data, nil
}

// runCaptured runs a command, folding its stderr into the error.
func runCaptured(cmd *exec.Cmd) error {
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
