package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// SystemEngine uses the operating system's speech synthesizer: say on
// macOS, espeak or espeak-ng elsewhere. It needs no network and serves
// as the last fallback in the chain.
type SystemEngine struct {
	goos string
	bin  string
}

func NewSystemEngine() *SystemEngine {
	e := &SystemEngine{goos: runtime.GOOS}
	switch e.goos {
	case "darwin":
		e.bin, _ = exec.LookPath("say")
	default:
		for _, name := range []string{"espeak", "espeak-ng"} {
			if bin, err := exec.LookPath(name); err == nil {
				e.bin = bin
				break
			}
		}
	}
	return e
}

func (e *SystemEngine) Name() string { return "system" }

func (e *SystemEngine) Format() string {
	if e.goos == "darwin" {
		return FormatAIFF
	}
	return FormatWAV
}

func (e *SystemEngine) Voices() []string {
	if e.goos == "darwin" {
		return []string{"Samantha", "Alex", "Karen", "Daniel"}
	}
	return []string{"en-us", "en-gb", "en+f3", "en+m3"}
}

func (e *SystemEngine) Available() error {
	if e.bin == "" {
		if e.goos == "darwin" {
			return errors.New("say not found on PATH")
		}
		return errors.New("espeak not found on PATH (install espeak or espeak-ng)")
	}
	return nil
}

func (e *SystemEngine) ResolveVoice(requested string, slot Slot) string {
	for _, v := range e.Voices() {
		if requested == v {
			return requested
		}
	}
	voices := e.Voices()
	if slot == SlotSecondary {
		return voices[1]
	}
	return voices[0]
}

func (e *SystemEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	out, cleanup, err := tempAudioFile("mytalk-sys-*." + e.Format())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var cmd *exec.Cmd
	if e.goos == "darwin" {
		cmd = exec.CommandContext(ctx, e.bin, "-v", voice, "-o", out, text)
	} else {
		cmd = exec.CommandContext(ctx, e.bin, "-v", voice, "-w", out, text)
	}
	if err := runCaptured(cmd); err != nil {
		return nil, fmt.Errorf("system synthesizer failed: %w", err)
	}
	return readAudioFile(out)
}
