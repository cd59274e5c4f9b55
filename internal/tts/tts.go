// Package tts turns script text into speech audio.
//
// Four engines are supported: the OpenAI speech API, Google Cloud
// Text-to-Speech, the edge-tts command line tool, and the local system
// synthesizer (say on macOS, espeak elsewhere). A Synthesizer tries them
// in a configured order and falls back to the next engine when one is
// unavailable or fails, so script creation still produces audio on a
// machine with no API keys at all.
package tts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"
)

const (
	// DefaultTimeout bounds a single synthesis attempt. A slow engine is
	// abandoned in favor of the next one in the chain.
	DefaultTimeout = 30 * time.Second

	FormatMP3  = "mp3"
	FormatWAV  = "wav"
	FormatAIFF = "aiff"
)

// Slot selects which of the two configured voices an utterance uses.
// Dialogue scripts alternate between them; everything else speaks in the
// primary voice.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecondary
)

// Result is a completed synthesis.
type Result struct {
	Audio  []byte
	Format string
	Engine string
	Voice  string
}

// Ext returns the file extension for the result's audio format.
func (r *Result) Ext() string { return "." + r.Format }

// Engine synthesizes speech for a single utterance.
type Engine interface {
	Name() string

	// Format is the audio container the engine produces.
	Format() string

	// Available reports whether the engine can run here. A non-nil error
	// explains what is missing (an API key, a binary on PATH).
	Available() error

	// Voices lists the voice names the engine recognizes.
	Voices() []string

	// ResolveVoice maps a requested voice to one the engine accepts,
	// falling back to the engine's default for the slot when the request
	// is empty or unknown.
	ResolveVoice(requested string, slot Slot) string

	// Synthesize renders text in the given engine voice.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Cache stores synthesized audio keyed by CacheKey.
type Cache interface {
	Get(key string) (data []byte, format string, ok bool)
	Put(key, format string, data []byte) error
}

// CacheKey derives the cache key for one utterance. The engine name is
// part of the key because engines differ in output format and timbre.
func CacheKey(engine, voice, text string) string {
	sum := md5.Sum([]byte(engine + "|" + voice + "|" + text))
	return hex.EncodeToString(sum[:])
}

// Known returns the engine names in default fallback order.
func Known() []string {
	return []string{"openai", "google", "edge", "system"}
}
