package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

var googleVoices = []string{
	"en-US-Neural2-C",
	"en-US-Neural2-D",
	"en-US-Standard-C",
	"en-US-Standard-D",
	"en-GB-Neural2-A",
}

// GoogleEngine speaks through the Google Cloud Text-to-Speech API.
type GoogleEngine struct {
	apiKey string

	mu  sync.Mutex
	svc *texttospeech.Service
}

func NewGoogleEngine(apiKey string) *GoogleEngine {
	return &GoogleEngine{apiKey: apiKey}
}

func (e *GoogleEngine) Name() string     { return "google" }
func (e *GoogleEngine) Format() string   { return FormatMP3 }
func (e *GoogleEngine) Voices() []string { return googleVoices }

func (e *GoogleEngine) Available() error {
	if e.apiKey == "" {
		return errors.New("GOOGLE_TTS_API_KEY not set")
	}
	return nil
}

// ResolveVoice accepts any locale-prefixed Google voice name and maps
// everything else to a Neural2 default.
func (e *GoogleEngine) ResolveVoice(requested string, slot Slot) string {
	if strings.HasPrefix(requested, "en-") {
		return requested
	}
	if slot == SlotSecondary {
		return "en-US-Neural2-D"
	}
	return "en-US-Neural2-C"
}

func (e *GoogleEngine) service(ctx context.Context) (*texttospeech.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.svc != nil {
		return e.svc, nil
	}
	svc, err := texttospeech.NewService(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create texttospeech client: %w", err)
	}
	e.svc = svc
	return svc, nil
}

func (e *GoogleEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	svc, err := e.service(ctx)
	if err != nil {
		return nil, err
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: languageCodeOf(voice),
			Name:         voice,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}

	resp, err := svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google speech request failed: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("google speech api returned no audio")
	}
	return data, nil
}

// languageCodeOf extracts the BCP-47 prefix from a voice name like
// "en-US-Neural2-C".
func languageCodeOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}
