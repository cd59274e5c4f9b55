package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAITTSBase = "https://api.openai.com"
	openAITTSModel       = "tts-1"

	// maxAudioBytes caps a synthesized response body.
	maxAudioBytes = 32 << 20
)

var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// OpenAIEngine speaks through the OpenAI audio API.
type OpenAIEngine struct {
	apiKey string
	base   string
	client *http.Client
}

func NewOpenAIEngine(apiKey, baseURL string) *OpenAIEngine {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = defaultOpenAITTSBase
	}
	return &OpenAIEngine{
		apiKey: apiKey,
		base:   base,
		client: &http.Client{},
	}
}

func (e *OpenAIEngine) Name() string     { return "openai" }
func (e *OpenAIEngine) Format() string   { return FormatMP3 }
func (e *OpenAIEngine) Voices() []string { return openAIVoices }

func (e *OpenAIEngine) Available() error {
	if e.apiKey == "" {
		return errors.New("OPENAI_API_KEY not set")
	}
	return nil
}

func (e *OpenAIEngine) ResolveVoice(requested string, slot Slot) string {
	for _, v := range openAIVoices {
		if requested == v {
			return requested
		}
	}
	if slot == SlotSecondary {
		return "nova"
	}
	return "alloy"
}

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (e *OpenAIEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	payload := openAISpeechRequest{
		Model:          openAITTSModel,
		Input:          text,
		Voice:          voice,
		ResponseFormat: FormatMP3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("openai speech api returned status %d: %s", resp.StatusCode, msg)
	}
	if len(data) == 0 {
		return nil, errors.New("openai speech api returned no audio")
	}
	return data, nil
}
