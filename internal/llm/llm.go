// Package llm provides text generation behind a single provider interface.
// Providers talk to hosted APIs (OpenAI, Anthropic, Gemini) over plain HTTP
// with bounded retry.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Request defaults applied when fields are zero.
const (
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
	DefaultTimeout     = 120 * time.Second
)

// Request is a single text generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption for a call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the generated text plus metadata.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config builds a provider.
type Config struct {
	Provider string // openai, anthropic, or gemini
	APIKey   string
	Model    string        // empty for the provider default
	BaseURL  string        // override for tests
	Timeout  time.Duration // per-request, 0 for DefaultTimeout
	Logger   *slog.Logger
}

// Known returns the supported provider names.
func Known() []string {
	return []string{"openai", "anthropic", "gemini"}
}

// New constructs a provider from config.
func New(cfg Config) (Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return newOpenAI(cfg)
	case "anthropic":
		return newAnthropic(cfg)
	case "gemini":
		return newGemini(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// applyDefaults fills zero request fields.
func applyDefaults(req *Request) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if req.Temperature <= 0 {
		req.Temperature = DefaultTemperature
	}
}
