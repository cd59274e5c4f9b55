package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultAnthropicBase   = "https://api.anthropic.com"
	defaultAnthropicModel  = "claude-3-5-haiku-20241022"
	anthropicVersionHeader = "2023-06-01"
)

// anthropic generates text via the messages API.
type anthropic struct {
	c      *apiClient
	apiKey string
	model  string
}

func newAnthropic(cfg Config) (*anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key not set (ANTHROPIC_API_KEY)")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultAnthropicBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropic{
		c:      newAPIClient(base, cfg.Timeout, cfg.Logger),
		apiKey: cfg.APIKey,
		model:  model,
	}, nil
}

func (p *anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	applyDefaults(&req)

	payload := anthropicRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersionHeader,
	}

	var out anthropicResponse
	if err := p.c.postJSON(ctx, "/v1/messages", headers, payload, &out); err != nil {
		return nil, fmt.Errorf("anthropic generation failed: %w", err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	result := strings.TrimSpace(text.String())
	if result == "" {
		return nil, errors.New("anthropic returned empty content")
	}

	return &Response{
		Text:  result,
		Model: out.Model,
		Usage: Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
		},
	}, nil
}
