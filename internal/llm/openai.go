package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultOpenAIBase  = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o-mini"
)

// openAI generates text via the chat completions API.
type openAI struct {
	c      *apiClient
	apiKey string
	model  string
}

func newOpenAI(cfg Config) (*openAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key not set (OPENAI_API_KEY)")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAI{
		c:      newAPIClient(base, cfg.Timeout, cfg.Logger),
		apiKey: cfg.APIKey,
		model:  model,
	}, nil
}

func (p *openAI) Name() string { return "openai" }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *openAI) Generate(ctx context.Context, req Request) (*Response, error) {
	applyDefaults(&req)

	payload := openAIChatRequest{
		Model:       p.model,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}

	var out openAIChatResponse
	if err := p.c.postJSON(ctx, "/v1/chat/completions", headers, payload, &out); err != nil {
		return nil, fmt.Errorf("openai generation failed: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return nil, errors.New("openai returned empty content")
	}

	return &Response{
		Text:  text,
		Model: out.Model,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		},
	}, nil
}
