package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	defaultGeminiBase  = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-1.5-flash"
)

// gemini generates text via the generateContent API.
type gemini struct {
	c      *apiClient
	apiKey string
	model  string
}

func newGemini(cfg Config) (*gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key not set (GEMINI_API_KEY)")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultGeminiBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &gemini{
		c:      newAPIClient(base, cfg.Timeout, cfg.Logger),
		apiKey: cfg.APIKey,
		model:  model,
	}, nil
}

func (p *gemini) Name() string { return "gemini" }

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (p *gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	applyDefaults(&req)

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	headers := map[string]string{"x-goog-api-key": p.apiKey}
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", p.model)

	var out geminiResponse
	if err := p.c.postJSON(ctx, path, headers, payload, &out); err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(out.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	result := strings.TrimSpace(text.String())
	if result == "" {
		return nil, errors.New("gemini returned empty content")
	}

	model := out.ModelVersion
	if model == "" {
		model = p.model
	}

	return &Response{
		Text:  result,
		Model: model,
		Usage: Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}
