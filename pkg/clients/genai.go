package clients

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/mikeboe/research-bot/pkg/failure"
)

// GenAI calls Gemini through the native Google Gen AI SDK.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a GenAI completer for the Gemini API backend.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = string(DefaultModel)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

// Complete implements Completer.
func (g *GenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("genai generation failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned no text")
	}
	return text, nil
}

// ClassifyFailure implements failure.Classifier.
func (g *GenAI) ClassifyFailure(err error) failure.Class {
	return ClassifyFailure(err)
}
