// Package clients wraps the language-model providers behind a single
// completion interface.
package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/failure"
)

// CompletionRequest is one system plus user prompt exchange.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer returns the model's text answer for a request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// LangChain adapts a langchaingo model to Completer.
type LangChain struct {
	Model llms.Model
}

// Complete sends the request as a system message followed by a human message.
func (l *LangChain) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	prompts := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		prompts = append(prompts, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	prompts = append(prompts, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := l.Model.GenerateContent(ctx, prompts, opts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// ClassifyFailure implements failure.Classifier.
func (l *LangChain) ClassifyFailure(err error) failure.Class {
	return ClassifyFailure(err)
}

// NewCompleter builds the Completer for cfg.LLMProvider using model.
func NewCompleter(ctx context.Context, cfg *config.Config, model string) (Completer, error) {
	switch cfg.LLMProvider {
	case "anthropic", "claude":
		llm, err := AnthropicAI(cfg.AnthropicApiKey, ModelType(model))
		if err != nil {
			return nil, err
		}
		return &LangChain{Model: llm}, nil
	case "google", "googleai":
		llm, err := GoogleAi(ctx, cfg.GoogleApiKey, ModelType(model))
		if err != nil {
			return nil, err
		}
		return &LangChain{Model: llm}, nil
	case "openai":
		llm, err := OpenAI(cfg.OpenAIApiKey, ModelType(model))
		if err != nil {
			return nil, err
		}
		return &LangChain{Model: llm}, nil
	case "genai":
		return NewGenAI(ctx, cfg.GoogleApiKey, model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}
