package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

const (
	GPT4o     ModelType = "gpt-4o"
	GPT4oMini ModelType = "gpt-4o-mini"
)

// OpenAI creates an OpenAI chat model.
func OpenAI(apiKey string, model ModelType) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = GPT4o
	}

	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to init openai client: %w", err)
	}
	return llm, nil
}
