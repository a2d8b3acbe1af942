package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// NewOllamaClient creates a client for a locally hosted Ollama model.
// The same constructor serves both the chat model and the embedding
// model; callers pass the model name they need.
func NewOllamaClient(baseURL, model string) (*ollama.LLM, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama model name is empty")
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return llm, nil
}
