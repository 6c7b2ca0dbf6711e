package generation

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "mistral"

// OllamaConfig configures a local Ollama server.
type OllamaConfig struct {
	Model string
	// ServerURL defaults to langchaingo's http://localhost:11434.
	ServerURL string
}

// Ollama generates text through langchaingo's Ollama client.
type Ollama struct {
	llm *ollama.LLM
}

// NewOllama returns a provider. No request is made.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &Ollama{llm: llm}, nil
}

// Generate runs a single-prompt completion.
func (o *Ollama) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(defaultTemperature),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out, nil
}
