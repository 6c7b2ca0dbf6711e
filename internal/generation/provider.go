package generation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/redact"
)

// Config selects and tunes the generation provider.
type Config struct {
	// Provider is one of huggingface, openai, anthropic, ollama or noop.
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	// Redactor, when set, scrubs prompts before they leave the process.
	Redactor *redact.Redactor
}

// New builds the configured provider wrapped in Resilient. Hosted
// providers without credentials degrade to Noop so every caller takes its
// deterministic path.
func New(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		next Generator
		err  error
	)
	switch cfg.Provider {
	case "noop":
		return Noop{}, nil
	case "huggingface", "":
		next, err = NewHuggingFace(HuggingFaceConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "openai":
		next, err = NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "anthropic":
		next, err = NewAnthropic(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "ollama":
		next, err = NewOllama(OllamaConfig{Model: cfg.Model, ServerURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported generation provider: %q", cfg.Provider)
	}
	if err != nil {
		logger.Warn("generation disabled, using rule-based fallbacks",
			zap.String("provider", cfg.Provider),
			zap.Error(err))
		return Noop{}, nil
	}

	name := cfg.Provider
	if name == "" {
		name = "huggingface"
	}
	opts := []ResilientOption{
		WithName(name),
		WithLogger(logger),
		WithMetrics(NewMetrics(logger)),
		WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.Redactor != nil {
		opts = append(opts, WithRedactor(cfg.Redactor))
	}
	if cfg.RateLimit != 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	return NewResilient(next, opts...), nil
}
