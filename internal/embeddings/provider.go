// Package embeddings turns text into unit-normalized vectors.
//
// A Provider is constructed explicitly and injected. Backends that are
// expensive to load are wrapped in Lazy, which initializes them exactly once
// on first use.
package embeddings

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider produces unit-normalized embeddings of a fixed dimension.
type Provider interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding dimension.
	Dimension() int
	// ModelVersion identifies the model; equal versions give equal vectors.
	ModelVersion() string
	// Close releases resources held by the provider.
	Close() error
}

// Backend is a raw embedding model. Its output need not be normalized.
type Backend interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the backend type: "fastembed", "tei" or "hash".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the TEI URL.
	BaseURL string
	// CacheDir is the FastEmbed model cache directory.
	CacheDir string
	// Dimension is the expected vector size. Zero accepts the backend's.
	Dimension int
	// QueryCacheSize enables the query vector cache when positive.
	QueryCacheSize int
}

// NewProvider builds a lazily initialized provider for the configured
// backend. The backend is not loaded until the first embed call.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var factory func() (Backend, error)
	model := cfg.Model

	switch cfg.Provider {
	case "fastembed", "":
		if model == "" {
			model = DefaultFastEmbedModel
		}
		factory = func() (Backend, error) {
			return NewFastEmbedBackend(FastEmbedConfig{Model: model, CacheDir: cfg.CacheDir})
		}
	case "tei":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: base URL required for tei", ErrInvalidConfig)
		}
		factory = func() (Backend, error) {
			return NewTEIBackend(TEIConfig{BaseURL: cfg.BaseURL, Model: model, Dimension: cfg.Dimension})
		}
	case "hash":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = DefaultHashDimension
		}
		model = fmt.Sprintf("%s/%d", HashModelVersion, dim)
		factory = func() (Backend, error) {
			return NewHashBackend(dim), nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	var p Provider = NewLazy(model, cfg.Dimension, factory, WithLogger(logger))
	if cfg.QueryCacheSize > 0 {
		cached, err := NewCached(p, cfg.QueryCacheSize)
		if err != nil {
			return nil, err
		}
		p = cached
	}
	return p, nil
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
