// Package generation provides text generation providers.
//
// Callers treat every provider as an opaque, fallible function from a
// prompt and token budget to plain text. No structured output is assumed.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrGenerationFailed wraps every provider failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNotConfigured is returned by the no-op provider.
	ErrNotConfigured = errors.New("generation provider not configured")
)

// Generator produces text for a prompt within maxTokens.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// Noop always fails. It is used when no provider is configured so that
// every caller takes its deterministic path.
type Noop struct{}

// Generate returns ErrNotConfigured.
func (Noop) Generate(context.Context, string, int) (string, error) {
	return "", ErrNotConfigured
}
