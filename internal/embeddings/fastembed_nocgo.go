//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned when the binary was built without CGO.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use tei or hash provider instead)")

// FastEmbedConfig holds configuration for the FastEmbed backend.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedBackend is a stub for non-CGO builds.
type FastEmbedBackend struct{}

// NewFastEmbedBackend returns ErrFastEmbedNotAvailable.
func NewFastEmbedBackend(_ FastEmbedConfig) (*FastEmbedBackend, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (b *FastEmbedBackend) EmbedTexts(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (b *FastEmbedBackend) Dimension() int { return 0 }

func (b *FastEmbedBackend) Close() error { return nil }
