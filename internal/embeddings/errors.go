package embeddings

import "errors"

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProviderUnavailable is returned when the model cannot be loaded or
	// fails to embed. Nothing downstream can proceed without a vector.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)
