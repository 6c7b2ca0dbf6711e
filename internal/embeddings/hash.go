package embeddings

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

const (
	// HashModelVersion names the feature-hashing model.
	HashModelVersion = "feature-hash-v1"

	// DefaultHashDimension matches all-MiniLM-L6-v2 so stores are
	// interchangeable in tests.
	DefaultHashDimension = 384
)

var hashTokenPattern = regexp.MustCompile(`\w+`)

// HashBackend is a deterministic bag-of-words embedder using signed feature
// hashing. Texts sharing words have positive cosine similarity. It needs no
// model files and is used for tests and offline operation.
type HashBackend struct {
	dimension int
}

// NewHashBackend returns a hashing backend of the given dimension.
func NewHashBackend(dimension int) *HashBackend {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashBackend{dimension: dimension}
}

// EmbedTexts hashes each lowercase word into a signed bucket.
func (b *HashBackend) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = b.vector(text)
	}
	return out, nil
}

func (b *HashBackend) vector(text string) []float32 {
	v := make([]float32, b.dimension)
	tokens := hashTokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		tokens = []string{text}
	}
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(b.dimension))
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	if Norm(v) == 0 {
		// Every bucket cancelled out.
		v[0] = 1
	}
	return v
}

func (b *HashBackend) Dimension() int { return b.dimension }

func (b *HashBackend) Close() error { return nil }
