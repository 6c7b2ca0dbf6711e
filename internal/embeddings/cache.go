package embeddings

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached memoizes vectors by model version and text. Decisions are embedded
// once, but replay and daily guidance re-embed the same queries often.
type Cached struct {
	Provider
	cache *ristretto.Cache
}

// NewCached wraps p with a cache holding up to size vectors.
func NewCached(p Provider, size int) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: cache size must be positive", ErrInvalidConfig)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
		// Cost is counted in vectors.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Cached{Provider: p, cache: cache}, nil
}

func (c *Cached) key(text string) string {
	return c.Provider.ModelVersion() + "\x00" + text
}

func (c *Cached) lookup(text string) ([]float32, bool) {
	v, ok := c.cache.Get(c.key(text))
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float32)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

func (c *Cached) store(text string, vec []float32) {
	c.cache.Set(c.key(text), append([]float32(nil), vec...), 1)
}

// Embed returns the cached vector or computes and caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(text); ok {
		return vec, nil
	}
	vec, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts that miss the cache.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if vec, ok := c.lookup(t); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 && len(texts) > 0 {
		return out, nil
	}

	vecs, err := c.Provider.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		c.store(missing[j], vec)
	}
	return out, nil
}

// Wait blocks until pending cache writes are applied.
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close closes the cache and the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Close()
	return c.Provider.Close()
}
