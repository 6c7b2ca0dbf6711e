package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHashProvider(t *testing.T) Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{Provider: "hash"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestHashProvider_UnitNormAndFixedDimension(t *testing.T) {
	p := newHashProvider(t)

	texts := []string{
		"Hire a virtual assistant",
		"sign a 3-year lease",
		"!!!",
		"a",
		"fix the billing bug before launch and update the onboarding docs",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			vec, err := p.Embed(context.Background(), text)
			require.NoError(t, err)
			assert.Len(t, vec, DefaultHashDimension)
			assert.InDelta(t, 1.0, Norm(vec), 1e-5)
		})
	}
}

func TestHashProvider_Deterministic(t *testing.T) {
	p := newHashProvider(t)

	a, err := p.Embed(context.Background(), "Launch the new pricing page")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "Launch the new pricing page")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	batch, err := p.EmbedBatch(context.Background(), []string{"Launch the new pricing page"})
	require.NoError(t, err)
	assert.Equal(t, a, batch[0])
}

func TestHashProvider_SharedWordsAreCloser(t *testing.T) {
	p := newHashProvider(t)
	ctx := context.Background()

	query, err := p.Embed(ctx, "grow sales revenue")
	require.NoError(t, err)
	near, err := p.Embed(ctx, "sales revenue growth plan")
	require.NoError(t, err)
	far, err := p.Embed(ctx, "fix office printer")
	require.NoError(t, err)

	assert.Greater(t, Dot(query, near), Dot(query, far))
}

func TestHashProvider_ModelVersion(t *testing.T) {
	p := newHashProvider(t)
	assert.Equal(t, "feature-hash-v1/384", p.ModelVersion())
	assert.Equal(t, 384, p.Dimension())
}
