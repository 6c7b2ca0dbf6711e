package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTEIBackend_EmbedTexts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Inputs))
		for i := range out {
			out[i] = []float32{3, 4, 0}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderConfig{Provider: "tei", BaseURL: srv.URL + "/", Dimension: 3}, nil)
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0}, vecs[0], 1e-6)
}

func TestTEIBackend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderConfig{Provider: "tei", BaseURL: srv.URL, Dimension: 3}, nil)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "503")
}

func TestNewTEIBackend_Validation(t *testing.T) {
	_, err := NewTEIBackend(TEIConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTEIBackend(TEIConfig{BaseURL: "http://localhost:8080", Model: "custom/model"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	b, err := NewTEIBackend(TEIConfig{BaseURL: "http://localhost:8080", Model: DefaultFastEmbedModel})
	require.NoError(t, err)
	assert.Equal(t, 384, b.Dimension())
}
