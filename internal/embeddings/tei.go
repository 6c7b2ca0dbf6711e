package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TEIConfig configures a HuggingFace Text Embeddings Inference backend.
type TEIConfig struct {
	BaseURL string
	Model   string
	// Dimension is required unless the model is a known FastEmbed model.
	Dimension int
	Timeout   time.Duration
}

// TEIBackend calls a TEI server's /embed endpoint.
type TEIBackend struct {
	baseURL   string
	dimension int
	client    *http.Client
}

type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// NewTEIBackend validates cfg and returns a backend. No request is made.
func NewTEIBackend(cfg TEIConfig) (*TEIBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	dim := cfg.Dimension
	if dim <= 0 {
		known, ok := FastEmbedDimension(cfg.Model)
		if !ok {
			return nil, fmt.Errorf("%w: dimension required for model %q", ErrInvalidConfig, cfg.Model)
		}
		dim = known
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TEIBackend{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		dimension: dim,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// EmbedTexts posts texts to /embed.
func (b *TEIBackend) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tei request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tei status %d: %s", resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

func (b *TEIBackend) Dimension() int { return b.dimension }

// Close is a no-op; TEI is stateless HTTP.
func (b *TEIBackend) Close() error { return nil }
