package taxonomy

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"go.uber.org/zap"
)

// CategoryClassifier assigns the category whose prototype is nearest to the
// text in embedding space.
type CategoryClassifier struct {
	embedder embeddings.Provider
	tables   Source
	logger   *zap.Logger

	mu         sync.Mutex
	prototypes map[prototypeKey][][]float32
}

type prototypeKey struct {
	model  string
	table  string
	digest uint64
}

// NewCategoryClassifier creates a classifier. A nil source uses the built-in
// table.
func NewCategoryClassifier(embedder embeddings.Provider, tables Source, logger *zap.Logger) *CategoryClassifier {
	if tables == nil {
		tables = DefaultTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryClassifier{
		embedder:   embedder,
		tables:     tables,
		logger:     logger,
		prototypes: make(map[prototypeKey][][]float32),
	}
}

// Classify returns exactly one category for text. Blank text gets the
// table's default without touching the embedder. Embedding failures are
// returned as-is.
func (c *CategoryClassifier) Classify(ctx context.Context, text string) (string, error) {
	table := c.tables.Current()
	if strings.TrimSpace(text) == "" {
		return table.DefaultCategory, nil
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embedding category input: %w", err)
	}
	return c.ClassifyVector(ctx, table, vec)
}

// ClassifyVector scores a precomputed unit vector against table.
func (c *CategoryClassifier) ClassifyVector(ctx context.Context, table *Table, vec []float32) (string, error) {
	protos, err := c.prototypeVectors(ctx, table)
	if err != nil {
		return "", err
	}
	if len(protos) != len(table.Categories) {
		return "", fmt.Errorf("embedding category prototypes: got %d vectors for %d categories", len(protos), len(table.Categories))
	}

	best := -1
	bestScore := 0.0
	for i, p := range protos {
		score := embeddings.Dot(vec, p)
		// Strict comparison keeps the first-declared category on ties.
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return table.DefaultCategory, nil
	}
	return table.Categories[best].Name, nil
}

// prototypeVectors embeds the table's prototypes once per model and table
// content. The version alone is not trusted: a reload may keep it while
// changing the categories.
func (c *CategoryClassifier) prototypeVectors(ctx context.Context, table *Table) ([][]float32, error) {
	key := prototypeKey{model: c.embedder.ModelVersion(), table: table.Version, digest: table.prototypeDigest()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if protos, ok := c.prototypes[key]; ok {
		return protos, nil
	}

	texts := make([]string, len(table.Categories))
	for i, cat := range table.Categories {
		texts[i] = cat.Prototype
	}
	protos, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding category prototypes: %w", err)
	}
	c.prototypes[key] = protos
	c.logger.Debug("cached category prototypes",
		zap.String("model", key.model),
		zap.String("table", key.table),
		zap.Int("categories", len(protos)))
	return protos, nil
}

// prototypeDigest hashes the ordered category names and prototypes.
func (t *Table) prototypeDigest() uint64 {
	h := fnv.New64a()
	for _, cat := range t.Categories {
		_, _ = h.Write([]byte(cat.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(cat.Prototype))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
