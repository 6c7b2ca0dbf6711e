// Package vectorstore provides per-user vector indexes backed by an embedded
// chromem-go database or a Qdrant server.
//
// Vectors are always supplied by the caller. The index never embeds text.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

var chromemTracer = otel.Tracer("decisiond.vectorstore.chromem")

var (
	// ErrMissingUser is returned when an operation has no user id.
	ErrMissingUser = errors.New("user id is required")

	// errNoEmbeddingFunc is returned if chromem is ever asked to embed text.
	errNoEmbeddingFunc = errors.New("vectorstore: embeddings must be precomputed")
)

// ChromemConfig configures the index.
type ChromemConfig struct {
	// Path enables gob persistence under this directory. Empty keeps the
	// index in memory.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// ChromemIndex keeps one chromem collection per user.
type ChromemIndex struct {
	db     *chromem.DB
	logger *zap.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

var _ store.VectorIndex = (*ChromemIndex)(nil)

// NewChromemIndex creates an index.
func NewChromemIndex(cfg ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	logger.Info("chromem index initialized",
		zap.String("path", cfg.Path),
		zap.Bool("persistent", cfg.Path != ""),
	)
	return &ChromemIndex{db: db, logger: logger, collections: make(map[string]*chromem.Collection)}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// collection returns the user's collection, creating it on first use.
func (x *ChromemIndex) collection(userID string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, ok := x.collections[userID]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[userID]; ok {
		return col, nil
	}
	col, err := x.db.GetOrCreateCollection(collectionName(userID), nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection for %s: %w", userID, err)
	}
	x.collections[userID] = col
	return col, nil
}

// Upsert stores or replaces the vector for id.
func (x *ChromemIndex) Upsert(ctx context.Context, userID, id string, vector []float32) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()

	if userID == "" {
		return ErrMissingUser
	}
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for %s", id)
	}
	col, err := x.collection(userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// chromem normalizes in place; keep the caller's slice intact.
	vec := append([]float32(nil), vector...)
	if err := col.AddDocument(ctx, chromem.Document{ID: id, Embedding: vec, Content: id}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		indexOps.WithLabelValues("upsert", "error").Inc()
		return fmt.Errorf("adding %s: %w", id, err)
	}
	indexOps.WithLabelValues("upsert", "ok").Inc()
	return nil
}

// Delete removes id. Unknown ids are ignored.
func (x *ChromemIndex) Delete(ctx context.Context, userID, id string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Delete")
	defer span.End()

	if userID == "" {
		return ErrMissingUser
	}
	col, err := x.collection(userID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		span.RecordError(err)
		indexOps.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	indexOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Nearest returns up to k matches ordered by similarity descending, then
// id ascending.
func (x *ChromemIndex) Nearest(ctx context.Context, userID string, vector []float32, k int) ([]store.VectorMatch, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Nearest")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.Int("k", k))

	if userID == "" {
		return nil, ErrMissingUser
	}
	if k <= 0 {
		return []store.VectorMatch{}, nil
	}
	col, err := x.collection(userID)
	if err != nil {
		return nil, err
	}

	// chromem picks arbitrarily among equal scores, so rank the whole
	// collection and cut to k after the id tie-break.
	count := col.Count()
	if count == 0 {
		return []store.VectorMatch{}, nil
	}

	query := append([]float32(nil), vector...)
	results, err := col.QueryEmbedding(ctx, query, count, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		indexOps.WithLabelValues("query", "error").Inc()
		return nil, fmt.Errorf("querying collection for %s: %w", userID, err)
	}

	matches := make([]store.VectorMatch, len(results))
	for i, r := range results {
		matches[i] = store.VectorMatch{ID: r.ID, Similarity: embeddings.Cosine(vector, r.Embedding)}
	}
	store.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	indexOps.WithLabelValues("query", "ok").Inc()

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	x.logger.Debug("queried chromem index",
		zap.String("user_id", userID),
		zap.Int("k", k),
		zap.Int("results", len(matches)),
	)
	return matches, nil
}

// Count returns the number of vectors indexed for the user.
func (x *ChromemIndex) Count(userID string) int {
	col, err := x.collection(userID)
	if err != nil {
		return 0
	}
	return col.Count()
}

// Close is a no-op; persistent data is written on every change.
func (x *ChromemIndex) Close() error {
	return nil
}
