// Package retrieval ranks a user's past decisions by semantic similarity to
// a query and enriches each hit with its latest reflection.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultK is used when the caller passes a non-positive k.
	DefaultK = 5
	// MaxK caps a single retrieval.
	MaxK = 50
)

var tracer = otel.Tracer("decisiond.retrieval")

// Result is one retrieved decision with the fields merged from its
// reflection. ActualOutcome and Lessons are empty when none exists.
type Result struct {
	store.Decision
	Similarity    float64 `json:"similarity"`
	ActualOutcome string  `json:"actual_outcome,omitempty"`
	Lessons       string  `json:"lessons,omitempty"`
	Reflected     bool    `json:"-"`
}

// Retriever finds similar decisions.
type Retriever struct {
	embedder embeddings.Provider
	store    store.Store
	logger   *zap.Logger
}

// New creates a Retriever.
func New(embedder embeddings.Provider, st store.Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: st, logger: logger}
}

// FindSimilar embeds query and returns up to k of the user's decisions,
// most similar first. Embedding failures are returned; vector query
// failures degrade to in-memory ranking.
func (r *Retriever) FindSimilar(ctx context.Context, userID, query string, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Retriever.FindSimilar")
	defer span.End()

	k = clampK(k)
	span.SetAttributes(attribute.String("user_id", userID), attribute.Int("k", k))

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query: %w", embeddings.ErrEmptyInput)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return r.FindSimilarVector(ctx, userID, vec, k)
}

// FindSimilarVector is FindSimilar for a precomputed query vector.
func (r *Retriever) FindSimilarVector(ctx context.Context, userID string, vec []float32, k int) ([]Result, error) {
	k = clampK(k)

	scored, err := r.store.NearestDecisions(ctx, userID, vec, k)
	if err != nil {
		reason := "error"
		if errors.Is(err, store.ErrVectorSearchUnsupported) {
			reason = "unsupported"
		} else {
			r.logger.Warn("vector query failed, ranking in memory",
				zap.String("user_id", userID), zap.Error(err))
		}
		fallbackTotal.WithLabelValues(reason).Inc()

		candidates, lerr := r.store.ListEmbeddedDecisions(ctx, userID)
		if lerr != nil {
			return nil, fmt.Errorf("listing candidates: %w", errors.Join(err, lerr))
		}
		scored = RankBySimilarity(vec, candidates, k)
	}

	for i := range scored {
		scored[i].Similarity = round4(scored[i].Similarity)
	}
	store.SortScored(scored)

	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		res := Result{Decision: s.Decision, Similarity: s.Similarity}
		refl, err := r.store.LatestReflection(ctx, s.ID)
		switch {
		case err == nil:
			res.ActualOutcome = refl.ActualOutcome
			res.Lessons = refl.Lessons
			res.Reflected = true
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("loading reflection for %s: %w", s.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RankBySimilarity scores candidates against vec by cosine similarity and
// returns the top k, ordered like the store-native path. Candidates without
// an embedding or with a mismatched dimension are skipped.
func RankBySimilarity(vec []float32, candidates []store.Decision, k int) []store.ScoredDecision {
	scored := make([]store.ScoredDecision, 0, len(candidates))
	for _, d := range candidates {
		if len(d.Embedding) == 0 || len(d.Embedding) != len(vec) {
			continue
		}
		scored = append(scored, store.ScoredDecision{
			Decision:   d,
			Similarity: embeddings.Cosine(vec, d.Embedding),
		})
	}
	store.SortScored(scored)
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func clampK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	if k > MaxK {
		return MaxK
	}
	return k
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
