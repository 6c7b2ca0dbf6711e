// Package store defines the persistence contract for decisions, reflections,
// insights and weekly summaries.
//
// Backends live in subpackages: memory for tests and single-process use,
// sqlite for embedded persistence and postgres (pgvector) for production.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVectorSearchUnsupported is returned by backends that cannot rank
	// by vector distance. Callers fall back to ListEmbeddedDecisions.
	ErrVectorSearchUnsupported = errors.New("vector search unsupported")
)

// DecisionStore persists decisions.
type DecisionStore interface {
	// CreateDecision inserts d, assigning ID and CreatedAt when unset.
	CreateDecision(ctx context.Context, d *Decision) error
	GetDecision(ctx context.Context, id string) (*Decision, error)
	// ListDecisions returns the user's decisions, newest first. A
	// non-positive limit returns all.
	ListDecisions(ctx context.Context, userID string, limit int) ([]Decision, error)
	// ListDecisionsSince returns decisions created at or after since.
	ListDecisionsSince(ctx context.Context, userID string, since time.Time) ([]Decision, error)
	// ListUserIDs returns every user with at least one decision, sorted.
	ListUserIDs(ctx context.Context) ([]string, error)
	// DeleteDecision removes the decision and its reflections.
	DeleteDecision(ctx context.Context, id string) error

	// NearestDecisions returns up to k of the user's embedded decisions
	// ordered by cosine similarity descending, then id ascending.
	NearestDecisions(ctx context.Context, userID string, vector []float32, k int) ([]ScoredDecision, error)
	// ListEmbeddedDecisions returns the user's decisions with an embedding.
	ListEmbeddedDecisions(ctx context.Context, userID string) ([]Decision, error)
}

// ReflectionStore persists reflections.
type ReflectionStore interface {
	CreateReflection(ctx context.Context, r *Reflection) error
	// LatestReflection returns the newest reflection on a decision.
	LatestReflection(ctx context.Context, decisionID string) (*Reflection, error)
	// CountReflections counts reflections across the user's decisions.
	CountReflections(ctx context.Context, userID string) (int, error)
	// RecentLessons returns up to limit non-empty lessons, newest first.
	RecentLessons(ctx context.Context, userID string, limit int) ([]string, error)
}

// InsightStore persists insights and weekly summaries.
type InsightStore interface {
	CreateInsight(ctx context.Context, in *Insight) error
	// ListInsights returns insights newest first, by created_at then id.
	// An empty insightType matches every type; a non-positive limit
	// returns all.
	ListInsights(ctx context.Context, userID, insightType string, limit int) ([]Insight, error)
	DeleteInsights(ctx context.Context, ids []string) error

	CreateWeeklySummary(ctx context.Context, s *WeeklySummary) error
	LatestWeeklySummary(ctx context.Context, userID string) (*WeeklySummary, error)
}

// Store is the full persistence contract.
type Store interface {
	DecisionStore
	ReflectionStore
	InsightStore
	Close() error
}

// VectorMatch is one hit from a VectorIndex.
type VectorMatch struct {
	ID         string
	Similarity float64
}

// VectorIndex ranks precomputed vectors per user. Backends without native
// vector search delegate NearestDecisions to one.
type VectorIndex interface {
	Upsert(ctx context.Context, userID, id string, vector []float32) error
	Delete(ctx context.Context, userID, id string) error
	Nearest(ctx context.Context, userID string, vector []float32, k int) ([]VectorMatch, error)
	Close() error
}
