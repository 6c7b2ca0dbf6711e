// Package storetest holds the behavioral contract every store backend must
// satisfy.
package storetest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Options adjusts the contract for backend capabilities.
type Options struct {
	// VectorSearch is false for backends that return
	// ErrVectorSearchUnsupported from NearestDecisions.
	VectorSearch bool
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func unit(x, y, z float32) []float32 {
	v := []float32{x, y, z}
	var n float32
	for _, c := range v {
		n += c * c
	}
	if n == 0 {
		return v
	}
	norm := float32(math.Sqrt(float64(n)))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func decision(user, title string, at time.Time, emb []float32) *store.Decision {
	return &store.Decision{
		UserID:          user,
		Title:           title,
		Reasoning:       "because",
		ExpectedOutcome: "it works",
		ConfidenceScore: 70,
		Category:        "Strategy",
		DecisionType:    "reversible",
		Embedding:       emb,
		CreatedAt:       at,
	}
}

// Run exercises the full store contract.
func Run(t *testing.T, newStore Factory, opts Options) {
	t.Run("DecisionRoundTrip", func(t *testing.T) { testDecisionRoundTrip(t, newStore(t)) })
	t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("Reflections", func(t *testing.T) { testReflections(t, newStore(t)) })
	t.Run("Insights", func(t *testing.T) { testInsights(t, newStore(t)) })
	t.Run("WeeklySummary", func(t *testing.T) { testWeeklySummary(t, newStore(t)) })
	t.Run("EmbeddedDecisions", func(t *testing.T) { testEmbeddedDecisions(t, newStore(t)) })
	t.Run("NearestDecisions", func(t *testing.T) { testNearest(t, newStore(t), opts) })
}

func testDecisionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	review := base.Add(14 * 24 * time.Hour)
	d := decision("u1", "Sign the lease", base, unit(1, 0, 0))
	d.Assumptions = "foot traffic"
	d.DecisionType = "irreversible"
	d.ReviewDate = &review
	require.NoError(t, s.CreateDecision(ctx, d))
	require.NotEmpty(t, d.ID)

	got, err := s.GetDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Title, got.Title)
	assert.Equal(t, "foot traffic", got.Assumptions)
	assert.Equal(t, "irreversible", got.DecisionType)
	assert.Equal(t, 70, got.ConfidenceScore)
	assert.True(t, base.Equal(got.CreatedAt))
	require.NotNil(t, got.ReviewDate)
	assert.True(t, review.Equal(*got.ReviewDate))
	require.Len(t, got.Embedding, 3)
	assert.InDelta(t, 1.0, got.Embedding[0], 1e-6)

	_, err = s.GetDecision(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testListOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateDecision(ctx, decision("u1", title, base.Add(time.Duration(i)*time.Hour), nil)))
	}
	require.NoError(t, s.CreateDecision(ctx, decision("u2", "other", base, nil)))

	all, err := s.ListDecisions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title)
	assert.Equal(t, "first", all[2].Title)

	limited, err := s.ListDecisions(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	since, err := s.ListDecisionsSince(ctx, "u1", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 2)

	users, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)
}

func testDeleteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	d := decision("u1", "Hire", base, unit(0, 1, 0))
	require.NoError(t, s.CreateDecision(ctx, d))
	require.NoError(t, s.CreateReflection(ctx, &store.Reflection{DecisionID: d.ID, ActualOutcome: "ok", CreatedAt: base}))

	require.NoError(t, s.DeleteDecision(ctx, d.ID))
	_, err := s.GetDecision(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.LatestReflection(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.CountReflections(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteDecision(ctx, d.ID), store.ErrNotFound)
}

func testReflections(t *testing.T, s store.Store) {
	ctx := context.Background()
	d := decision("u1", "Launch", base, nil)
	require.NoError(t, s.CreateDecision(ctx, d))

	err := s.CreateReflection(ctx, &store.Reflection{DecisionID: "missing", ActualOutcome: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	lessons := []string{"delegate sooner", "", "validate with customers", "  "}
	for i, l := range lessons {
		require.NoError(t, s.CreateReflection(ctx, &store.Reflection{
			DecisionID:    d.ID,
			ActualOutcome: "outcome",
			Lessons:       l,
			AccuracyScore: 40 + i,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	n, err := s.CountReflections(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	latest, err := s.LatestReflection(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 43, latest.AccuracyScore)

	got, err := s.RecentLessons(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"validate with customers", "delegate sooner"}, got)

	got, err = s.RecentLessons(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"validate with customers"}, got)
}

func testInsights(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateInsight(ctx, &store.Insight{
			UserID:      "u1",
			Type:        store.InsightPrinciple,
			Description: string(rune('a' + i)),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.CreateInsight(ctx, &store.Insight{
		UserID: "u1", Type: store.InsightWeeklyPattern, Description: "weekly", CreatedAt: base.Add(5 * time.Hour),
	}))

	principles, err := s.ListInsights(ctx, "u1", store.InsightPrinciple, 0)
	require.NoError(t, err)
	require.Len(t, principles, 3)
	assert.Equal(t, "c", principles[0].Description)
	assert.Equal(t, "a", principles[2].Description)

	all, err := s.ListInsights(ctx, "u1", "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "weekly", all[0].Description)

	require.NoError(t, s.DeleteInsights(ctx, []string{principles[2].ID, principles[1].ID}))
	require.NoError(t, s.DeleteInsights(ctx, nil))
	principles, err = s.ListInsights(ctx, "u1", store.InsightPrinciple, 0)
	require.NoError(t, err)
	require.Len(t, principles, 1)
	assert.Equal(t, "c", principles[0].Description)
}

func testWeeklySummary(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.LatestWeeklySummary(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for i, pct := range []float64{40, 55.5} {
		require.NoError(t, s.CreateWeeklySummary(ctx, &store.WeeklySummary{
			UserID:         "u1",
			WeekStart:      base.Add(time.Duration(i) * 7 * 24 * time.Hour),
			MaintenancePct: pct,
			GrowthPct:      20,
			CreatedAt:      base.Add(time.Duration(i) * 7 * 24 * time.Hour),
		}))
	}

	ws, err := s.LatestWeeklySummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 55.5, ws.MaintenancePct)
	assert.Equal(t, 20.0, ws.GrowthPct)
	assert.True(t, base.Add(7*24*time.Hour).Equal(ws.WeekStart))
}

func testEmbeddedDecisions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateDecision(ctx, decision("u1", "with", base, unit(1, 1, 0))))
	require.NoError(t, s.CreateDecision(ctx, decision("u1", "without", base, nil)))
	require.NoError(t, s.CreateDecision(ctx, decision("u2", "other user", base, unit(1, 0, 0))))

	got, err := s.ListEmbeddedDecisions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "with", got[0].Title)
}

func testNearest(t *testing.T, s store.Store, opts Options) {
	ctx := context.Background()
	require.NoError(t, s.CreateDecision(ctx, decision("u1", "east", base, unit(1, 0, 0))))
	require.NoError(t, s.CreateDecision(ctx, decision("u1", "north-east", base, unit(1, 1, 0))))
	require.NoError(t, s.CreateDecision(ctx, decision("u1", "north", base, unit(0, 1, 0))))
	require.NoError(t, s.CreateDecision(ctx, decision("u1", "unembedded", base, nil)))
	require.NoError(t, s.CreateDecision(ctx, decision("u2", "foreign east", base, unit(1, 0, 0))))

	got, err := s.NearestDecisions(ctx, "u1", unit(1, 0.1, 0), 2)
	if !opts.VectorSearch {
		assert.ErrorIs(t, err, store.ErrVectorSearchUnsupported)
		return
	}
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "east", got[0].Title)
	assert.Equal(t, "north-east", got[1].Title)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
	assert.InDelta(t, 0.995, got[0].Similarity, 0.01)

	all, err := s.NearestDecisions(ctx, "u1", unit(1, 0.1, 0), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
