package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/store/memory"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
)

// tickingClock advances one second per reading so stored rows order
// deterministically.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *tickingClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	events *events.Recorder
	clock  *tickingClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{Provider: "hash"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = embedder.Close() })

	st := memory.New()
	rec := &events.Recorder{}
	clock := &tickingClock{t: time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)}

	svc, err := New(Deps{Store: st, Embedder: embedder, Publisher: rec}, Config{}, WithClock(clock.now))
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, events: rec, clock: clock}
}

func intPtr(v int) *int { return &v }

func (f *fixture) capture(t *testing.T, userID, title string) *store.Decision {
	t.Helper()
	d, err := f.svc.Capture(context.Background(), CaptureInput{
		UserID:          userID,
		Title:           title,
		Reasoning:       "Need more time for the product",
		ExpectedOutcome: "More time for strategy",
	})
	require.NoError(t, err)
	return d
}

func TestNew_RequiresStoreAndEmbedder(t *testing.T) {
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{Provider: "hash"}, nil)
	require.NoError(t, err)

	_, err = New(Deps{Embedder: embedder}, Config{})
	assert.Error(t, err)

	_, err = New(Deps{Store: memory.New()}, Config{})
	assert.Error(t, err)
}

func TestCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Capture(ctx, CaptureInput{
		UserID:          "u1",
		Title:           "  Hire a full-time engineer  ",
		Reasoning:       "Backlog keeps growing",
		ExpectedOutcome: "Ship twice as fast",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Hire a full-time engineer", d.Title)
	assert.Equal(t, DefaultConfidence, d.ConfidenceScore)
	assert.Equal(t, taxonomy.Irreversible, d.DecisionType)
	assert.True(t, taxonomy.DefaultTable().Has(d.Category), "category %q", d.Category)
	assert.Len(t, d.Embedding, embeddings.DefaultHashDimension)

	got, err := f.svc.GetDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Title, got.Title)

	assert.Equal(t, []string{events.DecisionCaptured}, f.events.Kinds())
	assert.Equal(t, d.ID, f.events.Events()[0].EntityID)
}

func TestCapture_ConfidenceClamped(t *testing.T) {
	tests := []struct {
		name string
		in   *int
		want int
	}{
		{"default", nil, DefaultConfidence},
		{"in range", intPtr(85), 85},
		{"above", intPtr(150), 100},
		{"below", intPtr(-3), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d, err := f.svc.Capture(context.Background(), CaptureInput{
				UserID: "u1", Title: "Redesign the logo", ConfidenceScore: tt.in,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.ConfidenceScore)
		})
	}
}

func TestCapture_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Capture(ctx, CaptureInput{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Capture(ctx, CaptureInput{UserID: "u1", Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.events.Events())
}

func TestDecisions_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetDecision(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Reflect(ctx, ReflectInput{DecisionID: "missing", ActualOutcome: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Alternative(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteDecision_CascadesReflections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.capture(t, "u1", "Outsource bookkeeping")

	_, err := f.svc.Reflect(ctx, ReflectInput{DecisionID: d.ID, ActualOutcome: "Saved a few hours"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDecision(ctx, d.ID))

	_, err = f.svc.GetDecision(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.LatestReflection(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReflect_AccuracyScore(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		override *int
		want     int
	}{
		{"computed full overlap", "more time for strategy", nil, 100},
		{"computed no overlap", "nothing changed", nil, 0},
		{"override", "nothing changed", intPtr(70), 70},
		{"override clamped high", "nothing changed", intPtr(150), 100},
		{"override clamped low", "more time for strategy", intPtr(-5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.capture(t, "u1", "Hire an assistant")

			res, err := f.svc.Reflect(context.Background(), ReflectInput{
				DecisionID:    d.ID,
				ActualOutcome: tt.actual,
				AccuracyScore: tt.override,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Reflection.AccuracyScore)
		})
	}
}

func TestReflect_Commentary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.capture(t, "u1", "Hire an assistant")

	res, err := f.svc.Reflect(ctx, ReflectInput{
		DecisionID:    d.ID,
		ActualOutcome: "Onboarding was slow and I fell behind",
		Lessons:       "  Document the process first  ",
	})
	require.NoError(t, err)

	assert.Equal(t, insights.SourceRuleBased, res.Commentary.Source)
	assert.NotEmpty(t, res.Commentary.Text)
	assert.Equal(t, d.Category, res.Category)
	assert.Equal(t, "Document the process first", res.Reflection.Lessons)
	assert.Empty(t, res.Principles)

	latest, err := f.svc.LatestReflection(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Reflection.ID, latest.ID)

	assert.Equal(t, []string{events.DecisionCaptured, events.ReflectionSubmitted}, f.events.Kinds())
}

func TestReflect_Validation(t *testing.T) {
	f := newFixture(t)
	d := f.capture(t, "u1", "Hire an assistant")

	_, err := f.svc.Reflect(context.Background(), ReflectInput{ActualOutcome: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Reflect(context.Background(), ReflectInput{DecisionID: d.ID, ActualOutcome: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReflect_ExtractsPrinciplesAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.capture(t, "u1", "Hire an assistant")

	reflect := func() *ReflectResult {
		t.Helper()
		res, err := f.svc.Reflect(ctx, ReflectInput{
			DecisionID:    d.ID,
			ActualOutcome: "Took a while",
			Lessons:       "Delegation needs a documented process",
		})
		require.NoError(t, err)
		return res
	}

	for i := 1; i < patterns.DefaultThreshold; i++ {
		assert.Empty(t, reflect().Principles, "reflection %d", i)
	}

	want := []string{
		patterns.Templates[0].Principle, // delegation
		patterns.Templates[5].Principle, // process
	}
	res := reflect()
	assert.Equal(t, want, res.Principles)

	// Same lessons again: nothing new.
	assert.Empty(t, reflect().Principles)

	stored, err := f.svc.Principles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	var texts []string
	for _, p := range stored {
		texts = append(texts, p.Description)
	}
	assert.ElementsMatch(t, want, texts)

	assert.Contains(t, f.events.Kinds(), events.PrinciplesExtracted)
	assert.Zero(t, f.svc.locks.size())
}

func TestReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture(t, "u1", "Hire an assistant for admin work")
	f.capture(t, "u1", "Hire a designer for the brand")
	f.capture(t, "u1", "Fix the billing bugs")
	f.capture(t, "u2", "Hire an assistant for admin work")

	res, err := f.svc.Replay(ctx, "u1", "hire an assistant", 2)
	require.NoError(t, err)
	require.Len(t, res.Decisions, 2)
	for _, r := range res.Decisions {
		assert.Equal(t, "u1", r.UserID)
	}
	assert.GreaterOrEqual(t, res.Decisions[0].Similarity, res.Decisions[1].Similarity)
	assert.Equal(t, insights.SourceRuleBased, res.Summary.Source)
	assert.Equal(t, "hire an assistant", res.Query)

	_, err = f.svc.Replay(ctx, "u1", "  ", 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReplay_NoHistory(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Replay(context.Background(), "nobody", "pricing", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Decisions)
	assert.Contains(t, res.Summary.Text, "No past decisions found matching 'pricing'")
}

func TestAlternative(t *testing.T) {
	f := newFixture(t)
	d := f.capture(t, "u1", "Hire an assistant")

	got, err := f.svc.Alternative(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, insights.SourceRuleBased, got.Source)
	assert.NotEmpty(t, got.Text)
}

func TestDaily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture(t, "u1", "Hire an assistant")
	f.capture(t, "u1", "Run a pricing experiment")

	res, err := f.svc.Daily(ctx, "u1", "Should I hire a full-time engineer?")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Context.SimilarDecisionsUsed)
	assert.False(t, res.Context.WeeklySummaryAvailable)
	assert.Equal(t, taxonomy.Irreversible, res.Context.DecisionType)
	assert.IsNonDecreasing(t, res.Context.TopCategories)
	assert.NotEmpty(t, res.Guidance.HighImpact)
	assert.NotEmpty(t, res.Guidance.AvoidBusyWork)
	assert.NotEmpty(t, res.Guidance.LongTermAlignment)
	assert.Equal(t, insights.SourceRuleBased, res.Guidance.Source)

	_, err = f.svc.SaveWeeklySummary(ctx, "u1", time.Time{}, patterns.DemoBreakdown)
	require.NoError(t, err)

	res, err = f.svc.Daily(ctx, "u1", "Write a blog post")
	require.NoError(t, err)
	assert.True(t, res.Context.WeeklySummaryAvailable)
	assert.Equal(t, taxonomy.Reversible, res.Context.DecisionType)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("u1")
			defer unlock()

			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.size())

	// Different keys do not block each other.
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}
