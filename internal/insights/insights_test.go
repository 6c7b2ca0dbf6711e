package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/generation"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
)

const goodAnswer = "You expected delegation to free up strategic time, but the hours went into onboarding. " +
	"Next time, define what the freed time is for before you hire."

func constant(out string, err error) generation.Func {
	return func(context.Context, string, int) (string, error) { return out, err }
}

// recorder captures the last prompt and budget.
type recorder struct {
	prompt    string
	maxTokens int
	out       string
}

func (r *recorder) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	r.prompt, r.maxTokens = prompt, maxTokens
	return r.out, nil
}

var (
	sampleDecision = Decision{
		Title:           "Hire an assistant",
		Reasoning:       "Delegate admin work",
		Assumptions:     "A VA will save ten hours a week",
		ExpectedOutcome: "More time for strategy",
		Confidence:      85,
	}
	sampleSimilar = []retrieval.Result{
		{Decision: store.Decision{ID: "a", Title: "Outsource bookkeeping", Category: taxonomy.CategoryAdmin}, Similarity: 0.9},
		{Decision: store.Decision{ID: "b", Title: "Hire a designer", Category: taxonomy.CategoryBrand}, Similarity: 0.7, ActualOutcome: "Took a month to ramp up"},
	}
)

func allSurfaces(o *Orchestrator) map[string]string {
	ctx := context.Background()
	g := o.Daily(ctx, DailyInput{Query: "pricing page", Similar: sampleSimilar})
	return map[string]string{
		SurfaceReflection:  o.Reflection(ctx, ReflectionInput{Decision: sampleDecision, ActualOutcome: "Onboarding was slow"}).Text,
		SurfaceReplay:      o.Replay(ctx, ReplayInput{Query: "hiring", Similar: sampleSimilar}).Text,
		SurfaceAlternative: o.Alternative(ctx, sampleDecision).Text,
		SurfaceWeekly:      o.Weekly(ctx, patterns.DemoBreakdown).Text,
		"daily.high":       g.HighImpact,
		"daily.avoid":      g.AvoidBusyWork,
		"daily.long":       g.LongTermAlignment,
	}
}

func TestOrchestrator_FallbackForEverySurface(t *testing.T) {
	generators := map[string]generation.Generator{
		"empty":  constant("", nil),
		"error":  constant("", errors.New("boom")),
		"noop":   generation.Noop{},
		"nil":    nil,
		"short":  constant("ok", nil),
		"echoed": constant(strings.Repeat("Respond with EXACTLY 3 lines please. ", 5), nil),
	}
	for name, gen := range generators {
		t.Run(name, func(t *testing.T) {
			for surface, text := range allSurfaces(New(gen)) {
				assert.NotEmpty(t, strings.TrimSpace(text), surface)
			}
		})
	}
}

func TestOrchestrator_SourceRecorded(t *testing.T) {
	ctx := context.Background()

	fallback := New(constant("", nil)).Reflection(ctx, ReflectionInput{Decision: sampleDecision, ActualOutcome: "fine"})
	assert.Equal(t, SourceRuleBased, fallback.Source)

	generated := New(constant("  "+goodAnswer+"\n", nil)).Reflection(ctx, ReflectionInput{Decision: sampleDecision, ActualOutcome: "fine"})
	assert.Equal(t, SourceGenerative, generated.Source)
	assert.Equal(t, goodAnswer, generated.Text)
}

func TestOrchestrator_TokenBudgets(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{out: goodAnswer}
	o := New(rec)

	o.Reflection(ctx, ReflectionInput{Decision: sampleDecision, ActualOutcome: "x"})
	assert.Equal(t, 300, rec.maxTokens)
	o.Replay(ctx, ReplayInput{Query: "q", Similar: sampleSimilar})
	assert.Equal(t, 400, rec.maxTokens)
	o.Alternative(ctx, sampleDecision)
	assert.Equal(t, 200, rec.maxTokens)
	o.Daily(ctx, DailyInput{Query: "q"})
	assert.Equal(t, 600, rec.maxTokens)
	o.Weekly(ctx, patterns.DemoBreakdown)
	assert.Equal(t, 200, rec.maxTokens)
}

func TestOrchestrator_ReplayWithoutNeighborsSkipsGeneration(t *testing.T) {
	rec := &recorder{out: goodAnswer}
	got := New(rec).Replay(context.Background(), ReplayInput{Query: "pricing"})

	assert.Empty(t, rec.prompt)
	assert.Equal(t, SourceRuleBased, got.Source)
	assert.Equal(t, "No past decisions found matching 'pricing'. Start capturing decisions to build your pattern library.", got.Text)
}

func TestOrchestrator_Daily(t *testing.T) {
	ctx := context.Background()
	three := "1. Ship the pricing page draft before noon and send it to two customers for feedback.\n" +
		"\n- Skip the inbox sweep until the draft is out.\n" +
		"* This moves the quarterly revenue goal forward.\n"

	got := New(constant(three, nil)).Daily(ctx, DailyInput{Query: "pricing"})
	assert.Equal(t, SourceGenerative, got.Source)
	assert.Equal(t, "Ship the pricing page draft before noon and send it to two customers for feedback.", got.HighImpact)
	assert.Equal(t, "Skip the inbox sweep until the draft is out.", got.AvoidBusyWork)
	assert.Equal(t, "This moves the quarterly revenue goal forward.", got.LongTermAlignment)

	two := "Ship the pricing page draft before noon and send it to two customers for feedback.\nSkip the inbox."
	fallback := New(constant(two, nil)).Daily(ctx, DailyInput{Query: "pricing"})
	assert.Equal(t, RuleDaily(DailyInput{Query: "pricing"}), fallback)
}

func TestOrchestrator_DailyFraming(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	o := New(rec)

	o.Daily(ctx, DailyInput{Query: "sign lease", DecisionType: taxonomy.Irreversible})
	assert.Contains(t, rec.prompt, "IRREVERSIBLE")

	o.Daily(ctx, DailyInput{Query: "try a new headline", DecisionType: taxonomy.Reversible})
	assert.Contains(t, rec.prompt, "REVERSIBLE")
	assert.NotContains(t, rec.prompt, "IRREVERSIBLE")

	weekly := patterns.DemoBreakdown
	o.Daily(ctx, DailyInput{Query: "q", Weekly: &weekly, Similar: sampleSimilar})
	assert.Contains(t, rec.prompt, "maintenance 61%")
	assert.Contains(t, rec.prompt, "Outsource bookkeeping")
}

func TestAcceptable(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want bool
	}{
		{"good", goodAnswer, true},
		{"too short", "Fine.", false},
		{"short after trim", "   " + strings.Repeat("a", 79) + "   ", false},
		{"exactly minimum", strings.Repeat("a", 80), true},
		{"echo any case", goodAnswer + " In 2-3 Sentences.", false},
		{"echo persona", "You are a personal decision coach. " + goodAnswer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Acceptable(tt.out, DefaultMinLength))
		})
	}
}

func TestWithMinLength(t *testing.T) {
	o := New(constant("A short but complete answer.", nil), WithMinLength(10))
	got := o.Weekly(context.Background(), patterns.DemoBreakdown)
	assert.Equal(t, SourceGenerative, got.Source)
}

func TestGuidanceLines(t *testing.T) {
	got := GuidanceLines("  1) first\n\n2. second \n• third\n- fourth\nplain")
	require.Equal(t, []string{"first", "second", "third", "fourth", "plain"}, got)
	assert.Empty(t, GuidanceLines(" \n\n "))
}
