package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/store"
)

func principleOf(t *testing.T, name string) string {
	t.Helper()
	for _, tpl := range Templates {
		if tpl.Name == name {
			return tpl.Principle
		}
	}
	t.Fatalf("no template %q", name)
	return ""
}

func TestExtractPrinciples_TemplatesInDeclarationOrder(t *testing.T) {
	got := ExtractPrinciples([]string{
		"Talk to customers earlier",
		"Delegating took longer than expected",
	}, DefaultCap)

	assert.Equal(t, []string{
		principleOf(t, "delegation"),
		principleOf(t, "timeline"),
		principleOf(t, "customer"),
	}, got)
}

func TestExtractPrinciples_FragmentFallback(t *testing.T) {
	got := ExtractPrinciples([]string{
		"Never again. The whole thing hinged on one optimistic guess about demand",
		"Meh.",
		"   ",
	}, DefaultCap)

	assert.Equal(t, []string{
		"Keep in mind: The whole thing hinged on one optimistic guess about demand.",
	}, got)
}

func TestExtractPrinciples_Cap(t *testing.T) {
	got := ExtractPrinciples([]string{
		"delegate sooner", "missed the deadline", "validate it", "ask the customer",
		"keep focus", "write the process down", "watch the budget",
	}, DefaultCap)

	require.Len(t, got, DefaultCap)
	assert.Equal(t, []string{
		principleOf(t, "delegation"),
		principleOf(t, "timeline"),
		principleOf(t, "validation"),
		principleOf(t, "customer"),
		principleOf(t, "focus"),
	}, got)
}

func TestExtractPrinciples_MixedPasses(t *testing.T) {
	got := ExtractPrinciples([]string{
		"Stay on budget",
		"Momentum matters more than polish when nobody is watching yet",
	}, DefaultCap)

	assert.Equal(t, []string{
		principleOf(t, "cost"),
		"Keep in mind: Momentum matters more than polish when nobody is watching yet.",
	}, got)
}

func TestExtractPrinciples_Empty(t *testing.T) {
	assert.Empty(t, ExtractPrinciples(nil, DefaultCap))
	assert.Empty(t, ExtractPrinciples([]string{"", " "}, DefaultCap))
}

func TestNewPrinciples(t *testing.T) {
	existing := []store.Insight{{Description: "a"}, {Description: "b"}}
	assert.Equal(t, []string{"c", "d"}, NewPrinciples([]string{"a", "c", "c", "b", "d"}, existing))
	assert.Empty(t, NewPrinciples([]string{"a"}, existing))
}

func TestEvictions(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var principles []store.Insight
	for i := 0; i < 7; i++ {
		principles = append(principles, store.Insight{
			ID:        fmt.Sprintf("p%d", i),
			Type:      store.InsightPrinciple,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	// Shuffle input order; eviction depends on timestamps only.
	principles[0], principles[5] = principles[5], principles[0]

	assert.ElementsMatch(t, []string{"p0", "p1"}, Evictions(principles, 5))
	assert.Nil(t, Evictions(principles[:5], 5))
	assert.Len(t, Evictions(principles, 0), 7)
}

func TestEvictions_TieBreakByID(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	principles := []store.Insight{
		{ID: "b", CreatedAt: ts},
		{ID: "a", CreatedAt: ts},
		{ID: "c", CreatedAt: ts.Add(time.Minute)},
	}
	assert.Equal(t, []string{"a"}, Evictions(principles, 2))
}
