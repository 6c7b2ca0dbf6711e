package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
)

func repeat(tag string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = tag
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want Breakdown
	}{
		{
			name: "six maintenance four growth",
			tags: append(repeat(taxonomy.CategoryMaintenance, 6), repeat(taxonomy.CategoryRevenueGrowth, 4)...),
			want: Breakdown{Maintenance: 60, Growth: 40},
		},
		{
			name: "empty week",
			tags: nil,
			want: Breakdown{},
		},
		{
			name: "thirds round to one decimal",
			tags: []string{taxonomy.CategoryBrand, taxonomy.CategoryAdmin, taxonomy.CategoryStrategy},
			want: Breakdown{Brand: 33.3, Admin: 33.3, Strategic: 33.3},
		},
		{
			name: "unknown tags fold into maintenance",
			tags: []string{"Legacy", "", taxonomy.CategoryMaintenance, taxonomy.CategoryStrategy},
			want: Breakdown{Maintenance: 75, Strategic: 25},
		},
		{
			name: "all unknown stays within bounds",
			tags: repeat("Unknown", 3),
			want: Breakdown{Maintenance: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.tags)
			assert.Equal(t, tt.want, got)
			for _, p := range []float64{got.Maintenance, got.Growth, got.Brand, got.Admin, got.Strategic} {
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 100.0)
			}
		})
	}
}

func TestAggregateDecisions(t *testing.T) {
	got := AggregateDecisions([]store.Decision{
		{Category: taxonomy.CategoryBrand},
		{Category: taxonomy.CategoryBrand},
		{Category: taxonomy.CategoryAdmin},
		{Category: taxonomy.CategoryAdmin},
	})
	assert.Equal(t, Breakdown{Brand: 50, Admin: 50}, got)
}

func TestBalanceLabel(t *testing.T) {
	tests := []struct {
		name string
		in   Breakdown
		want string
	}{
		{"maintenance heavy", Breakdown{Maintenance: 61, Growth: 19}, "You are spending 3.2x more time maintaining than growing."},
		{"no growth floors ratio at one", Breakdown{Maintenance: 80}, "You are spending 80.0x more time maintaining than growing."},
		{"growth ahead counts strategy", Breakdown{Maintenance: 30, Growth: 20, Strategic: 15}, "Great balance: your growth focus is ahead of maintenance this week."},
		{"neutral", Breakdown{Maintenance: 40, Growth: 40}, "Your focus is balanced across maintenance and growth activities."},
		{"empty", Breakdown{}, "Your focus is balanced across maintenance and growth activities."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BalanceLabel(tt.in))
		})
	}
}

func TestBreakdown_SummaryRoundTrip(t *testing.T) {
	week := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s := DemoBreakdown.Summary("u1", week)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, week, s.WeekStart)
	assert.Equal(t, DemoBreakdown, FromSummary(*s))
	assert.InDelta(t, 61.0/19.0, DemoBreakdown.Ratio(), 1e-9)
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), monday},
		{time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC), monday},
		{time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), monday},
		{time.Date(2026, 3, 9, 0, 0, 1, 0, time.UTC), monday.AddDate(0, 0, 7)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekStart(tt.in), tt.in.String())
	}
}
