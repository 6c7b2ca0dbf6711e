package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

func TestWeeklyInsights_DemoFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.WeeklyInsights(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Demo)
	assert.Nil(t, res.WeekStart)
	assert.Equal(t, patterns.DemoBreakdown, res.Breakdown)
	assert.Equal(t, patterns.BalanceLabel(patterns.DemoBreakdown), res.BalanceLabel)
	assert.NotEmpty(t, res.Insight.Text)
	require.Len(t, res.Recent, 1)
	assert.Equal(t, store.InsightWeeklyPattern, res.Recent[0].Type)

	// Identical text is not stored twice.
	_, err = f.svc.WeeklyInsights(ctx, "u1")
	require.NoError(t, err)
	stored, err := f.store.ListInsights(ctx, "u1", store.InsightWeeklyPattern, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWeeklyInsights_UsesLatestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := patterns.Breakdown{Maintenance: 20, Growth: 50, Brand: 10, Admin: 10, Strategic: 10}
	week := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.SaveWeeklySummary(ctx, "u1", week, b)
	require.NoError(t, err)

	res, err := f.svc.WeeklyInsights(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Demo)
	assert.Equal(t, b, res.Breakdown)
	require.NotNil(t, res.WeekStart)
	assert.True(t, week.Equal(*res.WeekStart))
}

func TestWeeklyInsights_RecentIncludesPrinciples(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, f.store.CreateInsight(ctx, &store.Insight{
			UserID: "u1", Type: store.InsightPrinciple, Description: "p", CreatedAt: f.clock.now(),
		}))
	}

	res, err := f.svc.WeeklyInsights(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, res.Recent, 5)
	assert.Equal(t, store.InsightWeeklyPattern, res.Recent[0].Type)
}

func TestSaveWeeklySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ws, err := f.svc.SaveWeeklySummary(ctx, "u1", time.Time{}, patterns.Breakdown{Maintenance: 140, Growth: -10})
	require.NoError(t, err)
	assert.Equal(t, 100.0, ws.MaintenancePct)
	assert.Equal(t, 0.0, ws.GrowthPct)
	assert.Equal(t, time.Monday, ws.WeekStart.Weekday())
	assert.True(t, ws.WeekStart.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))

	_, err = f.svc.SaveWeeklySummary(ctx, "", time.Time{}, patterns.DemoBreakdown)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunWeeklyAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.set(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	f.capture(t, "u1", "Old decision outside the window")

	f.clock.set(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))
	f.capture(t, "u1", "Fix the billing bugs")
	f.capture(t, "u1", "Launch a referral program")
	f.capture(t, "u2", "Renew the office lease")

	report, err := f.svc.RunWeeklyAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	assert.Zero(t, report.Failed)
	assert.True(t, report.WeekStart.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))

	for _, user := range []string{"u1", "u2"} {
		ws, err := f.store.LatestWeeklySummary(ctx, user)
		require.NoError(t, err, user)
		total := ws.MaintenancePct + ws.GrowthPct + ws.BrandPct + ws.AdminPct + ws.StrategicPct
		assert.InDelta(t, 100, total, 0.5, user)
	}

	var analyzed []events.Event
	for _, e := range f.events.Events() {
		if e.Kind == events.WeeklyAnalyzed {
			analyzed = append(analyzed, e)
		}
	}
	require.Len(t, analyzed, 2)
	assert.Equal(t, 2, analyzed[0].Attributes["decisions"])
}

func TestRunWeeklyAnalysis_Canceled(t *testing.T) {
	f := newFixture(t)
	f.capture(t, "u1", "Fix the billing bugs")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.RunWeeklyAnalysis(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrunePrinciples(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 7; i++ {
		in := &store.Insight{
			UserID: "u1", Type: store.InsightPrinciple, Description: "p", CreatedAt: f.clock.now(),
		}
		require.NoError(t, f.store.CreateInsight(ctx, in))
		ids = append(ids, in.ID)
	}
	f.capture(t, "u1", "Fix the billing bugs")

	removed, err := f.svc.PrunePrinciples(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := f.svc.Principles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left, patterns.DefaultCap)
	var leftIDs []string
	for _, p := range left {
		leftIDs = append(leftIDs, p.ID)
	}
	assert.ElementsMatch(t, ids[2:], leftIDs)

	removed, err = f.svc.PrunePrinciples(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
