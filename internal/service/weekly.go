package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"go.uber.org/zap"
)

// WeeklyResult is the weekly view of a user's balance.
type WeeklyResult struct {
	Breakdown    patterns.Breakdown
	BalanceLabel string
	// WeekStart is nil when the breakdown is demo data.
	WeekStart *time.Time
	Demo      bool
	Insight   insights.Text
	Recent    []store.Insight
}

// WeeklyInsights comments on the user's latest weekly summary, storing the
// sentence as a weekly pattern insight. Users without a summary get demo
// percentages.
func (s *Service) WeeklyInsights(ctx context.Context, userID string) (*WeeklyResult, error) {
	ctx, span := tracer.Start(ctx, "Service.WeeklyInsights")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}

	res := &WeeklyResult{}
	summary, err := s.store.LatestWeeklySummary(ctx, userID)
	switch {
	case err == nil:
		res.Breakdown = patterns.FromSummary(*summary)
		week := summary.WeekStart
		res.WeekStart = &week
	case errors.Is(err, store.ErrNotFound):
		res.Breakdown = patterns.DemoBreakdown
		res.Demo = true
	default:
		return nil, fmt.Errorf("loading weekly summary: %w", err)
	}

	res.BalanceLabel = patterns.BalanceLabel(res.Breakdown)
	res.Insight = s.insights.Weekly(ctx, res.Breakdown)

	if err := s.storeWeeklyPattern(ctx, userID, res.Insight.Text); err != nil {
		return nil, err
	}

	recent, err := s.store.ListInsights(ctx, userID, "", s.cfg.RecentInsights)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	res.Recent = recent
	return res, nil
}

// storeWeeklyPattern skips text equal to the previous weekly pattern.
func (s *Service) storeWeeklyPattern(ctx context.Context, userID, text string) error {
	prev, err := s.store.ListInsights(ctx, userID, store.InsightWeeklyPattern, 1)
	if err != nil {
		return fmt.Errorf("listing weekly patterns: %w", err)
	}
	if len(prev) > 0 && prev[0].Description == text {
		return nil
	}
	in := &store.Insight{UserID: userID, Type: store.InsightWeeklyPattern, Description: text, CreatedAt: s.now()}
	if err := s.store.CreateInsight(ctx, in); err != nil {
		return fmt.Errorf("storing weekly pattern: %w", err)
	}
	return nil
}

// SaveWeeklySummary stores a manually reported breakdown. A zero weekStart
// means the current week. Percentages are clamped to [0,100].
func (s *Service) SaveWeeklySummary(ctx context.Context, userID string, weekStart time.Time, b patterns.Breakdown) (*store.WeeklySummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	if weekStart.IsZero() {
		weekStart = patterns.WeekStart(s.now())
	}
	ws := clampBreakdown(b).Summary(userID, weekStart)
	ws.CreatedAt = s.now()
	if err := s.store.CreateWeeklySummary(ctx, ws); err != nil {
		return nil, fmt.Errorf("storing weekly summary: %w", err)
	}
	return ws, nil
}

func clampBreakdown(b patterns.Breakdown) patterns.Breakdown {
	c := func(p float64) float64 {
		return min(100, max(0, p))
	}
	return patterns.Breakdown{
		Maintenance: c(b.Maintenance),
		Growth:      c(b.Growth),
		Brand:       c(b.Brand),
		Admin:       c(b.Admin),
		Strategic:   c(b.Strategic),
	}
}

// WeeklyRunReport summarizes one weekly analysis run.
type WeeklyRunReport struct {
	Users     int       `json:"users"`
	Failed    int       `json:"failed"`
	WeekStart time.Time `json:"week_start"`
}

// RunWeeklyAnalysis aggregates the last window of decisions for every user
// into a weekly summary. A failing user is logged and skipped.
func (s *Service) RunWeeklyAnalysis(ctx context.Context) (*WeeklyRunReport, error) {
	ctx, span := tracer.Start(ctx, "Service.RunWeeklyAnalysis")
	defer span.End()

	now := s.now()
	report := &WeeklyRunReport{WeekStart: patterns.WeekStart(now)}

	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		recent, err := s.store.ListDecisionsSince(ctx, userID, now.Add(-s.cfg.WeeklyWindow))
		if err != nil {
			report.Failed++
			s.logger.Error("weekly analysis failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		b := patterns.AggregateDecisions(recent)
		ws := b.Summary(userID, report.WeekStart)
		ws.CreatedAt = now
		if err := s.store.CreateWeeklySummary(ctx, ws); err != nil {
			report.Failed++
			s.logger.Error("weekly analysis failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		report.Users++
		s.publisher.Publish(ctx, events.New(events.WeeklyAnalyzed, userID, ws.ID, map[string]any{
			"decisions":       len(recent),
			"maintenance_pct": b.Maintenance,
			"growth_pct":      b.Growth,
		}))
	}

	s.logger.Info("weekly analysis completed",
		zap.Int("users", report.Users), zap.Int("failed", report.Failed))
	return report, nil
}

// Principles returns the user's principles, newest first.
func (s *Service) Principles(ctx context.Context, userID string) ([]store.Insight, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	ps, err := s.store.ListInsights(ctx, userID, store.InsightPrinciple, 0)
	if err != nil {
		return nil, fmt.Errorf("listing principles: %w", err)
	}
	return ps, nil
}

// PrunePrinciples evicts principles beyond the cap for every user and
// returns the number removed.
func (s *Service) PrunePrinciples(ctx context.Context) (int, error) {
	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}
	removed := 0
	for _, userID := range users {
		ps, err := s.store.ListInsights(ctx, userID, store.InsightPrinciple, 0)
		if err != nil {
			return removed, fmt.Errorf("listing principles for %s: %w", userID, err)
		}
		ids := patterns.Evictions(ps, s.cfg.PrincipleCap)
		if len(ids) == 0 {
			continue
		}
		if err := s.store.DeleteInsights(ctx, ids); err != nil {
			return removed, fmt.Errorf("pruning principles for %s: %w", userID, err)
		}
		removed += len(ids)
		s.logger.Info("principles pruned", zap.String("user_id", userID), zap.Int("removed", len(ids)))
	}
	return removed, nil
}
