package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
	"go.opentelemetry.io/otel/attribute"
)

// dailyNeighbors is the number of similar decisions daily guidance reads.
const dailyNeighbors = 5

// ReplayResult holds similar decisions and their pattern summary.
type ReplayResult struct {
	Query     string
	Decisions []retrieval.Result
	Summary   insights.Text
}

// Replay finds the user's decisions most similar to query and summarizes
// the pattern across them.
func (s *Service) Replay(ctx context.Context, userID, query string, k int) (*ReplayResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Replay")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, invalid("query is required")
	}

	similar, err := s.retriever.FindSimilar(ctx, userID, query, k)
	if err != nil {
		return nil, fmt.Errorf("finding similar decisions: %w", err)
	}
	span.SetAttributes(attribute.Int("replay.found", len(similar)))

	summary := s.insights.Replay(ctx, insights.ReplayInput{Query: query, Similar: similar})
	return &ReplayResult{Query: query, Decisions: similar, Summary: summary}, nil
}

// Alternative suggests a different approach to a stored decision.
func (s *Service) Alternative(ctx context.Context, decisionID string) (insights.Text, error) {
	d, err := s.GetDecision(ctx, decisionID)
	if err != nil {
		return insights.Text{}, err
	}
	return s.insights.Alternative(ctx, insights.DecisionOf(*d)), nil
}

// DailyContext describes what daily guidance was built from.
type DailyContext struct {
	SimilarDecisionsUsed   int      `json:"similar_decisions_used"`
	WeeklySummaryAvailable bool     `json:"weekly_summary_available"`
	TopCategories          []string `json:"top_categories"`
	DecisionType           string   `json:"decision_type"`
}

// DailyResult is three-line guidance for a focus question.
type DailyResult struct {
	Query    string
	Guidance insights.Guidance
	Context  DailyContext
}

// Daily builds guidance for the user's focus question from similar past
// decisions and the latest weekly summary.
func (s *Service) Daily(ctx context.Context, userID, query string) (*DailyResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Daily")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, invalid("query is required")
	}

	similar, err := s.retriever.FindSimilar(ctx, userID, query, dailyNeighbors)
	if err != nil {
		return nil, fmt.Errorf("finding similar decisions: %w", err)
	}

	var weekly *patterns.Breakdown
	summary, err := s.store.LatestWeeklySummary(ctx, userID)
	switch {
	case err == nil:
		b := patterns.FromSummary(*summary)
		weekly = &b
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading weekly summary: %w", err)
	}

	verdict := s.reversibility.Classify(ctx, taxonomy.DecisionText{Title: query})
	guidance := s.insights.Daily(ctx, insights.DailyInput{
		Query:        query,
		DecisionType: verdict.Type,
		Similar:      similar,
		Weekly:       weekly,
	})

	return &DailyResult{
		Query:    query,
		Guidance: guidance,
		Context: DailyContext{
			SimilarDecisionsUsed:   len(similar),
			WeeklySummaryAvailable: weekly != nil,
			TopCategories:          topCategories(similar),
			DecisionType:           verdict.Type,
		},
	}, nil
}

// topCategories returns the distinct categories of rs, sorted.
func topCategories(rs []retrieval.Result) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range rs {
		if r.Category != "" && !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	sort.Strings(out)
	return out
}
