package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReflectInput is an outcome report on a past decision.
type ReflectInput struct {
	DecisionID    string
	ActualOutcome string
	Lessons       string
	// AccuracyScore overrides the computed score when set. It is clamped.
	AccuracyScore *int
}

// ReflectResult is the stored reflection plus commentary.
type ReflectResult struct {
	Reflection store.Reflection
	Commentary insights.Text
	Category   string
	// Principles lists principles newly stored by this reflection.
	Principles []string
}

// Reflect stores a reflection, comments on it and, once the user has
// enough reflections, extracts new principles from their lessons.
func (s *Service) Reflect(ctx context.Context, in ReflectInput) (*ReflectResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Reflect")
	defer span.End()

	if strings.TrimSpace(in.DecisionID) == "" {
		return nil, invalid("decision_id is required")
	}
	if strings.TrimSpace(in.ActualOutcome) == "" {
		return nil, invalid("actual_outcome is required")
	}

	d, err := s.store.GetDecision(ctx, in.DecisionID)
	if err != nil {
		return nil, fmt.Errorf("getting decision %s: %w", in.DecisionID, err)
	}

	commentary := s.insights.Reflection(ctx, insights.ReflectionInput{
		Decision:      insights.DecisionOf(*d),
		ActualOutcome: in.ActualOutcome,
		Lessons:       in.Lessons,
	})

	score := patterns.AccuracyScore(d.ExpectedOutcome, in.ActualOutcome)
	if in.AccuracyScore != nil {
		score = patterns.ClampScore(*in.AccuracyScore)
	}

	r := &store.Reflection{
		DecisionID:    d.ID,
		ActualOutcome: in.ActualOutcome,
		Lessons:       strings.TrimSpace(in.Lessons),
		AccuracyScore: score,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateReflection(ctx, r); err != nil {
		return nil, fmt.Errorf("storing reflection: %w", err)
	}
	span.SetAttributes(attribute.String("reflection.id", r.ID), attribute.Int("reflection.accuracy", score))

	s.publisher.Publish(ctx, events.New(events.ReflectionSubmitted, d.UserID, r.ID, map[string]any{
		"decision_id":    d.ID,
		"accuracy_score": score,
	}))

	res := &ReflectResult{Reflection: *r, Commentary: commentary, Category: d.Category}

	principles, err := s.extractPrinciples(ctx, d.UserID)
	if err != nil {
		// The reflection is stored; extraction runs again on the next one.
		s.logger.Error("principle extraction failed", zap.String("user_id", d.UserID), zap.Error(err))
	}
	res.Principles = principles

	s.logger.Info("reflection submitted",
		zap.String("user_id", d.UserID),
		zap.String("decision_id", d.ID),
		zap.Int("accuracy_score", score),
		zap.String("commentary_source", commentary.Source),
		zap.Int("new_principles", len(principles)))
	return res, nil
}

// extractPrinciples stores principles not yet held by the user. It is
// serialized per user and reads the count after the new reflection is
// visible.
func (s *Service) extractPrinciples(ctx context.Context, userID string) ([]string, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	count, err := s.store.CountReflections(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting reflections: %w", err)
	}
	if count < s.cfg.PrincipleThreshold {
		return nil, nil
	}

	lessons, err := s.store.RecentLessons(ctx, userID, s.cfg.LessonWindow)
	if err != nil {
		return nil, fmt.Errorf("loading lessons: %w", err)
	}
	existing, err := s.store.ListInsights(ctx, userID, store.InsightPrinciple, 0)
	if err != nil {
		return nil, fmt.Errorf("loading principles: %w", err)
	}

	fresh := patterns.NewPrinciples(patterns.ExtractPrinciples(lessons, s.cfg.PrincipleCap), existing)
	var stored []string
	for _, p := range fresh {
		in := &store.Insight{UserID: userID, Type: store.InsightPrinciple, Description: p, CreatedAt: s.now()}
		if err := s.store.CreateInsight(ctx, in); err != nil {
			return stored, fmt.Errorf("storing principle: %w", err)
		}
		stored = append(stored, p)
	}

	if len(stored) > 0 {
		s.publisher.Publish(ctx, events.New(events.PrinciplesExtracted, userID, "", map[string]any{
			"count":       len(stored),
			"reflections": count,
		}))
	}
	return stored, nil
}

// LatestReflection returns the newest reflection on a decision.
func (s *Service) LatestReflection(ctx context.Context, decisionID string) (*store.Reflection, error) {
	if strings.TrimSpace(decisionID) == "" {
		return nil, invalid("decision id is required")
	}
	r, err := s.store.LatestReflection(ctx, decisionID)
	if err != nil {
		return nil, fmt.Errorf("getting reflection for %s: %w", decisionID, err)
	}
	return r, nil
}
