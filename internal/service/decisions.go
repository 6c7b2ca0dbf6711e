package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CaptureInput is a decision to record. Category and type are always
// derived; callers cannot set them.
type CaptureInput struct {
	UserID          string
	Title           string
	Reasoning       string
	Assumptions     string
	ExpectedOutcome string
	// ConfidenceScore defaults to 50 when nil and is clamped to [0,100].
	ConfidenceScore *int
	ReviewDate      *time.Time
}

// Capture classifies, embeds and stores a decision.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (*store.Decision, error) {
	ctx, span := tracer.Start(ctx, "Service.Capture")
	defer span.End()

	if strings.TrimSpace(in.UserID) == "" {
		return nil, invalid("user_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title is required")
	}

	category, err := s.categories.Classify(ctx, in.Title+" "+in.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("classifying category: %w", err)
	}
	vec, err := s.embedder.Embed(ctx, embeddingText(in))
	if err != nil {
		return nil, fmt.Errorf("embedding decision: %w", err)
	}
	verdict := s.reversibility.Classify(ctx, taxonomy.DecisionText{
		Title:           in.Title,
		Reasoning:       in.Reasoning,
		Assumptions:     in.Assumptions,
		ExpectedOutcome: in.ExpectedOutcome,
	})

	confidence := DefaultConfidence
	if in.ConfidenceScore != nil {
		confidence = patterns.ClampScore(*in.ConfidenceScore)
	}

	d := &store.Decision{
		UserID:          in.UserID,
		Title:           strings.TrimSpace(in.Title),
		Reasoning:       in.Reasoning,
		Assumptions:     in.Assumptions,
		ExpectedOutcome: in.ExpectedOutcome,
		ConfidenceScore: confidence,
		Category:        category,
		DecisionType:    verdict.Type,
		Embedding:       vec,
		ReviewDate:      in.ReviewDate,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateDecision(ctx, d); err != nil {
		return nil, fmt.Errorf("storing decision: %w", err)
	}

	span.SetAttributes(
		attribute.String("decision.id", d.ID),
		attribute.String("decision.category", d.Category),
		attribute.String("decision.type", d.DecisionType),
	)
	s.logger.Info("decision captured",
		zap.String("user_id", d.UserID),
		zap.String("decision_id", d.ID),
		zap.String("category", d.Category),
		zap.String("decision_type", d.DecisionType),
		zap.String("reversibility_stage", verdict.Stage))

	s.publisher.Publish(ctx, events.New(events.DecisionCaptured, d.UserID, d.ID, map[string]any{
		"category":      d.Category,
		"decision_type": d.DecisionType,
	}))
	return d, nil
}

// embeddingText is what retrieval compares decisions on.
func embeddingText(in CaptureInput) string {
	parts := []string{in.Title}
	for _, p := range []string{in.Reasoning, in.ExpectedOutcome} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// GetDecision returns a decision by id.
func (s *Service) GetDecision(ctx context.Context, id string) (*store.Decision, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("decision id is required")
	}
	d, err := s.store.GetDecision(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting decision %s: %w", id, err)
	}
	return d, nil
}

// ListDecisions returns the user's decisions, newest first.
func (s *Service) ListDecisions(ctx context.Context, userID string, limit int) ([]store.Decision, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	ds, err := s.store.ListDecisions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	return ds, nil
}

// DeleteDecision removes a decision and its reflections.
func (s *Service) DeleteDecision(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("decision id is required")
	}
	if err := s.store.DeleteDecision(ctx, id); err != nil {
		return fmt.Errorf("deleting decision %s: %w", id, err)
	}
	s.logger.Info("decision deleted", zap.String("decision_id", id))
	return nil
}
