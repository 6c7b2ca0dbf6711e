package http

import (
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/insights"
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
	"github.com/fyrsmithlabs/decisiond/internal/service"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CaptureRequest is the request body for POST /api/v1/decisions.
// Confidence outside [0,100] is clamped, not rejected.
type CaptureRequest struct {
	UserID          string     `json:"user_id"`
	Title           string     `json:"title" validate:"required,notblank,max=500"`
	Reasoning       string     `json:"reasoning" validate:"maxbytes"`
	Assumptions     string     `json:"assumptions" validate:"maxbytes"`
	ExpectedOutcome string     `json:"expected_outcome" validate:"maxbytes"`
	ConfidenceScore *int       `json:"confidence_score"`
	ReviewDate      *time.Time `json:"review_date"`
}

// ReflectRequest is the request body for POST /api/v1/reflections.
type ReflectRequest struct {
	DecisionID    string `json:"decision_id" validate:"required"`
	ActualOutcome string `json:"actual_outcome" validate:"required,notblank,maxbytes"`
	Lessons       string `json:"lessons" validate:"maxbytes"`
	AccuracyScore *int   `json:"accuracy_score"`
}

// ReflectResponse is the stored reflection with its commentary.
type ReflectResponse struct {
	store.Reflection
	AIInsight     string   `json:"ai_insight"`
	InsightSource string   `json:"insight_source"`
	Category      string   `json:"category"`
	NewPrinciples []string `json:"new_principles,omitempty"`
}

// ReplayRequest is the request body for POST /api/v1/replay.
type ReplayRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query" validate:"required,notblank,maxbytes"`
	TopK   int    `json:"top_k"`
}

// ReplayResponse lists similar decisions and their pattern summary.
type ReplayResponse struct {
	Query          string             `json:"query"`
	Decisions      []retrieval.Result `json:"decisions"`
	PatternSummary string             `json:"pattern_summary"`
	SummarySource  string             `json:"summary_source"`
	TotalFound     int                `json:"total_found"`
}

// AlternativeRequest names the decision to rework. decision_id may also be
// passed as a query parameter.
type AlternativeRequest struct {
	DecisionID string `json:"decision_id" validate:"required"`
}

// AlternativeResponse is a suggested different approach.
type AlternativeResponse struct {
	DecisionID          string `json:"decision_id"`
	AlternativeStrategy string `json:"alternative_strategy"`
	Source              string `json:"source"`
}

// DailyRequest is the request body for POST /api/v1/daily/guidance.
type DailyRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query" validate:"required,notblank,maxbytes"`
}

// DailyResponse is three-line guidance plus what it was built from.
type DailyResponse struct {
	Query    string               `json:"query"`
	Guidance insights.Guidance    `json:"guidance"`
	Context  service.DailyContext `json:"context"`
}

// WeeklySummaryView is the breakdown shown with the weekly insight.
type WeeklySummaryView struct {
	WeekStart *time.Time `json:"week_start,omitempty"`
	patterns.Breakdown
	BalanceLabel string `json:"balance_label"`
	Demo         bool   `json:"demo"`
}

// WeeklyResponse is the response body for GET /api/v1/insights.
type WeeklyResponse struct {
	Summary        WeeklySummaryView `json:"summary"`
	AIInsight      string            `json:"ai_insight"`
	InsightSource  string            `json:"insight_source"`
	RecentInsights []store.Insight   `json:"recent_insights"`
}

// WeeklySummaryRequest is a manually reported breakdown. Missing
// percentages take the demo values.
type WeeklySummaryRequest struct {
	UserID         string   `json:"user_id"`
	WeekStart      string   `json:"week_start" validate:"omitempty,datetime=2006-01-02"`
	MaintenancePct *float64 `json:"maintenance_pct"`
	GrowthPct      *float64 `json:"growth_pct"`
	BrandPct       *float64 `json:"brand_pct"`
	AdminPct       *float64 `json:"admin_pct"`
	StrategicPct   *float64 `json:"strategic_pct"`
}

// breakdown fills missing percentages from the demo breakdown.
func (r WeeklySummaryRequest) breakdown() patterns.Breakdown {
	b := patterns.DemoBreakdown
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&b.Maintenance, r.MaintenancePct)
	set(&b.Growth, r.GrowthPct)
	set(&b.Brand, r.BrandPct)
	set(&b.Admin, r.AdminPct)
	set(&b.Strategic, r.StrategicPct)
	return b
}

// WeeklySummaryCreatedResponse acknowledges a stored summary.
type WeeklySummaryCreatedResponse struct {
	Message string               `json:"message"`
	ID      string               `json:"id"`
	Summary *store.WeeklySummary `json:"summary"`
}

// PrinciplesResponse lists a user's principles.
type PrinciplesResponse struct {
	Principles []store.Insight `json:"principles"`
	Total      int             `json:"total"`
}
