package store

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Insight types.
const (
	InsightWeeklyPattern = "weekly_pattern"
	InsightPrinciple     = "principle"
)

// Decision is a captured decision.
type Decision struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	Reasoning       string     `json:"reasoning,omitempty"`
	Assumptions     string     `json:"assumptions,omitempty"`
	ExpectedOutcome string     `json:"expected_outcome,omitempty"`
	ConfidenceScore int        `json:"confidence_score"`
	Category        string     `json:"category"`
	DecisionType    string     `json:"decision_type"`
	Embedding       []float32  `json:"-"`
	ReviewDate      *time.Time `json:"review_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Reflection records what actually happened after a decision.
type Reflection struct {
	ID            string    `json:"id"`
	DecisionID    string    `json:"decision_id"`
	ActualOutcome string    `json:"actual_outcome"`
	Lessons       string    `json:"lessons,omitempty"`
	AccuracyScore int       `json:"accuracy_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// Insight is a weekly pattern sentence or an extracted principle.
type Insight struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"insight_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// WeeklySummary holds category percentages for one week.
type WeeklySummary struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	WeekStart      time.Time `json:"week_start"`
	MaintenancePct float64   `json:"maintenance_pct"`
	GrowthPct      float64   `json:"growth_pct"`
	BrandPct       float64   `json:"brand_pct"`
	AdminPct       float64   `json:"admin_pct"`
	StrategicPct   float64   `json:"strategic_pct"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScoredDecision is a decision with its similarity to a query.
type ScoredDecision struct {
	Decision
	Similarity float64 `json:"similarity"`
}

// Stamp fills an empty id and zero creation time. Backends call it on
// insert.
func Stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

// SortScored orders by similarity descending, then id ascending.
func SortScored(s []ScoredDecision) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Similarity != s[j].Similarity {
			return s[i].Similarity > s[j].Similarity
		}
		return s[i].ID < s[j].ID
	})
}

// SortMatches orders by similarity descending, then id ascending.
func SortMatches(m []VectorMatch) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Similarity != m[j].Similarity {
			return m[i].Similarity > m[j].Similarity
		}
		return m[i].ID < m[j].ID
	})
}
