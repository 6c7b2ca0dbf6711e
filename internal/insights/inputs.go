package insights

import (
	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
)

// Decision holds the decision fields the surfaces read.
type Decision struct {
	Title           string
	Reasoning       string
	Assumptions     string
	ExpectedOutcome string
	Confidence      int
	DecisionType    string
}

// DecisionOf copies the relevant fields of d.
func DecisionOf(d store.Decision) Decision {
	return Decision{
		Title:           d.Title,
		Reasoning:       d.Reasoning,
		Assumptions:     d.Assumptions,
		ExpectedOutcome: d.ExpectedOutcome,
		Confidence:      d.ConfidenceScore,
		DecisionType:    d.DecisionType,
	}
}

// ReflectionInput is a decision and what actually happened.
type ReflectionInput struct {
	Decision      Decision
	ActualOutcome string
	Lessons       string
}

// ReplayInput is a search query and its retrieved neighbors.
type ReplayInput struct {
	Query   string
	Similar []retrieval.Result
}

// DailyInput is the context for daily guidance. Weekly is nil when the
// user has no summary.
type DailyInput struct {
	Query        string
	DecisionType string
	Similar      []retrieval.Result
	Weekly       *patterns.Breakdown
}

func (in DailyInput) irreversible() bool {
	return in.DecisionType == taxonomy.Irreversible
}

// Guidance is the three-line daily guidance.
type Guidance struct {
	HighImpact        string `json:"high_impact"`
	AvoidBusyWork     string `json:"avoid_busy_work"`
	LongTermAlignment string `json:"long_term_alignment"`
	Source            string `json:"source"`
}
