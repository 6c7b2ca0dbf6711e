package insights

import (
	"math"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/patterns"
)

// negativeMarkers signal a disappointing outcome.
var negativeMarkers = []string{
	"slower", "did not", "didn't", "failed", "worse", "unexpected", "challenging",
	"difficult", "struggle", "delay", "miss", "behind", "disappoint", "not as",
	"less than", "below", "overestimated", "underestimated",
}

// GapScore measures how far the actual outcome drifted from the expected
// one: 0 is a perfect match, 1 shares no words. Unknown inputs score 0.5.
func GapScore(expected, actual string) float64 {
	if strings.TrimSpace(expected) == "" || strings.TrimSpace(actual) == "" {
		return 0.5
	}
	exp := patterns.WordSet(expected)
	if len(exp) == 0 {
		return 0.5
	}
	act := patterns.WordSet(actual)
	shared := 0
	for w := range exp {
		if _, ok := act[w]; ok {
			shared++
		}
	}
	return math.Round((1-float64(shared)/float64(len(exp)))*100) / 100
}

// NegativeTone reports whether text contains disappointment language.
func NegativeTone(text string) bool {
	return containsAny(strings.ToLower(text), negativeMarkers...)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ruleInput is the lowercased text the diagnostic rules look at.
type ruleInput struct {
	assumptions string
	reasoning   string
	expected    string
	actual      string
	confidence  int
}

func newRuleInput(d Decision, actual string) ruleInput {
	return ruleInput{
		assumptions: strings.ToLower(d.Assumptions),
		reasoning:   strings.ToLower(d.Reasoning),
		expected:    strings.ToLower(d.ExpectedOutcome),
		actual:      strings.ToLower(actual),
		confidence:  d.Confidence,
	}
}

// diagnosticRule yields phrase when match holds. Tables are evaluated in
// order and the first match wins.
type diagnosticRule struct {
	name   string
	match  func(in ruleInput) bool
	phrase string
}

func firstMatch(rules []diagnosticRule, in ruleInput, fallback string) string {
	for _, r := range rules {
		if r.match(in) {
			return r.phrase
		}
	}
	return fallback
}

var assumptionRules = []diagnosticRule{
	{
		name: "optimistic_timeline",
		match: func(in ruleInput) bool {
			return containsAny(in.assumptions, "quick", "fast", "easy", "immediately", "right away")
		},
		phrase: "the timeline assumption was optimistic and results took longer than planned",
	},
	{
		name: "onboarding_cost",
		match: func(in ruleInput) bool {
			return containsAny(in.assumptions, "team", "people", "hire", "delegate", "va", "assistant") &&
				containsAny(in.actual, "onboard", "train", "ramp", "slow")
		},
		phrase: "the onboarding cost was underestimated; delegation has a hidden ramp-up phase",
	},
	{
		name: "adoption_friction",
		match: func(in ruleInput) bool {
			return containsAny(in.reasoning, "automat", "system", "tool", "software")
		},
		phrase: "adoption friction was not accounted for; tools and processes need integration time",
	},
	{
		name: "external_response",
		match: func(in ruleInput) bool {
			return containsAny(in.assumptions, "revenue", "sales", "customer", "client")
		},
		phrase: "external response assumptions were too optimistic",
	},
}

const defaultAssumptionError = "the core assumption needed more validation before committing fully"

var biasRules = []diagnosticRule{
	{
		name: "overconfidence",
		match: func(in ruleInput) bool {
			return in.confidence >= 80 && NegativeTone(in.actual)
		},
		phrase: "overconfidence bias: confidence above 80% often masks unvalidated assumptions",
	},
	{
		name: "automation",
		match: func(in ruleInput) bool {
			return containsAny(in.expected, "automatically", "naturally")
		},
		phrase: "automation bias: assuming cause and effect would unfold without active management",
	},
	{
		name: "planning_fallacy",
		match: func(in ruleInput) bool {
			return containsAny(in.expected, "immediately", "right away", "quickly", "within days")
		},
		phrase: "the planning fallacy: underestimating the time and effort complex changes require",
	},
	{
		name: "opportunity_neglect",
		match: func(in ruleInput) bool {
			return containsAny(in.expected, "more focus", "more time", "freed up")
		},
		phrase: "opportunity neglect: assuming freed capacity turns into strategic output by itself",
	},
}

const defaultBias = "optimism bias: the expected outcome reflected best-case rather than realistic conditions"

// AssumptionError names the assumption most likely to have failed.
func AssumptionError(d Decision, actual string) string {
	return firstMatch(assumptionRules, newRuleInput(d, actual), defaultAssumptionError)
}

// CognitiveBias names the bias most likely behind the gap.
func CognitiveBias(d Decision, actual string) string {
	return firstMatch(biasRules, newRuleInput(d, actual), defaultBias)
}
