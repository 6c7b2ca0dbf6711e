package taxonomy

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/generation"
	"go.uber.org/zap"
)

// confirmTokens bounds the single-word confirmation answer.
const confirmTokens = 5

// Stages that can produce a reversibility verdict.
const (
	StageEmpty      = "empty"
	StageRule       = "rule"
	StageGenerative = "generative"
	StageDefault    = "default"
)

// DecisionText holds the decision fields reversibility is judged on.
type DecisionText struct {
	Title           string
	Reasoning       string
	Assumptions     string
	ExpectedOutcome string
}

// Joined returns the non-empty fields separated by single spaces.
func (d DecisionText) Joined() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{d.Title, d.Reasoning, d.Assumptions, d.ExpectedOutcome} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Verdict is a reversibility classification and where it came from.
type Verdict struct {
	Type  string
	Stage string
	// Rule names the matching rule for StageRule.
	Rule string
}

// ReversibilityClassifier runs the rule table, then an optional generative
// confirmation, then defaults to reversible.
type ReversibilityClassifier struct {
	tables    Source
	generator generation.Generator
	logger    *zap.Logger
}

// NewReversibilityClassifier creates a classifier. generator may be nil to
// skip the confirmation stage.
func NewReversibilityClassifier(tables Source, generator generation.Generator, logger *zap.Logger) *ReversibilityClassifier {
	if tables == nil {
		tables = DefaultTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReversibilityClassifier{tables: tables, generator: generator, logger: logger}
}

// Classify never fails. Any rule match is final; generator errors and
// unparseable answers fall through to the default.
func (c *ReversibilityClassifier) Classify(ctx context.Context, d DecisionText) Verdict {
	text := d.Joined()
	if text == "" {
		return Verdict{Type: Reversible, Stage: StageEmpty}
	}

	for _, rule := range c.tables.Current().Rules {
		if rule.Match(text) {
			return Verdict{Type: Irreversible, Stage: StageRule, Rule: rule.Name}
		}
	}

	if c.generator != nil {
		out, err := c.generator.Generate(ctx, reversibilityPrompt(d), confirmTokens)
		if err != nil {
			c.logger.Debug("reversibility confirmation failed", zap.Error(err))
		} else if verdict, ok := ParseReversibility(out); ok {
			return Verdict{Type: verdict, Stage: StageGenerative}
		} else {
			c.logger.Debug("reversibility confirmation unparseable", zap.String("output", out))
		}
	}

	return Verdict{Type: Reversible, Stage: StageDefault}
}

// ParseReversibility accepts output whose first word, lowercased and
// stripped of surrounding punctuation, is exactly reversible or
// irreversible.
func ParseReversibility(out string) (string, bool) {
	fields := strings.Fields(strings.ToLower(out))
	if len(fields) == 0 {
		return "", false
	}
	word := strings.Trim(fields[0], `.,;:!?"'*`)
	switch word {
	case Reversible, Irreversible:
		return word, true
	}
	return "", false
}

func reversibilityPrompt(d DecisionText) string {
	return fmt.Sprintf(`Classify this business decision as reversible or irreversible.
A decision is irreversible if undoing it later would be costly, slow, or impossible.

Decision: %s
Reasoning: %s
Assumptions: %s
Expected outcome: %s

Answer with exactly one word: reversible or irreversible.`,
		d.Title, d.Reasoning, d.Assumptions, d.ExpectedOutcome)
}
