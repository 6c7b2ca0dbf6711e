// Package insights produces coaching text for five surfaces: reflection
// commentary, replay pattern summaries, alternative strategies, daily
// guidance and weekly pattern sentences.
//
// Every surface tries the generation provider first and falls back to a
// deterministic rule-based producer when the provider fails or its output
// does not pass the quality gate. The rule-based producers never fail, so
// every call returns well-formed text.
package insights

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/decisiond/internal/generation"
	"go.uber.org/zap"
)

// Producer names recorded on every result.
const (
	SourceGenerative = "generative"
	SourceRuleBased  = "rule_based"
)

// Surfaces, used for metrics and logs.
const (
	SurfaceReflection  = "reflection"
	SurfaceReplay      = "replay"
	SurfaceAlternative = "alternative"
	SurfaceDaily       = "daily"
	SurfaceWeekly      = "weekly"
)

// Token budgets per surface.
const (
	reflectionTokens  = 300
	replayTokens      = 400
	alternativeTokens = 200
	dailyTokens       = 600
	weeklyTokens      = 200
)

// DefaultMinLength is the shortest generative output accepted.
const DefaultMinLength = 80

// echoPhrases signal that the model repeated the prompt instead of
// answering. Matched case-insensitively.
var echoPhrases = []string{
	"you are a personal decision coach",
	"you are a strategic advisor",
	"in 2-3 sentences",
	"respond with exactly",
	"line 1:",
	"line 2:",
	"line 3:",
	"decision made:",
	"no labels, no bullets",
	"unable to generate a response",
}

// Text is a produced piece of guidance and the producer that made it.
type Text struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Orchestrator runs the producer chain for each surface.
type Orchestrator struct {
	generator generation.Generator
	minLength int
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMinLength sets the quality gate's minimum length in characters.
func WithMinLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.minLength = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator. A nil generator runs rule-based producers
// only.
func New(generator generation.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: generator,
		minLength: DefaultMinLength,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.generator == nil {
		o.generator = generation.Noop{}
	}
	return o
}

// Acceptable reports whether out passes the quality gate: at least
// minLength characters after trimming and no echoed prompt phrases.
func Acceptable(out string, minLength int) bool {
	out = strings.TrimSpace(out)
	if utf8.RuneCountInString(out) < minLength {
		return false
	}
	lower := strings.ToLower(out)
	for _, p := range echoPhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// producer yields text for a surface, or false to pass to the next one.
type producer struct {
	source  string
	produce func(ctx context.Context) (string, bool)
}

func ruleBased(f func() string) producer {
	return producer{source: SourceRuleBased, produce: func(context.Context) (string, bool) {
		return f(), true
	}}
}

// generative calls the provider and applies the quality gate. parse may
// further validate and reshape the trimmed output.
func (o *Orchestrator) generative(surface, prompt string, maxTokens int, parse func(string) (string, bool)) producer {
	return producer{source: SourceGenerative, produce: func(ctx context.Context) (string, bool) {
		out, err := o.generator.Generate(ctx, prompt, maxTokens)
		if err != nil {
			o.logger.Debug("generation failed, using fallback",
				zap.String("surface", surface), zap.Error(err))
			return "", false
		}
		out = strings.TrimSpace(out)
		if !Acceptable(out, o.minLength) {
			o.logger.Debug("generation rejected by quality gate",
				zap.String("surface", surface), zap.Int("length", len(out)))
			return "", false
		}
		if parse != nil {
			return parse(out)
		}
		return out, true
	}}
}

// run returns the first producer's accepted result. The chain must end in
// a rule-based producer.
func (o *Orchestrator) run(ctx context.Context, surface string, chain ...producer) Text {
	for _, p := range chain {
		out, ok := p.produce(ctx)
		if !ok {
			continue
		}
		producedTotal.WithLabelValues(surface, p.source).Inc()
		o.logger.Debug("insight produced",
			zap.String("surface", surface), zap.String("source", p.source))
		return Text{Text: out, Source: p.source}
	}
	return Text{}
}
