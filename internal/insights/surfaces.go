package insights

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/patterns"
	"github.com/fyrsmithlabs/decisiond/internal/retrieval"
)

// Reflection comments on a submitted reflection.
func (o *Orchestrator) Reflection(ctx context.Context, in ReflectionInput) Text {
	return o.run(ctx, SurfaceReflection,
		o.generative(SurfaceReflection, reflectionPrompt(in), reflectionTokens, nil),
		ruleBased(func() string { return RuleReflection(in) }),
	)
}

// Replay summarizes the pattern across retrieved decisions. With no
// neighbors only the rule-based producer runs.
func (o *Orchestrator) Replay(ctx context.Context, in ReplayInput) Text {
	fallback := ruleBased(func() string { return RuleReplay(in) })
	if len(in.Similar) == 0 {
		return o.run(ctx, SurfaceReplay, fallback)
	}
	return o.run(ctx, SurfaceReplay,
		o.generative(SurfaceReplay, replayPrompt(in), replayTokens, nil),
		fallback,
	)
}

// Alternative suggests a different approach to a past decision.
func (o *Orchestrator) Alternative(ctx context.Context, d Decision) Text {
	return o.run(ctx, SurfaceAlternative,
		o.generative(SurfaceAlternative, alternativePrompt(d), alternativeTokens, nil),
		ruleBased(func() string { return RuleAlternative(d) }),
	)
}

// Weekly writes a one-sentence read of the week's breakdown.
func (o *Orchestrator) Weekly(ctx context.Context, b patterns.Breakdown) Text {
	return o.run(ctx, SurfaceWeekly,
		o.generative(SurfaceWeekly, weeklyPrompt(b), weeklyTokens, nil),
		ruleBased(func() string { return RuleWeekly(b) }),
	)
}

// Daily returns three lines of guidance. Generative output is used only
// when it yields at least three lines; it is never mixed with fallback
// lines.
func (o *Orchestrator) Daily(ctx context.Context, in DailyInput) Guidance {
	var lines []string
	parse := func(out string) (string, bool) {
		lines = GuidanceLines(out)
		if len(lines) < 3 {
			return "", false
		}
		return out, true
	}

	out := o.run(ctx, SurfaceDaily,
		o.generative(SurfaceDaily, dailyPrompt(in), dailyTokens, parse),
		ruleBased(func() string { return "" }),
	)
	if out.Source != SourceGenerative {
		return RuleDaily(in)
	}
	return Guidance{
		HighImpact:        lines[0],
		AvoidBusyWork:     lines[1],
		LongTermAlignment: lines[2],
		Source:            SourceGenerative,
	}
}

// GuidanceLines splits generated guidance into trimmed non-empty lines
// with list markers removed.
func GuidanceLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		l = stripListMarker(strings.TrimSpace(l))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func stripListMarker(l string) string {
	switch {
	case strings.HasPrefix(l, "- "), strings.HasPrefix(l, "* "), strings.HasPrefix(l, "• "):
		_, rest, _ := strings.Cut(l, " ")
		return strings.TrimSpace(rest)
	}
	// "1." "2)" style numbering.
	i := 0
	for i < len(l) && l[i] >= '0' && l[i] <= '9' {
		i++
	}
	if i > 0 && i < len(l) && (l[i] == '.' || l[i] == ')') {
		return strings.TrimSpace(l[i+1:])
	}
	return l
}

func firstReflected(rs []retrieval.Result) (retrieval.Result, bool) {
	for _, r := range rs {
		if r.ActualOutcome != "" {
			return r, true
		}
	}
	return retrieval.Result{}, false
}
