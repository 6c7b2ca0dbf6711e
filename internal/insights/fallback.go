package insights

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/patterns"
)

// outcomePreview bounds each quoted outcome in a replay summary.
const outcomePreview = 60

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RuleReflection compares the prediction with the outcome and names the
// likely reasoning error.
func RuleReflection(in ReflectionInput) string {
	d := in.Decision
	title := orDefault(d.Title, "this decision")
	gap := GapScore(d.ExpectedOutcome, in.ActualOutcome)
	negative := NegativeTone(in.ActualOutcome)

	var verdict, note string
	switch {
	case gap < 0.25:
		verdict = fmt.Sprintf("Your prediction for '%s' was largely accurate", title)
		note = "the fundamentals were sound, but execution complexity was not fully priced in"
	case gap < 0.55:
		verdict = fmt.Sprintf("Your prediction for '%s' partially held: some elements landed, others did not", title)
		note = "the direction was right but the magnitude and timeline were off"
	default:
		verdict = fmt.Sprintf("Your prediction for '%s' diverged significantly from what actually happened", title)
		note = "the mental model behind this decision needs revisiting"
	}

	var calibration string
	switch {
	case d.Confidence >= 80 && negative:
		calibration = fmt.Sprintf("Your %d%% confidence was not matched by the outcome. Treat this as a calibration signal.", d.Confidence)
	case d.Confidence <= 40 && !negative:
		calibration = fmt.Sprintf("You were uncertain (%d%% confidence) but the outcome was better than feared. Trust your process more.", d.Confidence)
	}

	lowerTitle := strings.ToLower(d.Title)
	var takeaway string
	switch {
	case containsAny(lowerTitle, "delegate", "hire", "assistant"):
		takeaway = "For future delegation decisions, document processes before hiring and decide in advance how the freed time will be reinvested. " +
			"Delegation creates available time, not growth."
	case containsAny(lowerTitle, "market", "launch", "campaign"):
		takeaway = "Before the next launch, validate the market signal with a small test and set weekly milestones. " +
			"Define what success looks like at 30, 60 and 90 days."
	default:
		takeaway = "For your next similar decision, write down exactly what needs to be true for your prediction to hold, " +
			"then check each assumption before committing resources."
	}

	parts := []string{
		fmt.Sprintf("Analysis: %s. %s.", verdict, capitalize(note)),
		fmt.Sprintf("Reasoning error: %s. This reflects %s.", capitalize(AssumptionError(d, in.ActualOutcome)), CognitiveBias(d, in.ActualOutcome)),
	}
	if calibration != "" {
		parts = append(parts, "Confidence calibration: "+calibration)
	}
	parts = append(parts, "Takeaway: "+takeaway)
	return strings.Join(parts, "\n\n")
}

// RuleReplay summarizes the pattern across retrieved decisions.
func RuleReplay(in ReplayInput) string {
	if len(in.Similar) == 0 {
		return fmt.Sprintf("No past decisions found matching '%s'. Start capturing decisions to build your pattern library.", in.Query)
	}

	counts := make(map[string]int)
	var order []string
	var simSum float64
	var outcomes []string
	for _, r := range in.Similar {
		cat := orDefault(r.Category, "Unknown")
		if counts[cat] == 0 {
			order = append(order, cat)
		}
		counts[cat]++
		simSum += r.Similarity
		if r.ActualOutcome != "" && len(outcomes) < 2 {
			outcomes = append(outcomes, truncate(r.ActualOutcome, outcomePreview))
		}
	}
	dominant := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[dominant] {
			dominant = c
		}
	}

	n := len(in.Similar)
	var pattern string
	if len(outcomes) > 0 {
		pattern = fmt.Sprintf("Across %d similar decisions, your outcomes show: %s.", n, strings.Join(outcomes, " | "))
	} else {
		pattern = fmt.Sprintf("You have %d similar past decisions but none have been reflected on yet. Completing reflections will unlock pattern recognition.", n)
	}

	return fmt.Sprintf("Pattern for '%s': %d similar decisions found (%.0f%% avg relevance), predominantly in %s. %s "+
		"This cluster suggests a recurring decision pattern; review it before making the next similar move.",
		in.Query, n, 100*simSum/float64(n), dominant, pattern)
}

// RuleAlternative proposes a lower-risk approach keyed on the reasoning.
func RuleAlternative(d Decision) string {
	title := orDefault(d.Title, "this decision")
	reasoning := strings.ToLower(d.Reasoning)

	switch {
	case containsAny(reasoning, "hire", "delegate", "assistant", "outsource"):
		return fmt.Sprintf("Instead of hiring immediately for '%s', a lower-risk alternative would have been a 30-day freelancer pilot on one defined task. "+
			"Measure output quality and onboarding cost, then scale only after the return is proven. "+
			"This tests the delegation thesis with minimal commitment.", title)
	case containsAny(reasoning, "launch", "market", "campaign", "advertis"):
		return fmt.Sprintf("Rather than a full launch for '%s', a phased micro-launch to a small segment would have produced real market signal at low cost, "+
			"validating assumptions before committing the full budget and timeline.", title)
	case containsAny(reasoning, "invest", "buy", "purchase", "tool", "software"):
		return fmt.Sprintf("An alternative to '%s' would have been a time-boxed free trial or a manual simulation of the outcome. "+
			"Proving the value hypothesis before investing reduces sunk-cost risk and sharpens the actual requirements.", title)
	default:
		return fmt.Sprintf("An alternative approach to '%s' would have been a smaller proof-of-concept phase first, "+
			"testing the core assumption with 20%% of the resources before full commitment. "+
			"This de-risks the decision while still moving forward.", title)
	}
}

// RuleDaily builds guidance from the neighbors and the weekly breakdown.
func RuleDaily(in DailyInput) Guidance {
	g := Guidance{Source: SourceRuleBased}

	if len(in.Similar) > 0 {
		g.HighImpact = fmt.Sprintf("Block 90 focused minutes on '%s'. Your past decision '%s' shows this category drives your highest-leverage outcomes.",
			in.Query, orDefault(in.Similar[0].Title, "similar work"))
	} else {
		g.HighImpact = fmt.Sprintf("Spend your first 90 minutes exclusively on '%s' before checking messages or email. Deep focus early compounds through the day.",
			in.Query)
	}

	switch {
	case in.Weekly == nil:
		g.AvoidBusyWork = "Avoid context-switching: keep your phone face-down and defer non-urgent requests until after your focus block."
	case in.Weekly.Maintenance > 50:
		g.AvoidBusyWork = fmt.Sprintf("Avoid operational tasks today. Your week is already %.0f%% maintenance, so protect this session for growth work.",
			in.Weekly.Maintenance)
	default:
		g.AvoidBusyWork = "Avoid unscheduled meetings and reactive chat or email threads that fragment your focus."
	}

	if r, ok := firstReflected(in.Similar); ok {
		g.LongTermAlignment = fmt.Sprintf("Your work on '%s' connects to a pattern you have been building. Past decisions like '%s' show this is a recurring growth lever.",
			in.Query, orDefault(r.Title, "similar ones"))
	} else {
		g.LongTermAlignment = fmt.Sprintf("Every hour invested in '%s' today is a vote for your 90-day goal. Small consistent actions here compound into the outcomes that matter.",
			in.Query)
	}
	return g
}

// RuleWeekly comments on the maintenance to growth ratio.
func RuleWeekly(b patterns.Breakdown) string {
	growth := b.GrowthTotal()
	ratio := b.Ratio()

	switch {
	case ratio > 4:
		return fmt.Sprintf("Alert: you spent %.0f%% of your energy on maintenance vs %.0f%% on growth, a %.1fx imbalance. "+
			"At this rate you are sustaining the business but not building it. Next week, protect one 3-hour growth block per day.",
			b.Maintenance, growth, ratio)
	case ratio > 2:
		return fmt.Sprintf("Caution: maintenance (%.0f%%) is taking twice the energy of growth (%.0f%%). You are in operational mode. "+
			"Pick one recurring maintenance task to systemize or delegate this week.",
			b.Maintenance, growth)
	case growth > 40:
		return fmt.Sprintf("Strong week: %.0f%% of your energy went toward growth and strategy, with maintenance contained at %.0f%%. "+
			"Protect this pattern and write down what made it possible.",
			growth, b.Maintenance)
	default:
		return fmt.Sprintf("Balanced week: maintenance %.0f%%, growth %.0f%%, brand %.0f%%, admin %.0f%%. "+
			"To accelerate, shift 10%% of admin time into strategic work next week.",
			b.Maintenance, b.Growth, b.Brand, b.Admin)
	}
}
