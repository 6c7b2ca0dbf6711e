package insights

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/patterns"
)

func reflectionPrompt(in ReflectionInput) string {
	d := in.Decision
	var b strings.Builder
	b.WriteString("You are a personal decision coach. Be direct, empathetic and specific.\n\n")
	b.WriteString("DECISION MADE:\n")
	fmt.Fprintf(&b, "Title: %s\n", d.Title)
	fmt.Fprintf(&b, "Reasoning: %s\n", orDefault(d.Reasoning, "N/A"))
	fmt.Fprintf(&b, "Assumptions: %s\n", orDefault(d.Assumptions, "N/A"))
	fmt.Fprintf(&b, "Expected outcome: %s\n", orDefault(d.ExpectedOutcome, "N/A"))
	fmt.Fprintf(&b, "Confidence: %d%%\n\n", d.Confidence)
	b.WriteString("REFLECTION:\n")
	fmt.Fprintf(&b, "Actual outcome: %s\n", in.ActualOutcome)
	fmt.Fprintf(&b, "Lessons learned: %s\n\n", orDefault(in.Lessons, "Not specified"))
	b.WriteString("In 2-3 sentences, say whether the prediction was accurate, what reasoning error was made if any, ")
	b.WriteString("and one concrete takeaway for future decisions.")
	return b.String()
}

func replayPrompt(in ReplayInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal decision coach. The user searched for decisions related to: \"%s\"\n\n", in.Query)
	b.WriteString("Similar past decisions:\n")
	for _, r := range in.Similar {
		fmt.Fprintf(&b, "- [%s] %s: expected \"%s\", actual \"%s\"\n",
			orDefault(r.Category, "?"), r.Title,
			orDefault(r.ExpectedOutcome, "N/A"), orDefault(r.ActualOutcome, "not yet reflected"))
	}
	b.WriteString("\nIn 2-3 sentences, summarize the patterns across these decisions and whether there is a recurring ")
	b.WriteString("reasoning style or outcome. Be concise and personal.")
	return b.String()
}

func alternativePrompt(d Decision) string {
	var b strings.Builder
	b.WriteString("You are a strategic advisor for personal decisions.\n\n")
	b.WriteString("DECISION MADE:\n")
	fmt.Fprintf(&b, "Title: %s\n", d.Title)
	fmt.Fprintf(&b, "Reasoning: %s\n", orDefault(d.Reasoning, "N/A"))
	fmt.Fprintf(&b, "Expected outcome: %s\n\n", orDefault(d.ExpectedOutcome, "N/A"))
	b.WriteString("Suggest ONE alternative approach this person could have taken. ")
	b.WriteString("Be specific and actionable. Answer in 2-3 sentences.")
	return b.String()
}

const (
	irreversibleFraming = "DECISION TYPE: IRREVERSIBLE\n" +
		"This decision is hard to undo. Weigh downside scenarios, opportunity cost and long-term constraints, " +
		"and encourage structured thinking before full commitment."
	reversibleFraming = "DECISION TYPE: REVERSIBLE\n" +
		"This decision can be undone and tested cheaply. Encourage fast iteration and learning through experiments " +
		"over extended analysis."
)

func dailyPrompt(in DailyInput) string {
	var b strings.Builder
	b.WriteString("You are a calm strategic advisor.\n\n")
	fmt.Fprintf(&b, "User focus question: \"%s\"\n\n", in.Query)
	if in.irreversible() {
		b.WriteString(irreversibleFraming)
	} else {
		b.WriteString(reversibleFraming)
	}
	b.WriteString("\n\nTheir relevant past decisions:\n")
	if len(in.Similar) == 0 {
		b.WriteString("No past decisions found.\n")
	}
	for i, r := range in.Similar {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, orDefault(r.ExpectedOutcome, "N/A"))
	}
	if in.Weekly != nil {
		fmt.Fprintf(&b, "\nTheir week: maintenance %.0f%%, growth %.0f%%, brand %.0f%%\n",
			in.Weekly.Maintenance, in.Weekly.Growth, in.Weekly.Brand)
	}
	b.WriteString("\nRespond with EXACTLY 3 lines. No labels, no bullets, no extra text.\n")
	b.WriteString("First: the single highest-impact action to take today.\n")
	b.WriteString("Second: one kind of busy work or distraction to avoid today.\n")
	b.WriteString("Third: how today's focus connects to their long-term goals.")
	return b.String()
}

func weeklyPrompt(p patterns.Breakdown) string {
	var b strings.Builder
	b.WriteString("You are a strategic coach.\n\nThis week's activity:\n")
	fmt.Fprintf(&b, "- Maintenance: %.0f%%\n", p.Maintenance)
	fmt.Fprintf(&b, "- Revenue Growth: %.0f%%\n", p.Growth)
	fmt.Fprintf(&b, "- Brand: %.0f%%\n", p.Brand)
	fmt.Fprintf(&b, "- Admin: %.0f%%\n", p.Admin)
	fmt.Fprintf(&b, "- Strategy: %.0f%%\n", p.Strategic)
	fmt.Fprintf(&b, "- Maintenance-to-growth ratio: %.1fx\n\n", p.Ratio())
	b.WriteString("In ONE honest sentence, what does this pattern reveal about how this person spent their energy this week?")
	return b.String()
}
