package patterns

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/decisiond/internal/store"
)

const (
	// DefaultThreshold is the reflection count that enables extraction.
	DefaultThreshold = 5
	// DefaultLessonWindow bounds how many recent lessons are read.
	DefaultLessonWindow = 10
	// DefaultCap bounds extracted and retained principles.
	DefaultCap = 5

	minFragmentLength = 30
)

// Template maps a lesson topic to a canned principle.
type Template struct {
	Name      string
	Pattern   *regexp.Regexp
	Principle string
}

// Templates are evaluated in order.
var Templates = []Template{
	{
		Name:      "delegation",
		Pattern:   regexp.MustCompile(`(?i)\b(delegat\w*|hir(e|ed|ing)|assistants?|outsourc\w*|freelanc\w*)\b`),
		Principle: "Document the process and decide how freed time will be reinvested before delegating.",
	},
	{
		Name:      "timeline",
		Pattern:   regexp.MustCompile(`(?i)\b(took longer|longer than|timelines?|deadlines?|delay\w*|slower)\b`),
		Principle: "Add a buffer to every timeline estimate; execution takes longer than planning suggests.",
	},
	{
		Name:      "validation",
		Pattern:   regexp.MustCompile(`(?i)\b(validat\w*|assum\w*|pilot\w*|test(ed|ing)? first)\b`),
		Principle: "Validate the core assumption with a small test before committing fully.",
	},
	{
		Name:      "customer",
		Pattern:   regexp.MustCompile(`(?i)\b(customers?|clients?|users? feedback|buyers?)\b`),
		Principle: "Talk to customers before building; external response is harder to predict than internal effort.",
	},
	{
		Name:      "focus",
		Pattern:   regexp.MustCompile(`(?i)\b(focus\w*|distract\w*|context.?switch\w*|priorit\w*)\b`),
		Principle: "Protect focused time for growth work; busy work expands to fill unguarded hours.",
	},
	{
		Name:      "process",
		Pattern:   regexp.MustCompile(`(?i)\b(process\w*|systems?|systemi[sz]\w*|automat\w*|document\w*)\b`),
		Principle: "Systemize recurring work before trying to scale it.",
	},
	{
		Name:      "cost",
		Pattern:   regexp.MustCompile(`(?i)\b(costs?|costly|budget\w*|expens\w*|cash|overspen\w*)\b`),
		Principle: "Price in hidden costs like onboarding and integration before committing resources.",
	},
	{
		Name:      "confidence",
		Pattern:   regexp.MustCompile(`(?i)\b(overconfiden\w*|confiden\w*|certain\w*|too sure)\b`),
		Principle: "Treat high confidence as a prompt to look for disconfirming evidence.",
	},
	{
		Name:      "communication",
		Pattern:   regexp.MustCompile(`(?i)\b(communicat\w*|expectations?|misalign\w*|unclear|clarity)\b`),
		Principle: "Set explicit expectations up front; unclear communication turns into rework.",
	},
	{
		Name:      "small_steps",
		Pattern:   regexp.MustCompile(`(?i)\b(small(er)?|incremental\w*|iterat\w*|phased?|step by step)\b`),
		Principle: "Move in small reversible steps and scale only what works.",
	},
}

var fragmentSplit = regexp.MustCompile(`[.!?;\n]+`)

// ExtractPrinciples distills up to limit principles from lessons, newest
// first. Pass 1 emits every template that matches the corpus and at least
// one lesson. Pass 2 covers the remaining lessons one by one, falling back
// to the lesson's first long fragment.
func ExtractPrinciples(lessons []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultCap
	}

	cleaned := make([]string, 0, len(lessons))
	for _, l := range lessons {
		if l = strings.TrimSpace(l); l != "" {
			cleaned = append(cleaned, l)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] && len(out) < limit {
			seen[p] = true
			out = append(out, p)
		}
	}

	corpus := strings.Join(cleaned, " ")
	for _, tpl := range Templates {
		if len(out) >= limit {
			return out
		}
		if !tpl.Pattern.MatchString(corpus) {
			continue
		}
		for _, l := range cleaned {
			if tpl.Pattern.MatchString(l) {
				add(tpl.Principle)
				break
			}
		}
	}

	for _, l := range cleaned {
		if len(out) >= limit {
			break
		}
		if tpl, ok := matchTemplate(l); ok {
			add(tpl.Principle)
			continue
		}
		if frag := firstFragment(l); frag != "" {
			add("Keep in mind: " + frag + ".")
		}
	}
	return out
}

func matchTemplate(lesson string) (Template, bool) {
	for _, tpl := range Templates {
		if tpl.Pattern.MatchString(lesson) {
			return tpl, true
		}
	}
	return Template{}, false
}

func firstFragment(lesson string) string {
	for _, f := range fragmentSplit.Split(lesson, -1) {
		f = strings.TrimSpace(f)
		if utf8.RuneCountInString(f) > minFragmentLength {
			return f
		}
	}
	return ""
}

// NewPrinciples returns the candidates whose exact text is not already an
// existing principle, in order and without repeats.
func NewPrinciples(candidates []string, existing []store.Insight) []string {
	have := make(map[string]bool, len(existing))
	for _, in := range existing {
		have[in.Description] = true
	}
	var out []string
	for _, c := range candidates {
		if !have[c] {
			have[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Evictions returns the ids of principles beyond limit, oldest first by
// creation time with the id breaking ties. The newest limit survive.
func Evictions(principles []store.Insight, limit int) []string {
	if limit < 0 {
		limit = 0
	}
	if len(principles) <= limit {
		return nil
	}
	sorted := make([]store.Insight, len(principles))
	copy(sorted, principles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	drop := sorted[:len(sorted)-limit]
	ids := make([]string, len(drop))
	for i, in := range drop {
		ids[i] = in.ID
	}
	return ids
}
