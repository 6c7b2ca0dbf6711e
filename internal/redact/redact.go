// Package redact removes credentials from free text before it leaves the
// process.
//
// Decision records are written by people and sometimes carry pasted
// connection strings or API keys. Prompts built from those records are
// passed through a Redactor before they reach a hosted generation provider.
package redact

import (
	"fmt"
	"regexp"
	"sort"
)

// DefaultReplacement is substituted for every match.
const DefaultReplacement = "[REDACTED]"

// Rule describes one credential shape.
type Rule struct {
	ID      string
	Pattern string
}

// Finding records one redacted span of the input. The matched text is never
// kept.
type Finding struct {
	RuleID string
	Start  int
	End    int
}

// Result is the outcome of Redact.
type Result struct {
	Text     string
	Findings []Finding
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the distinct rules that matched, sorted.
func (r Result) RuleIDs() []string {
	seen := make(map[string]bool, len(r.Findings))
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Redactor replaces credential-shaped substrings. It is safe for concurrent
// use; compiled patterns are never mutated after New.
type Redactor struct {
	rules       []compiledRule
	allow       []*regexp.Regexp
	replacement string
}

type compiledRule struct {
	id      string
	pattern *regexp.Regexp
}

// Option configures a Redactor.
type Option func(*Redactor) error

// WithReplacement overrides DefaultReplacement.
func WithReplacement(s string) Option {
	return func(r *Redactor) error {
		if s == "" {
			return fmt.Errorf("replacement cannot be empty")
		}
		r.replacement = s
		return nil
	}
}

// WithAllow exempts matches that also match any of the given patterns.
func WithAllow(patterns ...string) Option {
	return func(r *Redactor) error {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("allow pattern %q: %w", p, err)
			}
			r.allow = append(r.allow, re)
		}
		return nil
	}
}

// New compiles rules. A nil rules slice selects DefaultRules.
func New(rules []Rule, opts ...Option) (*Redactor, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	r := &Redactor{replacement: DefaultReplacement}
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("rule %s: duplicate id", rule.ID)
		}
		seen[rule.ID] = true
		if rule.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		r.rules = append(r.rules, compiledRule{id: rule.ID, pattern: re})
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew is New for package-level defaults. It panics on error.
func MustNew(rules []Rule, opts ...Option) *Redactor {
	r, err := New(rules, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Redact returns text with every credential replaced. Overlapping matches
// from different rules collapse into a single replacement.
func (r *Redactor) Redact(text string) Result {
	res := Result{Text: text}
	if r == nil || text == "" {
		return res
	}

	for _, rule := range r.rules {
		for _, m := range rule.pattern.FindAllStringIndex(text, -1) {
			if r.allowed(text[m[0]:m[1]]) {
				continue
			}
			res.Findings = append(res.Findings, Finding{RuleID: rule.id, Start: m[0], End: m[1]})
		}
	}
	if len(res.Findings) == 0 {
		return res
	}

	sort.Slice(res.Findings, func(i, j int) bool {
		if res.Findings[i].Start != res.Findings[j].Start {
			return res.Findings[i].Start < res.Findings[j].Start
		}
		return res.Findings[i].End > res.Findings[j].End
	})

	out := make([]byte, 0, len(text))
	pos := 0
	for _, span := range merge(res.Findings) {
		out = append(out, text[pos:span[0]]...)
		out = append(out, r.replacement...)
		pos = span[1]
	}
	out = append(out, text[pos:]...)
	res.Text = string(out)
	return res
}

func (r *Redactor) allowed(match string) bool {
	for _, re := range r.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// merge collapses sorted findings into disjoint [start, end) spans.
func merge(findings []Finding) [][2]int {
	spans := make([][2]int, 0, len(findings))
	for _, f := range findings {
		if n := len(spans); n > 0 && f.Start <= spans[n-1][1] {
			if f.End > spans[n-1][1] {
				spans[n-1][1] = f.End
			}
			continue
		}
		spans = append(spans, [2]int{f.Start, f.End})
	}
	return spans
}
