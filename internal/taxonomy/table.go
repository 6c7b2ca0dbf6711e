// Package taxonomy classifies decisions into the fixed category set and into
// reversible or irreversible.
//
// Both label tables are data: a Table can be loaded from YAML and swapped at
// runtime without code changes.
package taxonomy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Category names of the built-in table.
const (
	CategoryRevenueGrowth = "Revenue Growth"
	CategoryMaintenance   = "Maintenance"
	CategoryBrand         = "Brand"
	CategoryAdmin         = "Admin"
	CategoryStrategy      = "Strategy"
)

// Decision types.
const (
	Reversible   = "reversible"
	Irreversible = "irreversible"
)

// ErrInvalidTable is returned for tables that fail validation.
var ErrInvalidTable = errors.New("invalid taxonomy table")

// Category is one label with the prototype text it is matched against.
type Category struct {
	Name      string `koanf:"name" json:"name"`
	Prototype string `koanf:"prototype" json:"prototype"`
	Color     string `koanf:"color" json:"color"`
}

// Rule marks text as irreversible when Pattern matches. Patterns are
// matched case-insensitively.
type Rule struct {
	Name    string `koanf:"name" json:"name"`
	Pattern string `koanf:"pattern" json:"pattern"`

	re *regexp.Regexp
}

// Match reports whether the rule matches text. The rule must be compiled.
func (r Rule) Match(text string) bool {
	return r.re != nil && r.re.MatchString(text)
}

// Table is a versioned set of categories and reversibility rules. Order is
// significant in both lists.
type Table struct {
	Version         string     `koanf:"version" json:"version"`
	DefaultCategory string     `koanf:"default_category" json:"default_category"`
	Categories      []Category `koanf:"categories" json:"categories"`
	Rules           []Rule     `koanf:"reversibility_rules" json:"reversibility_rules"`
}

// Compile validates t and compiles its rules.
func (t *Table) Compile() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidTable)
	}
	seen := make(map[string]bool, len(t.Categories))
	for i, c := range t.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: category %d has no name", ErrInvalidTable, i)
		}
		if strings.TrimSpace(c.Prototype) == "" {
			return fmt.Errorf("%w: category %q has no prototype", ErrInvalidTable, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidTable, c.Name)
		}
		seen[c.Name] = true
	}
	if t.DefaultCategory == "" {
		t.DefaultCategory = t.Categories[len(t.Categories)-1].Name
	}
	if !seen[t.DefaultCategory] {
		return fmt.Errorf("%w: default category %q is not declared", ErrInvalidTable, t.DefaultCategory)
	}

	for i := range t.Rules {
		r := &t.Rules[i]
		if r.Pattern == "" {
			return fmt.Errorf("%w: rule %d has no pattern", ErrInvalidTable, i)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidTable, r.Name, err)
		}
		r.re = re
	}
	return nil
}

// Has reports whether name is a declared category.
func (t *Table) Has(name string) bool {
	for _, c := range t.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Names returns category names in declaration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// Current lets a static *Table act as a Source.
func (t *Table) Current() *Table {
	return t
}

// Source yields the table in effect.
type Source interface {
	Current() *Table
}

// DefaultTable returns the built-in table, compiled.
func DefaultTable() *Table {
	t := &Table{
		Version:         "builtin-v1",
		DefaultCategory: CategoryStrategy,
		Categories: []Category{
			{Name: CategoryRevenueGrowth, Prototype: "sales revenue growth business expansion monetization income profit", Color: "#3B82F6"},
			{Name: CategoryMaintenance, Prototype: "maintenance fixing bugs technical debt infrastructure upkeep repairs", Color: "#9CA3AF"},
			{Name: CategoryBrand, Prototype: "branding marketing awareness content social media presence reputation", Color: "#A855F7"},
			{Name: CategoryAdmin, Prototype: "administration meetings planning organization HR legal compliance", Color: "#F59E0B"},
			{Name: CategoryStrategy, Prototype: "strategy vision long-term planning goals direction innovation transformation", Color: "#22C55E"},
		},
		Rules: []Rule{
			{Name: "financial_commitment", Pattern: `\b(debt|loan|finance|borrow|invest(ment)?|equity|capital raise|fund(ing)?)\b`},
			{Name: "legal_contractual", Pattern: `\b(contract|agreement|sign(ing)?|lease|binding|exclusive|partner(ship)?|joint venture)\b`},
			{Name: "hiring", Pattern: `\b(hire|hiring|employ|full.?time|permanent staff|headcount|recruit)\b`},
			{Name: "pricing_change", Pattern: `\b(increase.{0,20}price|price.{0,20}increase|repric|pricing model|premium pricing)\b`},
			{Name: "rebranding", Pattern: `\b(rebrand|reposit|brand pivot|brand identity|new brand|brand shift)\b`},
			{Name: "market_pivot", Pattern: `\b(pivot|enter.{0,20}market|new market|market entry|strategic shift|exit.{0,20}market)\b`},
			{Name: "resource_elimination", Pattern: `\b(outsourc|automat|replac|shut down|close|discontinu|exit|divest|sell.{0,20}business)\b`},
			{Name: "long_horizon", Pattern: `\b(long.?term|multi.?year|5.year|3.year|10.year|permanent|irrevoc)\b`},
		},
	}
	if err := t.Compile(); err != nil {
		panic(fmt.Sprintf("taxonomy: built-in table: %v", err))
	}
	return t
}
