package patterns

import (
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/store"
	"github.com/fyrsmithlabs/decisiond/internal/taxonomy"
)

// Breakdown holds the share of decisions per category, in percent.
type Breakdown struct {
	Maintenance float64 `json:"maintenance_pct"`
	Growth      float64 `json:"growth_pct"`
	Brand       float64 `json:"brand_pct"`
	Admin       float64 `json:"admin_pct"`
	Strategic   float64 `json:"strategic_pct"`
}

// DemoBreakdown stands in for users without a weekly summary.
var DemoBreakdown = Breakdown{Maintenance: 61, Growth: 19, Brand: 8, Admin: 12, Strategic: 0}

// Aggregate computes the breakdown of a week's category tags. Tags outside
// the built-in set count as maintenance. An empty week is all zeros.
func Aggregate(categories []string) Breakdown {
	if len(categories) == 0 {
		return Breakdown{}
	}
	counts := make(map[string]int, 5)
	for _, c := range categories {
		switch c {
		case taxonomy.CategoryRevenueGrowth, taxonomy.CategoryBrand, taxonomy.CategoryAdmin, taxonomy.CategoryStrategy:
			counts[c]++
		default:
			counts[taxonomy.CategoryMaintenance]++
		}
	}
	total := float64(len(categories))
	pct := func(name string) float64 {
		return clampPct(math.Round(float64(counts[name])/total*1000) / 10)
	}
	return Breakdown{
		Maintenance: pct(taxonomy.CategoryMaintenance),
		Growth:      pct(taxonomy.CategoryRevenueGrowth),
		Brand:       pct(taxonomy.CategoryBrand),
		Admin:       pct(taxonomy.CategoryAdmin),
		Strategic:   pct(taxonomy.CategoryStrategy),
	}
}

// AggregateDecisions is Aggregate over the decisions' categories.
func AggregateDecisions(ds []store.Decision) Breakdown {
	tags := make([]string, len(ds))
	for i, d := range ds {
		tags[i] = d.Category
	}
	return Aggregate(tags)
}

func clampPct(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}

// FromSummary reads the breakdown stored on a summary.
func FromSummary(s store.WeeklySummary) Breakdown {
	return Breakdown{
		Maintenance: s.MaintenancePct,
		Growth:      s.GrowthPct,
		Brand:       s.BrandPct,
		Admin:       s.AdminPct,
		Strategic:   s.StrategicPct,
	}
}

// Summary builds a weekly summary row from the breakdown.
func (b Breakdown) Summary(userID string, weekStart time.Time) *store.WeeklySummary {
	return &store.WeeklySummary{
		UserID:         userID,
		WeekStart:      weekStart,
		MaintenancePct: b.Maintenance,
		GrowthPct:      b.Growth,
		BrandPct:       b.Brand,
		AdminPct:       b.Admin,
		StrategicPct:   b.Strategic,
	}
}

// GrowthTotal is growth plus strategy.
func (b Breakdown) GrowthTotal() float64 {
	return b.Growth + b.Strategic
}

// Ratio is maintenance over growth, with growth floored at 1.
func (b Breakdown) Ratio() float64 {
	return b.Maintenance / math.Max(b.GrowthTotal(), 1)
}

// BalanceLabel describes the maintenance to growth balance.
func BalanceLabel(b Breakdown) string {
	switch {
	case b.Maintenance > 60:
		return fmt.Sprintf("You are spending %.1fx more time maintaining than growing.", b.Ratio())
	case b.GrowthTotal() > b.Maintenance:
		return "Great balance: your growth focus is ahead of maintenance this week."
	default:
		return "Your focus is balanced across maintenance and growth activities."
	}
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
