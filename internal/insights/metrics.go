package insights

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// producedTotal counts produced insights.
// Labels: surface, source (generative, rule_based)
var producedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "decisiond",
		Subsystem: "insights",
		Name:      "produced_total",
		Help:      "Total number of insights produced by surface and producer",
	},
	[]string{"surface", "source"},
)
