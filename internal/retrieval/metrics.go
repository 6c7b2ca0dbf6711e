package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fallbackTotal counts retrievals ranked in memory.
// Labels: reason (unsupported, error)
var fallbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "decisiond",
		Subsystem: "retrieval",
		Name:      "fallback_total",
		Help:      "Total number of retrievals ranked in memory instead of by the store",
	},
	[]string{"reason"},
)
