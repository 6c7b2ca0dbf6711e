package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// indexOps counts index operations.
// Labels: op (upsert, delete, query), result (ok, error)
var indexOps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "decisiond",
		Subsystem: "vectorstore",
		Name:      "operations_total",
		Help:      "Total number of vector index operations",
	},
	[]string{"op", "result"},
)
