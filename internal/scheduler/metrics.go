package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "decisiond_scheduler_runs_total",
	Help: "Background job runs by job and result.",
}, []string{"job", "result"})
