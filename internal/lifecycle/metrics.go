package lifecycle

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(lifecycleTransitionsCounter)
}

var lifecycleTransitionsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "org_lifecycle_transitions_total",
		Help: "Total number of organisation status transitions",
	},
	[]string{"from", "to"},
)
