package billing

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(statusTransitionsCounter)
	prometheus.MustRegister(paymentsCounter)
}

var statusTransitionsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_status_transitions_total",
		Help: "Total number of monthly record and invoice status changes",
	},
	[]string{"kind", "status"},
)

var paymentsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_payments_total",
		Help: "Total number of recorded payments",
	},
	[]string{"method", "outcome"},
)
