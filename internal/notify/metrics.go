package notify

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(notificationsCounter)
}

var notificationsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Total number of notifications by kind and outcome",
	},
	[]string{"kind", "outcome"},
)
