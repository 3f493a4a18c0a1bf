package ratelimit

import "github.com/prometheus/client_golang/prometheus"

var rejectedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ratelimit_rejected_total",
		Help: "Requests rejected by the rate limiter",
	},
	[]string{"scope"},
)

func init() {
	prometheus.MustRegister(rejectedCounter)
}
