package webhooks

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook events received by provider, type and outcome",
		},
		[]string{"provider", "type", "outcome"},
	)
	whatsappStatusesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_message_statuses_total",
			Help: "WhatsApp message status updates by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(eventsCounter, whatsappStatusesCounter)
}
