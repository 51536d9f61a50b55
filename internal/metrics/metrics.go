package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrelay_webhook_deliveries_total",
		Help: "Inbound webhook deliveries, labelled by final state.",
	}, []string{"state"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrelay_verifications_total",
		Help: "Webhook verification handshakes, labelled by result.",
	}, []string{"result"})

	MessagesIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookrelay_messages_ignored_total",
		Help: "Message records beyond the first in a delivery, which are not answered.",
	})

	RepliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrelay_replies_total",
		Help: "Outbound replies attempted, labelled by policy and status.",
	}, []string{"policy", "status"})

	SendsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookrelay_sends_dropped_total",
		Help: "Outbound replies rejected because the send queue was full.",
	})

	SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hookrelay_send_duration_ms",
		Help:    "Outbound send latency in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hookrelay_send_queue_utilization_ratio",
		Help: "Current send queue utilization (0–1).",
	})

	PolicyReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookrelay_policy_reloads_total",
		Help: "Number of times the reply policy was swapped by a config reload.",
	})
)
