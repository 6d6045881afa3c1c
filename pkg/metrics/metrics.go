package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts accepted registration requests by offer outcome (sent|failed).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weddingdesk_registrations_total",
			Help: "Total number of wedding inquiries registered",
		},
		[]string{"offer"},
	)

	// Transitions records accept/decline attempts and their result (ok|conflict|not_found|error).
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weddingdesk_transitions_total",
			Help: "Total number of inquiry state transition attempts",
		},
		[]string{"action", "result"},
	)

	// EmailsSent counts notification attempts by template kind and status (sent|failed).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weddingdesk_emails_total",
			Help: "Total number of notification emails attempted",
		},
		[]string{"kind", "status"},
	)

	// RemindersFired counts reminder job executions by outcome (sent|skipped|cancelled|retry|failed).
	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weddingdesk_reminders_total",
			Help: "Total number of reminder job executions",
		},
		[]string{"outcome"},
	)

	// PendingReminders tracks reminder jobs still waiting to fire after the last sweep.
	PendingReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weddingdesk_pending_reminders",
			Help: "Number of reminder jobs waiting to fire",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weddingdesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
