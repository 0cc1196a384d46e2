package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	EventsReceived     *prometheus.CounterVec
	EventsDuplicate    prometheus.Counter
	EventsAnomalous    *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	RemindersScheduled prometheus.Counter
	RemindersCancelled prometheus.Counter
	RemindersSent      prometheus.Counter
	ProcessDuration    prometheus.Histogram
}

// New creates all gateway metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all gateway metrics on the given registry. Tests pass a
// fresh registry so suites stay independent.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_gateway_events_received_total",
			Help: "Webhook events admitted for processing, by canonical kind",
		}, []string{"kind"}),
		EventsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_gateway_events_duplicate_total",
			Help: "Webhook events rejected by the deduplication ledger",
		}),
		EventsAnomalous: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_gateway_events_anomalous_total",
			Help: "Events that could not mutate state (unknown kind, missing record, invalid transition)",
		}, []string{"reason"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_gateway_transitions_total",
			Help: "Compliance record transitions applied, by resulting status",
		}, []string{"status"}),
		RemindersScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_gateway_reminders_scheduled_total",
			Help: "Reminder entries written to the notification queue",
		}),
		RemindersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_gateway_reminders_cancelled_total",
			Help: "Pending reminder entries cancelled on completion or unenrollment",
		}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_gateway_reminders_sent_total",
			Help: "Due reminder entries handed to the sender by the dispatcher",
		}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_gateway_payload_process_seconds",
			Help:    "End-to-end processing latency for one inbound payload",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
