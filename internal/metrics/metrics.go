package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_deliveries_total",
			Help: "Total number of delivery outcomes by status.",
		},
		[]string{"status"}, // delivered, failed, queued, dropped
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_retries_total",
			Help: "Total number of delivery retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, network, other
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_queue_depth",
			Help: "Current number of entries in the delivery queue.",
		},
	)

	QueueEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_queue_evictions_total",
			Help: "Total number of entries evicted from a full delivery queue.",
		},
	)

	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_validations_total",
			Help: "Total number of validation passes by outcome.",
		},
		[]string{"outcome"}, // success, warning, error
	)
)

// RecordDelivery increments the delivery counter for a final status.
func RecordDelivery(status string) {
	DeliveriesTotal.WithLabelValues(status).Inc()
}

// RecordRetry increments the retry counter for a failure reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// SetQueueDepth records the current queue size.
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// RecordQueueEviction counts an entry displaced by a full queue.
func RecordQueueEviction() {
	QueueEvictionsTotal.Inc()
}

// RecordValidation increments the validation counter for an outcome.
func RecordValidation(outcome string) {
	ValidationsTotal.WithLabelValues(outcome).Inc()
}

// MustRegister registers all pipeline metrics with the given registry.
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(DeliveriesTotal, RetriesTotal, QueueDepth, QueueEvictionsTotal, ValidationsTotal)
}
