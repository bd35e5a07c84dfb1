package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics plus the in-process timing rings the
// health endpoint reports averages from. Updates never block request paths;
// counter increments are atomic and ring appends take a short mutex.
type Metrics struct {
	// Reservation metrics
	HoldsCreatedTotal  prometheus.Counter
	HoldsRejectedTotal *prometheus.CounterVec
	HoldsExpiredTotal  prometheus.Counter
	HoldDuration       prometheus.Histogram

	// Order metrics
	OrdersCreatedTotal prometheus.Counter

	// Webhook metrics
	WebhooksTotal          *prometheus.CounterVec
	WebhookDuplicatesTotal prometheus.Counter
	WebhookDuration        prometheus.Histogram

	// Contention metrics
	DeadlockRetriesTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Timing rings for the health endpoint (bounded, oldest trimmed)
	holdTimings    *TimingRing
	webhookTimings *TimingRing
}

// New creates and registers all metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		HoldsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_holds_created_total",
			Help: "Total number of stock holds created",
		}),
		HoldsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "surgecart_holds_rejected_total",
			Help: "Total number of hold requests rejected",
		}, []string{"reason"}),
		HoldsExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_holds_expired_total",
			Help: "Total number of holds retired by the expiry sweep",
		}),
		HoldDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "surgecart_hold_creation_duration_seconds",
			Help:    "Time taken to create a stock hold",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		OrdersCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_orders_created_total",
			Help: "Total number of orders created from holds",
		}),

		WebhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "surgecart_webhooks_total",
			Help: "Total number of payment webhooks processed",
		}, []string{"status"}),
		WebhookDuplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_webhook_duplicates_total",
			Help: "Total number of webhook deliveries answered from a prior payment",
		}),
		WebhookDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "surgecart_webhook_duration_seconds",
			Help:    "Time taken to process a payment webhook",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		DeadlockRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_deadlock_retries_total",
			Help: "Total number of transactions re-run after a contention error",
		}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_cache_hits_total",
			Help: "Total number of available-stock cache hits",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surgecart_cache_misses_total",
			Help: "Total number of available-stock cache misses",
		}),

		holdTimings:    NewTimingRing(1000),
		webhookTimings: NewTimingRing(1000),
	}
}

// ObserveHoldCreation records one hold-creation latency sample.
func (m *Metrics) ObserveHoldCreation(d time.Duration) {
	m.HoldsCreatedTotal.Inc()
	m.HoldDuration.Observe(d.Seconds())
	m.holdTimings.Add(d)
}

// ObserveHoldRejected counts a rejected hold request by reason.
func (m *Metrics) ObserveHoldRejected(reason string) {
	m.HoldsRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveWebhook records one webhook-processing latency sample by outcome.
func (m *Metrics) ObserveWebhook(status string, d time.Duration) {
	m.WebhooksTotal.WithLabelValues(status).Inc()
	m.WebhookDuration.Observe(d.Seconds())
	m.webhookTimings.Add(d)
}

// ObserveWebhookDuplicate counts an idempotent webhook replay.
func (m *Metrics) ObserveWebhookDuplicate() {
	m.WebhookDuplicatesTotal.Inc()
}

// ObserveDeadlockRetry counts one contention-triggered re-run.
func (m *Metrics) ObserveDeadlockRetry() {
	m.DeadlockRetriesTotal.Inc()
}

// ObserveCacheHit counts an available-stock snapshot served from cache.
func (m *Metrics) ObserveCacheHit() {
	m.CacheHitsTotal.Inc()
}

// ObserveCacheMiss counts a fall-through to the authoritative database read.
func (m *Metrics) ObserveCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// HoldCreationAverage returns the mean latency over the bounded sample ring.
func (m *Metrics) HoldCreationAverage() time.Duration {
	return m.holdTimings.Average()
}

// WebhookAverage returns the mean webhook latency over the bounded sample ring.
func (m *Metrics) WebhookAverage() time.Duration {
	return m.webhookTimings.Average()
}
