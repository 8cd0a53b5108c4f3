// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// Dispatcher metrics
	IntentsTotal      *prometheus.CounterVec
	RepliesTotal      *prometheus.CounterVec
	DispatchFailures  *prometheus.CounterVec
	FanoutPanicsTotal *prometheus.CounterVec

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderDurationSeconds *prometheus.HistogramVec
	SingleflightDedupTotal  *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheEntries     prometheus.Gauge

	// Alert metrics
	AlertsTotal          *prometheus.CounterVec
	AlertDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aq_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"event_type"}, // event_type: message, follow
		),
		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error, reply_error
		),

		IntentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_intents_total",
				Help: "Total number of classified messages by intent",
			},
			[]string{"intent"},
		),
		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_replies_total",
				Help: "Total number of chat replies emitted by source",
			},
			[]string{"source"}, // source: static, live, cache
		),
		DispatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_dispatch_failures_total",
				Help: "Total number of messages answered with a fallback reply by reason",
			},
			[]string{"reason"}, // reason: provider_error, no_measurements
		),
		FanoutPanicsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_fanout_panics_total",
				Help: "Total number of recovered panics in measurement fan-out paths",
			},
			[]string{"path"}, // path: chat, alert
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_provider_requests_total",
				Help: "Total number of provider lookups by operation and status",
			},
			[]string{"op", "status"}, // op: cities, latest
		),
		ProviderDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aq_provider_duration_seconds",
				Help:    "Provider lookup duration in seconds by operation",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"op"},
		),
		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_singleflight_dedup_total",
				Help: "Total number of provider lookups that joined an in-flight call",
			},
			[]string{"op"},
		),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aq_cache_hits_total",
			Help: "Total number of location lookups answered from the reply cache",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aq_cache_misses_total",
			Help: "Total number of location lookups that went to the provider",
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aq_cache_entries",
			Help: "Number of locations held in the reply cache",
		}),

		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aq_alerts_total",
				Help: "Total number of alert events by sink and status",
			},
			[]string{"sink", "status"},
		),
		AlertDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aq_alert_publish_duration_seconds",
				Help:    "Alert publish duration in seconds by sink",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"sink"},
		),
	}
}

// RecordWebhook records a processed webhook event
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordIntent records a classified message
func (m *Metrics) RecordIntent(intent string) {
	m.IntentsTotal.WithLabelValues(intent).Inc()
}

// RecordReply records a chat reply emitted from the given source
func (m *Metrics) RecordReply(source string) {
	m.RepliesTotal.WithLabelValues(source).Inc()
}

// RecordDispatchFailure records a message answered with a fallback reply
func (m *Metrics) RecordDispatchFailure(reason string) {
	m.DispatchFailures.WithLabelValues(reason).Inc()
}

// RecordFanoutPanic records a recovered panic in a fan-out path
func (m *Metrics) RecordFanoutPanic(path string) {
	m.FanoutPanicsTotal.WithLabelValues(path).Inc()
}

// RecordProviderRequest records a provider lookup with status
func (m *Metrics) RecordProviderRequest(op, status string, duration float64) {
	m.ProviderRequestsTotal.WithLabelValues(op, status).Inc()
	m.ProviderDurationSeconds.WithLabelValues(op).Observe(duration)
}

// RecordSingleflightDedup records a lookup that shared an in-flight result
func (m *Metrics) RecordSingleflightDedup(op string) {
	m.SingleflightDedupTotal.WithLabelValues(op).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// SetCacheEntries updates the cache size gauge
func (m *Metrics) SetCacheEntries(n int) {
	m.CacheEntries.Set(float64(n))
}

// RecordAlert records an alert publish attempt
func (m *Metrics) RecordAlert(sink, status string, duration float64) {
	m.AlertsTotal.WithLabelValues(sink, status).Inc()
	m.AlertDurationSeconds.WithLabelValues(sink).Observe(duration)
}
