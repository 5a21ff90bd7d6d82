package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	usageTotal    *prometheus.CounterVec
	usageDuration *prometheus.HistogramVec
	usageInFlight prometheus.Gauge
	queueLag      *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	usageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "worker",
			Name:      "usage_events_total",
			Help:      "Total processed usage events by status.",
		},
		[]string{"service", "status"},
	)
	usageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatpoint",
			Subsystem: "worker",
			Name:      "usage_event_duration_seconds",
			Help:      "Usage event processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	usageInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatpoint",
			Subsystem: "worker",
			Name:      "usage_events_in_flight",
			Help:      "Number of in-flight usage event handlers.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatpoint",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between event emission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction, provider and model.",
		},
		[]string{"service", "direction", "provider", "model"},
	)

	registry.MustRegister(usageTotal, usageDuration, usageInFlight, queueLag, tokensTotal)

	return &WorkerMetrics{
		registry:      registry,
		usageTotal:    usageTotal,
		usageDuration: usageDuration,
		usageInFlight: usageInFlight,
		queueLag:      queueLag,
		tokensTotal:   tokensTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartUsageEvent() {
	m.usageInFlight.Inc()
}

func (m *WorkerMetrics) FinishUsageEvent(service string, duration time.Duration, err error) {
	m.usageInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.usageTotal.WithLabelValues(service, status).Inc()
	m.usageDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordTokenUsage(service, provider, model string, inputTokens, outputTokens int) {
	if model == "" {
		model = "unknown"
	}
	if provider == "" {
		provider = "unknown"
	}
	if inputTokens > 0 {
		m.tokensTotal.WithLabelValues(service, "in", provider, model).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.tokensTotal.WithLabelValues(service, "out", provider, model).Add(float64(outputTokens))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
