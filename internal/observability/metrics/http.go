package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRepliesTotal     *prometheus.CounterVec
	chatDuration         *prometheus.HistogramVec
	fusedSources         *prometheus.HistogramVec
	admissionDeniedTotal *prometheus.CounterVec
	lowBalanceTotal      *prometheus.CounterVec
	channelTimeoutsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatpoint",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatpoint",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatRepliesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "chat",
			Name:      "replies_total",
			Help:      "Total chat replies by channel and outcome.",
		},
		[]string{"service", "channel", "outcome"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatpoint",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "End-to-end chat pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "channel"},
	)
	fusedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatpoint",
			Subsystem: "chat",
			Name:      "fused_sources",
			Help:      "Distribution of fused evidence sources per reply.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "channel"},
	)
	admissionDeniedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "points",
			Name:      "admission_denied_total",
			Help:      "Total requests denied by the points admission check.",
		},
		[]string{"service", "channel"},
	)
	lowBalanceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "points",
			Name:      "low_balance_warnings_total",
			Help:      "Total successful replies annotated with a low balance warning.",
		},
		[]string{"service"},
	)
	channelTimeoutsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpoint",
			Subsystem: "chat",
			Name:      "channel_timeouts_total",
			Help:      "Total replies abandoned at the channel wall-clock budget.",
		},
		[]string{"service", "channel"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRepliesTotal,
		chatDuration,
		fusedSources,
		admissionDeniedTotal,
		lowBalanceTotal,
		channelTimeoutsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		chatRepliesTotal:     chatRepliesTotal,
		chatDuration:         chatDuration,
		fusedSources:         fusedSources,
		admissionDeniedTotal: admissionDeniedTotal,
		lowBalanceTotal:      lowBalanceTotal,
		channelTimeoutsTotal: channelTimeoutsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/points/"):
		return "/v1/points/{tenant_id}"
	default:
		return path
	}
}

// RecordChatReply captures the per-reply pipeline observation after a chat
// request finishes.
func (m *HTTPServerMetrics) RecordChatReply(service, channel, outcome string, sourceCount int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.chatRepliesTotal.WithLabelValues(service, channel, outcome).Inc()
	m.chatDuration.WithLabelValues(service, channel).Observe(duration.Seconds())
	if outcome == "success" {
		m.fusedSources.WithLabelValues(service, channel).Observe(float64(sourceCount))
	}
}

func (m *HTTPServerMetrics) RecordAdmissionDenied(service, channel string) {
	m.admissionDeniedTotal.WithLabelValues(service, channel).Inc()
}

func (m *HTTPServerMetrics) RecordLowBalanceWarning(service string) {
	m.lowBalanceTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordChannelTimeout(service, channel string) {
	m.channelTimeoutsTotal.WithLabelValues(service, channel).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
