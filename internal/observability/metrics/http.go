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

	"github.com/eatwise/labelscan/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysesTotal      *prometheus.CounterVec
	quotaDenialsTotal  *prometheus.CounterVec
	normalizerTotal    *prometheus.CounterVec
	modelDuration      *prometheus.HistogramVec
	billingEventsTotal *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
	retriesTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelscan",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labelscan",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "labelscan",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelscan",
			Subsystem: "analysis",
			Name:      "analyses_total",
			Help:      "Analyze requests by caller tier and outcome.",
		},
		[]string{"service", "tier", "outcome"},
	)
	quotaDenialsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelscan",
			Subsystem: "analysis",
			Name:      "quota_denials_total",
			Help:      "Analyze requests refused because the caller's quota is used up.",
		},
		[]string{"service", "reason"},
	)
	normalizerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelscan",
			Subsystem: "analysis",
			Name:      "normalizer_strategy_total",
			Help:      "Model replies by the parse strategy that produced the record.",
		},
		[]string{"service", "strategy"},
	)
	modelDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labelscan",
			Subsystem: "model",
			Name:      "duration_seconds",
			Help:      "Label model call duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"service", "outcome"},
	)
	billingEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelscan",
			Subsystem: "billing",
			Name:      "events_total",
			Help:      "Verified payment webhook events by type and whether an upgrade was applied.",
		},
		[]string{"service", "type", "applied"},
	)
	circuitState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "labelscan",
			Subsystem: "resilience",
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker for an operation is not closed.",
		},
		[]string{"service", "operation"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labelscan",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retries issued against remote dependencies by operation.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysesTotal,
		quotaDenialsTotal,
		normalizerTotal,
		modelDuration,
		billingEventsTotal,
		circuitState,
		retriesTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		service:            service,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		analysesTotal:      analysesTotal,
		quotaDenialsTotal:  quotaDenialsTotal,
		normalizerTotal:    normalizerTotal,
		modelDuration:      modelDuration,
		billingEventsTotal: billingEventsTotal,
		circuitState:       circuitState,
		retriesTotal:       retriesTotal,
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

// normalizePath folds ids and image keys so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case path == "/v1/reports/export" || path == "/v1/reports/migrate":
		return path
	case strings.HasPrefix(path, "/v1/reports/"):
		return "/v1/reports/{id}"
	case strings.HasPrefix(path, "/v1/images/"):
		return "/v1/images/{key}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveAnalysis(tier domain.Tier, outcome string) {
	m.analysesTotal.WithLabelValues(m.service, string(tier), outcome).Inc()
}

func (m *HTTPServerMetrics) ObserveQuotaDenial(reason string) {
	m.quotaDenialsTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *HTTPServerMetrics) ObserveNormalizerStrategy(strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.normalizerTotal.WithLabelValues(m.service, strategy).Inc()
}

func (m *HTTPServerMetrics) ObserveModelCall(outcome string, duration time.Duration) {
	m.modelDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveBillingEvent(eventType string, applied bool) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.billingEventsTotal.WithLabelValues(m.service, eventType, strconv.FormatBool(applied)).Inc()
}

// ObserveCircuitState matches resilience.StateChangeFunc.
func (m *HTTPServerMetrics) ObserveCircuitState(operation, _ string, to string) {
	value := 0.0
	if to != "closed" {
		value = 1
	}
	m.circuitState.WithLabelValues(m.service, operation).Set(value)
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

func (m *HTTPServerMetrics) ObserveRetry(operation string, _ int) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}
