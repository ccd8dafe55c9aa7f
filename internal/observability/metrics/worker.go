package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eatwise/labelscan/internal/core/domain"
)

// WorkerMetrics covers the image cleanup worker. Every series carries the
// service name and the storage backend the worker deletes from.
type WorkerMetrics struct {
	registry *prometheus.Registry

	cleanupTotal    *prometheus.CounterVec
	cleanupDuration *prometheus.HistogramVec
	cleanupInFlight prometheus.Gauge
	queueLag        prometheus.Histogram
}

func NewWorkerMetrics(service, backend string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service, "backend": backend}

	cleanupTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "labelscan",
			Subsystem:   "worker",
			Name:        "image_cleanup_total",
			Help:        "Report-deleted events handled, by cleanup outcome.",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
	cleanupDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "labelscan",
			Subsystem:   "worker",
			Name:        "image_delete_duration_seconds",
			Help:        "Storage delete latency for report images, by outcome.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
	cleanupInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "labelscan",
			Subsystem:   "worker",
			Name:        "image_cleanup_in_flight",
			Help:        "Image deletions currently running.",
			ConstLabels: labels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "labelscan",
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between report deletion and image cleanup start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: labels,
		},
	)

	registry.MustRegister(cleanupTotal, cleanupDuration, cleanupInFlight, queueLag)

	// Pre-create outcome series so dashboards see zeros before the first event.
	for _, outcome := range []domain.CleanupOutcome{domain.CleanupDeleted, domain.CleanupNoImage, domain.CleanupRejected, domain.CleanupFailed} {
		cleanupTotal.WithLabelValues(string(outcome))
	}

	return &WorkerMetrics{
		registry:        registry,
		cleanupTotal:    cleanupTotal,
		cleanupDuration: cleanupDuration,
		cleanupInFlight: cleanupInFlight,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCleanup runs one cleanup and records its outcome. Events without an
// image never touch storage and are counted without a latency sample.
func (m *WorkerMetrics) ObserveCleanup(event domain.ReportDeleted, cleanup func() (domain.CleanupOutcome, error)) (domain.CleanupOutcome, error) {
	if !event.DeletedAt.IsZero() {
		if lag := time.Since(event.DeletedAt); lag >= 0 {
			m.queueLag.Observe(lag.Seconds())
		}
	}

	m.cleanupInFlight.Inc()
	start := time.Now()
	outcome, err := cleanup()
	elapsed := time.Since(start)
	m.cleanupInFlight.Dec()

	if outcome == "" {
		outcome = domain.CleanupFailed
	}
	m.cleanupTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != domain.CleanupNoImage {
		m.cleanupDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
	}
	return outcome, err
}
