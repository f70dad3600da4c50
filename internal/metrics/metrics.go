// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "truthlens"

// Metrics groups the classification business metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	predictions      *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	inferenceErrors  *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	rejections       *prometheus.CounterVec
}

// New creates and registers the business metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Completed classifications by label, confidence tier and source.",
		}, []string{"label", "tier", "source"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent classifying one item, including extraction.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		inferenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_errors_total",
			Help:      "Classifier backend failures answered with the neutral fallback.",
		}, []string{"backend"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed calls to OCR and scraping targets.",
		}, []string{"service"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Requests rejected before classification, by error kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.predictions, m.pipelineDuration, m.inferenceErrors, m.upstreamErrors, m.rejections)
	return m
}

func (m *Metrics) ObservePrediction(label, tier, source string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(label, tier, source).Inc()
}

func (m *Metrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) InferenceError(backend string) {
	if m == nil {
		return
	}
	m.inferenceErrors.WithLabelValues(backend).Inc()
}

func (m *Metrics) UpstreamError(service string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(service).Inc()
}

func (m *Metrics) Rejection(kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(kind).Inc()
}

// DatabaseMetrics exports sql.DB pool statistics
type DatabaseMetrics struct {
	openConnections *prometheus.GaugeVec
	inUse           *prometheus.GaugeVec
	idle            *prometheus.GaugeVec
	waitCount       *prometheus.GaugeVec
	service         string
}

// NewDatabaseMetrics creates and registers pool gauges for service
func NewDatabaseMetrics(reg prometheus.Registerer, service string) *DatabaseMetrics {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, []string{"service"})
	}

	m := &DatabaseMetrics{
		openConnections: gauge("open_connections", "Established connections, in use and idle."),
		inUse:           gauge("in_use_connections", "Connections currently in use."),
		idle:            gauge("idle_connections", "Idle connections."),
		waitCount:       gauge("wait_count", "Total connections waited for."),
		service:         service,
	}
	reg.MustRegister(m.openConnections, m.inUse, m.idle, m.waitCount)
	return m
}

// UpdateDBStats copies the current pool statistics into the gauges
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	stats := db.Stats()
	m.openConnections.WithLabelValues(m.service).Set(float64(stats.OpenConnections))
	m.inUse.WithLabelValues(m.service).Set(float64(stats.InUse))
	m.idle.WithLabelValues(m.service).Set(float64(stats.Idle))
	m.waitCount.WithLabelValues(m.service).Set(float64(stats.WaitCount))
}
