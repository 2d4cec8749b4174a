// Package metrics holds the Prometheus collectors of a report run and pushes them to a pushgateway.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics represents the collection of all report run metrics.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	ReportsGenerated    *prometheus.CounterVec
	RecordsSkipped      *prometheus.CounterVec
	KeyAnomalies        prometheus.Counter
	GraphBatchFailures  prometheus.Counter
	IntegrationFailures *prometheus.CounterVec
	RectifyCalls        *prometheus.CounterVec
	RetrainCalls        *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	LastSuccess         *prometheus.GaugeVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ReportsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackreport_reports_total",
			Help: "Total number of report runs by frequency and outcome",
		},
		[]string{"frequency", "status"},
	)

	m.RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackreport_records_skipped_total",
			Help: "Stack records skipped during aggregation",
		},
		[]string{"reason"},
	)

	m.KeyAnomalies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stackreport_key_anomalies_total",
			Help: "Non-scalar keys dropped by the frequency counter",
		},
	)

	m.GraphBatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stackreport_graph_batch_failures_total",
			Help: "Graph query batches that returned no data",
		},
	)

	m.IntegrationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackreport_integration_failures_total",
			Help: "Failed calls to external services",
		},
		[]string{"source"},
	)

	m.RectifyCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackreport_rectify_calls_total",
			Help: "Latest-version rectify calls by ecosystem and result",
		},
		[]string{"ecosystem", "result"},
	)

	m.RetrainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackreport_retrain_calls_total",
			Help: "Model retraining triggers by ecosystem and result",
		},
		[]string{"ecosystem", "result"},
	)

	m.RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stackreport_run_duration_seconds",
			Help:    "Duration of report runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"frequency"},
	)

	m.LastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stackreport_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		},
		[]string{"frequency"},
	)

	m.registry.MustRegister(
		m.ReportsGenerated,
		m.RecordsSkipped,
		m.KeyAnomalies,
		m.GraphBatchFailures,
		m.IntegrationFailures,
		m.RectifyCalls,
		m.RetrainCalls,
		m.RunDuration,
		m.LastSuccess,
	)

	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SkipRecord counts a stack record dropped for reason.
func (m *Metrics) SkipRecord(reason string) {
	if m == nil {
		return
	}
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// KeyAnomaly counts a non-scalar key.
func (m *Metrics) KeyAnomaly() {
	if m == nil {
		return
	}
	m.KeyAnomalies.Inc()
}

// GraphBatchFailed counts a graph batch that degraded to no data.
func (m *Metrics) GraphBatchFailed() {
	if m == nil {
		return
	}
	m.GraphBatchFailures.Inc()
}

// IntegrationFailed counts a failed external call.
func (m *Metrics) IntegrationFailed(source string) {
	if m == nil {
		return
	}
	m.IntegrationFailures.WithLabelValues(source).Inc()
}

// Rectify counts a rectify call.
func (m *Metrics) Rectify(ecosystem string, err error) {
	if m == nil {
		return
	}
	m.RectifyCalls.WithLabelValues(ecosystem, result(err)).Inc()
}

// Retrain counts a retraining trigger.
func (m *Metrics) Retrain(ecosystem string, err error) {
	if m == nil {
		return
	}
	m.RetrainCalls.WithLabelValues(ecosystem, result(err)).Inc()
}

// ObserveRun records the outcome and duration of a run.
func (m *Metrics) ObserveRun(frequency, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportsGenerated.WithLabelValues(frequency, status).Inc()
	m.RunDuration.WithLabelValues(frequency).Observe(d.Seconds())
	if status != "failed" {
		m.LastSuccess.WithLabelValues(frequency).SetToCurrentTime()
	}
}

// Push sends all collectors to a pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
