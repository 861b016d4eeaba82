/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package metrics provides Prometheus metrics for migration and seed executions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-dbmigrate/change"
)

// Label values of the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// PrometheusMetrics represents collector of metrics for executed changes.
type PrometheusMetrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string
	// DurationBuckets is a list of buckets for the execution duration histogram.
	DurationBuckets []float64
	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// DefaultDurationBuckets is used when PrometheusMetricsOpts.DurationBuckets is empty.
var DefaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// NewPrometheusMetrics creates a new metrics collector with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{Namespace: "dbmigrate"})
}

// NewPrometheusMetricsWithOpts is a more configurable version of creating PrometheusMetrics.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = DefaultDurationBuckets
	}
	return &PrometheusMetrics{
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "change_executions_total",
			Help:        "Number of executed migrations and seeds.",
			ConstLabels: opts.ConstLabels,
		}, []string{"kind", "direction", "status"}),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "change_execution_duration_seconds",
			Help:        "A histogram of migration and seed execution durations.",
			Buckets:     buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"kind", "direction"}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	pm.MustRegisterIn(prometheus.DefaultRegisterer)
}

// MustRegisterIn registers the metrics in the given registerer and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegisterIn(reg prometheus.Registerer) {
	reg.MustRegister(pm.ExecutionsTotal, pm.ExecutionDuration)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	pm.UnregisterFrom(prometheus.DefaultRegisterer)
}

// UnregisterFrom cancels registration of the metrics made with MustRegisterIn.
func (pm *PrometheusMetrics) UnregisterFrom(reg prometheus.Registerer) {
	reg.Unregister(pm.ExecutionsTotal)
	reg.Unregister(pm.ExecutionDuration)
}

// ObserveExecution records an execution of a change body.
func (pm *PrometheusMetrics) ObserveExecution(kind change.Kind, direction change.Direction, duration time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	pm.ExecutionsTotal.WithLabelValues(string(kind), string(direction), status).Inc()
	pm.ExecutionDuration.WithLabelValues(string(kind), string(direction)).Observe(duration.Seconds())
}
