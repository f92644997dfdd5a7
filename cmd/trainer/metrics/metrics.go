// Package metrics provides Prometheus metrics instrumentation for the trainer.
//
// It exposes operational metrics about the training pipeline, including the
// duration of each stage (load, transform, train, evaluate), the size of the
// joined dataset and its partitions, the latest evaluation scores, and error
// tracking. All metrics are exposed via the /metrics HTTP endpoint for
// Prometheus scraping.
//
// Metrics exposed:
//   - millwright_load_seconds: Histogram of source load and join duration
//   - millwright_transform_seconds: Histogram of feature pipeline duration
//   - millwright_train_seconds: Histogram of grid-search training duration
//   - millwright_evaluate_seconds: Histogram of held-out evaluation duration
//   - millwright_joined_rows: Gauge of joined table row count
//   - millwright_train_rows / millwright_test_rows: Gauges of partition sizes
//   - millwright_weighted_precision / millwright_weighted_recall /
//     millwright_accuracy: Gauges of the latest evaluation
//   - millwright_report_age_seconds: Gauge of the latest report's age
//   - millwright_errors_total: Counter of errors by component and reason
//
// All metrics include the dataset label.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trainer.
type Metrics struct {
	LoadSeconds      prometheus.Histogram
	TransformSeconds prometheus.Histogram
	TrainSeconds     prometheus.Histogram
	EvaluateSeconds  prometheus.Histogram

	JoinedRows prometheus.Gauge
	TrainRows  prometheus.Gauge
	TestRows   prometheus.Gauge

	WeightedPrecision prometheus.Gauge
	WeightedRecall    prometheus.Gauge
	Accuracy          prometheus.Gauge
	ReportAgeSeconds  prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(dataset string) *Metrics {
	labels := prometheus.Labels{"dataset": dataset}

	return &Metrics{
		LoadSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "millwright_load_seconds",
			Help:        "Time spent loading and joining the input tables",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		TransformSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "millwright_transform_seconds",
			Help:        "Time spent fitting and applying the feature pipeline",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		TrainSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "millwright_train_seconds",
			Help:        "Time spent on grid-search training",
			ConstLabels: labels,
			Buckets:     []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		EvaluateSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "millwright_evaluate_seconds",
			Help:        "Time spent evaluating the refit model on held-out rows",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		JoinedRows: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_joined_rows",
			Help:        "Row count of the joined telemetry and feature tables",
			ConstLabels: labels,
		}),

		TrainRows: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_train_rows",
			Help:        "Row count of the training partition",
			ConstLabels: labels,
		}),

		TestRows: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_test_rows",
			Help:        "Row count of the test partition",
			ConstLabels: labels,
		}),

		WeightedPrecision: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_weighted_precision",
			Help:        "Support-weighted precision of the latest evaluation",
			ConstLabels: labels,
		}),

		WeightedRecall: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_weighted_recall",
			Help:        "Support-weighted recall of the latest evaluation",
			ConstLabels: labels,
		}),

		Accuracy: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_accuracy",
			Help:        "Accuracy of the latest evaluation",
			ConstLabels: labels,
		}),

		ReportAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "millwright_report_age_seconds",
			Help:        "Age of the latest training report in seconds",
			ConstLabels: labels,
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "millwright_errors_total",
			Help:        "Total number of errors by component and reason",
			ConstLabels: labels,
		}, []string{"component", "reason"}),
	}
}

// RecordLoad records the time spent loading and joining input tables.
func (m *Metrics) RecordLoad(seconds float64) {
	m.LoadSeconds.Observe(seconds)
}

// RecordTransform records the time spent in the feature pipeline.
func (m *Metrics) RecordTransform(seconds float64) {
	m.TransformSeconds.Observe(seconds)
}

// RecordTrain records the time spent training.
func (m *Metrics) RecordTrain(seconds float64) {
	m.TrainSeconds.Observe(seconds)
}

// RecordEvaluate records the time spent evaluating.
func (m *Metrics) RecordEvaluate(seconds float64) {
	m.EvaluateSeconds.Observe(seconds)
}

// SetRows sets the dataset size gauges.
func (m *Metrics) SetRows(joined, train, test int) {
	m.JoinedRows.Set(float64(joined))
	m.TrainRows.Set(float64(train))
	m.TestRows.Set(float64(test))
}

// SetEvaluation sets the evaluation gauges.
func (m *Metrics) SetEvaluation(precision, recall, accuracy float64) {
	m.WeightedPrecision.Set(precision)
	m.WeightedRecall.Set(recall)
	m.Accuracy.Set(accuracy)
}

// SetReportAge sets the latest report age.
func (m *Metrics) SetReportAge(seconds float64) {
	m.ReportAgeSeconds.Set(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
