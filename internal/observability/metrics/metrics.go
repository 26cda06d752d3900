// Package metrics provides Prometheus metrics for classification and feedback.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all Prometheus metrics of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PredictionTotal    *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	LowConfidenceTotal prometheus.Counter
	FeedbackTotal      *prometheus.CounterVec
	FeedbackErrors     *prometheus.CounterVec
	ModelLoadedGauge   prometheus.Gauge
}

// New creates the metrics and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		PredictionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anidex_predictions_total",
				Help: "Total number of predictions partitioned by predicted label and status.",
			},
			[]string{"label", "status"},
		),
		PredictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anidex_prediction_duration_seconds",
				Help:    "Time taken to preprocess an image and run one forward pass.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
			[]string{"backend"},
		),
		LowConfidenceTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "anidex_low_confidence_predictions_total",
				Help: "Predictions whose confidence was under the dashboard threshold.",
			},
		),
		FeedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anidex_feedback_total",
				Help: "Feedback records partitioned by outcome and asserted label.",
			},
			[]string{"outcome", "label"},
		),
		FeedbackErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anidex_feedback_errors_total",
				Help: "Feedback persistence or sink failures.",
			},
			[]string{"stage"},
		),
		ModelLoadedGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "anidex_model_loaded",
				Help: "Whether the classifier model is loaded (1) or not (0).",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.PredictionTotal, m.PredictionDuration, m.LowConfidenceTotal,
		m.FeedbackTotal, m.FeedbackErrors, m.ModelLoadedGauge,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// RecordPrediction records one prediction attempt.
func (m *Metrics) RecordPrediction(backend, label string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PredictionTotal.WithLabelValues("", "error").Inc()
		return
	}
	m.PredictionTotal.WithLabelValues(label, "success").Inc()
	m.PredictionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordLowConfidence counts a prediction under the warning threshold.
func (m *Metrics) RecordLowConfidence() {
	if m == nil {
		return
	}
	m.LowConfidenceTotal.Inc()
}

// RecordFeedback counts one persisted feedback record.
func (m *Metrics) RecordFeedback(outcome, label string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(outcome, label).Inc()
}

// RecordFeedbackError counts a failure in the given stage (dataset, log, or a sink name).
func (m *Metrics) RecordFeedbackError(stage string) {
	if m == nil {
		return
	}
	m.FeedbackErrors.WithLabelValues(stage).Inc()
}

// SetModelLoaded sets the model gauge.
func (m *Metrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.ModelLoadedGauge.Set(1)
	} else {
		m.ModelLoadedGauge.Set(0)
	}
}
