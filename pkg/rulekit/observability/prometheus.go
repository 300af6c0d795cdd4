package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder on a Prometheus registry.
//
// Metrics:
//   - <ns>_rule_evaluations_total{rule,result}: result is matched, skipped or error
//   - <ns>_rule_evaluation_duration_seconds{rule}
//   - <ns>_flows_total{engine,status}
//   - <ns>_flow_duration_seconds{engine}
//   - <ns>_reloads_total{source,status}
//   - <ns>_rules_loaded{source}
type PrometheusMetrics struct {
	ruleEvaluations *prometheus.CounterVec
	ruleDuration    *prometheus.HistogramVec
	flows           *prometheus.CounterVec
	flowDuration    *prometheus.HistogramVec
	reloads         *prometheus.CounterVec
	rulesLoaded     *prometheus.GaugeVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates and registers rulekit metrics with registry
// under the given namespace. It panics if the metrics are already
// registered, like prometheus.MustRegister.
func NewPrometheusMetrics(namespace string, registry prometheus.Registerer) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		ruleEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule predicate evaluations",
			},
			[]string{"rule", "result"},
		),

		ruleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of rule predicate evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"rule"},
		),

		flows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flows_total",
				Help:      "Total number of flow calls",
			},
			[]string{"engine", "status"},
		),

		flowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flow_duration_seconds",
				Help:      "Duration of flow calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to 2.6s
			},
			[]string{"engine"},
		),

		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of rule set reloads",
			},
			[]string{"source", "status"},
		),

		rulesLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules_loaded",
				Help:      "Number of rules loaded by the last successful reload",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		pm.ruleEvaluations,
		pm.ruleDuration,
		pm.flows,
		pm.flowDuration,
		pm.reloads,
		pm.rulesLoaded,
	)

	return pm
}

// RecordRuleEvaluation records a rule evaluation.
func (pm *PrometheusMetrics) RecordRuleEvaluation(_ context.Context, rule string, matched bool, duration time.Duration, err error) {
	result := "skipped"
	switch {
	case err != nil:
		result = "error"
	case matched:
		result = "matched"
	}
	pm.ruleEvaluations.WithLabelValues(rule, result).Inc()
	pm.ruleDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordFlow records a flow call.
func (pm *PrometheusMetrics) RecordFlow(_ context.Context, engine string, success bool, _ int, duration time.Duration) {
	pm.flows.WithLabelValues(engine, status(success)).Inc()
	pm.flowDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// RecordReload records a reload.
func (pm *PrometheusMetrics) RecordReload(_ context.Context, source string, rules int, err error) {
	pm.reloads.WithLabelValues(source, status(err == nil)).Inc()
	if err == nil {
		pm.rulesLoaded.WithLabelValues(source).Set(float64(rules))
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
