package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records rulekit metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusMetrics for a
// Prometheus registry, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRuleEvaluation records one rule's predicate evaluation.
	RecordRuleEvaluation(ctx context.Context, rule string, matched bool, duration time.Duration, err error)

	// RecordFlow records a flow call. engine is "sequential", "concurrent"
	// or "script".
	RecordFlow(ctx context.Context, engine string, success bool, matched int, duration time.Duration)

	// RecordReload records a rule set reload from source.
	RecordReload(ctx context.Context, source string, rules int, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	ruleEvaluations metric.Int64Counter
	ruleMatches     metric.Int64Counter
	ruleLatency     metric.Float64Histogram
	ruleErrors      metric.Int64Counter
	flows           metric.Int64Counter
	flowLatency     metric.Float64Histogram
	reloads         metric.Int64Counter
	ruleCount       metric.Int64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("rulekit")

	ruleEvaluations, err := meter.Int64Counter("rulekit.rule.evaluations",
		metric.WithDescription("Number of rule predicate evaluations"),
	)
	if err != nil {
		return nil, err
	}

	ruleMatches, err := meter.Int64Counter("rulekit.rule.matches",
		metric.WithDescription("Number of rule evaluations that matched"),
	)
	if err != nil {
		return nil, err
	}

	ruleLatency, err := meter.Float64Histogram("rulekit.rule.latency_ms",
		metric.WithDescription("Rule evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	ruleErrors, err := meter.Int64Counter("rulekit.rule.errors",
		metric.WithDescription("Number of rule evaluation errors"),
	)
	if err != nil {
		return nil, err
	}

	flows, err := meter.Int64Counter("rulekit.flow.calls",
		metric.WithDescription("Number of flow calls"),
	)
	if err != nil {
		return nil, err
	}

	flowLatency, err := meter.Float64Histogram("rulekit.flow.latency_ms",
		metric.WithDescription("Flow latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reloads, err := meter.Int64Counter("rulekit.reload.count",
		metric.WithDescription("Number of rule set reloads"),
	)
	if err != nil {
		return nil, err
	}

	ruleCount, err := meter.Int64Gauge("rulekit.reload.rules",
		metric.WithDescription("Number of rules loaded by the last successful reload"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		ruleEvaluations: ruleEvaluations,
		ruleMatches:     ruleMatches,
		ruleLatency:     ruleLatency,
		ruleErrors:      ruleErrors,
		flows:           flows,
		flowLatency:     flowLatency,
		reloads:         reloads,
		ruleCount:       ruleCount,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordRuleEvaluation records a rule evaluation.
func (m *otelMetrics) RecordRuleEvaluation(ctx context.Context, rule string, matched bool, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("rule", rule))

	m.ruleEvaluations.Add(ctx, 1, attrs)
	m.ruleLatency.Record(ctx, durationMs(duration), attrs)

	if err != nil {
		m.ruleErrors.Add(ctx, 1, attrs)
		return
	}
	if matched {
		m.ruleMatches.Add(ctx, 1, attrs)
	}
}

// RecordFlow records a flow call.
func (m *otelMetrics) RecordFlow(ctx context.Context, engine string, success bool, matched int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.Bool("success", success),
	)
	m.flows.Add(ctx, 1, attrs)
	m.flowLatency.Record(ctx, durationMs(duration), attrs)
}

// RecordReload records a reload.
func (m *otelMetrics) RecordReload(ctx context.Context, source string, rules int, err error) {
	m.reloads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("success", err == nil),
	))
	if err == nil {
		m.ruleCount.Record(ctx, int64(rules), metric.WithAttributes(attribute.String("source", source)))
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
