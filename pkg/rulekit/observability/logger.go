// Package observability provides production-grade observability features
// for rulekit: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds flow context to a logger.
// Returns a new logger with run_id and engine fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "concurrent")
//	enriched.Info("doing work") // includes run_id, engine
func EnrichLogger(logger *slog.Logger, runID, engine string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("engine", engine),
	)
}

// LogFlowStart logs the start of a flow call.
func LogFlowStart(logger *slog.Logger, runID string, rules int) {
	if logger == nil {
		return
	}
	logger.Debug("flow starting",
		slog.String("run_id", runID),
		slog.Int("rules", rules),
	)
}

// LogFlowComplete logs successful flow completion.
func LogFlowComplete(logger *slog.Logger, runID string, durationMs float64, matched int) {
	if logger == nil {
		return
	}
	logger.Info("flow completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("rules_matched", matched),
	)
}

// LogFlowError logs flow failure. rule is the rule being evaluated when
// the flow failed, or empty.
func LogFlowError(logger *slog.Logger, runID string, err error, durationMs float64, rule string) {
	if logger == nil {
		return
	}
	logger.Error("flow failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("rule", rule),
	)
}

// LogRuleMatched logs a rule whose predicates all held.
func LogRuleMatched(logger *slog.Logger, rule string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("rule matched",
		slog.String("rule", rule),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRuleSkipped logs a rule that did not match.
func LogRuleSkipped(logger *slog.Logger, rule string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("rule skipped",
		slog.String("rule", rule),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRuleError logs a rule evaluation failure. phase is "when" or "then".
func LogRuleError(logger *slog.Logger, rule, phase string, err error) {
	if logger == nil {
		return
	}
	logger.Error("rule failed",
		slog.String("rule", rule),
		slog.String("phase", phase),
		slog.String("error", err.Error()),
	)
}

// LogReload logs a rule set reload. A failed reload is logged at warn
// level; the engine keeps its previous rules.
func LogReload(logger *slog.Logger, source string, rules int, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("rule reload failed",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("rules reloaded",
		slog.String("source", source),
		slog.Int("rules", rules),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
