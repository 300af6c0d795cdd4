package rulekit

import (
	"log/slog"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
)

// engineConfig holds configuration for an Engine and its Dispatcher.
type engineConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	strictComments bool
	maxConcurrency int
	failFast       bool
	functions      map[string]expr.Function
}

// defaultEngineConfig returns the default configuration.
func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		failFast: true,
	}
}

// compileOptions returns the expr options implied by the configuration.
func (c *engineConfig) compileOptions() []expr.Option {
	if c.strictComments {
		return []expr.Option{expr.WithStrictComments()}
	}
	return nil
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger for flow and rule events.
// Default: slog.Default(). A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}.
//
// Example:
//
//	engine := rulekit.New(rulekit.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager enables tracing through the given span manager.
// Each flow gets a span; each rule evaluation gets a child span.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *engineConfig) {
		if s != nil {
			c.spans = s
			c.tracingEnabled = true
		}
	}
}

// WithStrictComments compiles rules added through AddRule with a
// separate comment-stripping pass. See expr.WithStrictComments.
func WithStrictComments() Option {
	return func(c *engineConfig) {
		c.strictComments = true
	}
}

// WithMaxConcurrency limits how many rules a Dispatcher evaluates at
// once. Default: 0, one goroutine per rule with no limit.
func WithMaxConcurrency(n int) Option {
	return func(c *engineConfig) {
		if n >= 0 {
			c.maxConcurrency = n
		}
	}
}

// WithFailFast controls whether a Dispatcher cancels sibling tasks on the
// first hard error. Default: true. With false, every task runs to
// completion and the first error is still returned.
func WithFailFast(enabled bool) Option {
	return func(c *engineConfig) {
		c.failFast = enabled
	}
}

// WithFunctions registers functions when the engine is created.
// Later calls add to earlier ones.
func WithFunctions(fns map[string]expr.Function) Option {
	return func(c *engineConfig) {
		if c.functions == nil {
			c.functions = make(map[string]expr.Function, len(fns))
		}
		for name, fn := range fns {
			c.functions[name] = fn
		}
	}
}
