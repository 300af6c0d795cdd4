package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the rulekit tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("rulekit")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartFlowSpan starts a span for one flow call.
	// Returns the context with span and the span itself.
	StartFlowSpan(ctx context.Context, engine, runID string) (context.Context, trace.Span)

	// StartRuleSpan starts a span for one rule's evaluation.
	// The rule span should be a child of the flow span.
	StartRuleSpan(ctx context.Context, rule string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartFlowSpan starts a span for one flow call.
func (m *otelSpanManager) StartFlowSpan(ctx context.Context, engine, runID string) (context.Context, trace.Span) {
	return StartFlowSpan(ctx, engine, runID)
}

// StartRuleSpan starts a span for one rule's evaluation.
func (m *otelSpanManager) StartRuleSpan(ctx context.Context, rule string) (context.Context, trace.Span) {
	return StartRuleSpan(ctx, rule)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartFlowSpan starts a span for one flow call.
// Uses the global OTel tracer.
func StartFlowSpan(ctx context.Context, engine, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rulekit.flow",
		trace.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartRuleSpan starts a span for one rule's evaluation.
// Uses the global OTel tracer.
func StartRuleSpan(ctx context.Context, rule string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rulekit.rule."+rule,
		trace.WithAttributes(
			attribute.String("rule.name", rule),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
