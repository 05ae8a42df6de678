// Package tracing wires the Iteration Controller's FSM states onto
// observability.Tracer spans: one span per state (INIT, CLEANUP, PLAN,
// BUILD, PUSH, AWAIT_CI, FIX, ABANDON, MERGE, REFLECT), so a cycle's
// state transitions show up as a single trace in whatever OTLP backend
// is configured.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexusforge/agentloop/internal/observability"
)

// cycleTracer is the process-wide tracer, set once by Init. A nil value
// (before Init, or when tracing is disabled) makes StartState a no-op
// via observability.Tracer's own no-op fallback.
var cycleTracer *observability.Tracer

// Init configures the package-level tracer. endpoint empty disables
// export (observability.NewTracer's own no-op behavior); serviceVersion
// and environment are attached as resource attributes to every span.
func Init(endpoint, serviceVersion, environment string) (shutdown func(context.Context) error) {
	t, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "agentloop",
		ServiceVersion: serviceVersion,
		Environment:    environment,
		Endpoint:       endpoint,
	})
	cycleTracer = t
	return shutdown
}

// StartState opens a span named after an Iteration Controller state,
// tagged with the cycle id so every state of one cycle shares a trace.
func StartState(ctx context.Context, cycleID, state string) (context.Context, trace.Span) {
	if cycleTracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return cycleTracer.Start(ctx, "controller."+state, observability.SpanOptions{
		Kind: trace.SpanKindInternal,
		Attributes: []attribute.KeyValue{
			attribute.String("cycle.id", cycleID),
			attribute.String("controller.state", state),
		},
	})
}

// RecordError records err on span if non-nil; a convenience so
// controller state functions don't need to reach into
// observability.Tracer directly.
func RecordError(span trace.Span, err error) {
	if cycleTracer == nil || err == nil {
		return
	}
	cycleTracer.RecordError(span, err)
}
