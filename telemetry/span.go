package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/cowork-ai/swarm"

// Tracer returns the engine's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// StartSpan opens a span as a child of whatever span is active on ctx. The
// trace id is inherited from the parent when one exists, otherwise a fresh
// trace starts. Callers must End the returned span on every exit path.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, operation, trace.WithAttributes(attrs...))
}

// WithSpan runs fn inside a span named operation. An error return marks the
// span failed and is passed through unchanged; a panic marks the span
// failed and re-panics. The span is ended on every path, and the previous
// active span is restored simply by the context going out of scope.
func WithSpan(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) (err error) {
	ctx, span := StartSpan(ctx, operation, attrs...)
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprint(r))
			span.SetAttributes(attribute.String("panic", fmt.Sprint(r)))
			span.End()
			panic(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()
	err = fn(ctx)
	return err
}

// SpanIDs extracts the active trace and span ids from ctx. Both are empty
// when no recording span is in scope.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
