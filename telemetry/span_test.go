package telemetry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder swaps in a recording tracer provider for the duration of
// the test.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan(t *testing.T) {
	t.Run("root span starts a new trace", func(t *testing.T) {
		recorder := installRecorder(t)

		ctx, span := StartSpan(context.Background(), "root")
		traceID, spanID := SpanIDs(ctx)
		span.End()

		require.NotEmpty(t, traceID)
		require.NotEmpty(t, spanID)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		require.Equal(t, "root", spans[0].Name())
	})

	t.Run("child inherits the parent trace", func(t *testing.T) {
		recorder := installRecorder(t)

		ctx, parent := StartSpan(context.Background(), "parent")
		parentTrace, parentSpan := SpanIDs(ctx)

		childCtx, child := StartSpan(ctx, "child")
		childTrace, childSpan := SpanIDs(childCtx)
		child.End()
		parent.End()

		require.Equal(t, parentTrace, childTrace)
		require.NotEqual(t, parentSpan, childSpan)

		spans := recorder.Ended()
		require.Len(t, spans, 2)
		require.Equal(t, "child", spans[0].Name())
		require.Equal(t, parentSpan, spans[0].Parent().SpanID().String())
	})

	t.Run("siblings share a trace but not a parent span", func(t *testing.T) {
		installRecorder(t)

		ctx, parent := StartSpan(context.Background(), "parent")
		defer parent.End()
		parentTrace, _ := SpanIDs(ctx)

		aCtx, a := StartSpan(ctx, "a")
		aTrace, aSpan := SpanIDs(aCtx)
		a.End()

		bCtx, b := StartSpan(ctx, "b")
		bTrace, bSpan := SpanIDs(bCtx)
		b.End()

		require.Equal(t, parentTrace, aTrace)
		require.Equal(t, parentTrace, bTrace)
		require.NotEqual(t, aSpan, bSpan)
	})

	t.Run("attributes are recorded", func(t *testing.T) {
		recorder := installRecorder(t)

		_, span := StartSpan(context.Background(), "op", attribute.String("agent", "searcher"))
		span.End()

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		require.Contains(t, spans[0].Attributes(), attribute.String("agent", "searcher"))
	})
}

func TestWithSpan(t *testing.T) {
	t.Run("success sets ok status", func(t *testing.T) {
		recorder := installRecorder(t)

		err := WithSpan(context.Background(), "op", func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		require.Equal(t, codes.Ok, spans[0].Status().Code)
	})

	t.Run("error marks the span failed and passes through", func(t *testing.T) {
		recorder := installRecorder(t)

		wantErr := fmt.Errorf("agent unavailable")
		err := WithSpan(context.Background(), "op", func(ctx context.Context) error {
			return wantErr
		})
		require.ErrorIs(t, err, wantErr)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		require.Equal(t, codes.Error, spans[0].Status().Code)
		require.Equal(t, "agent unavailable", spans[0].Status().Description)
		require.NotEmpty(t, spans[0].Events())
	})

	t.Run("panic ends the span and re-raises", func(t *testing.T) {
		recorder := installRecorder(t)

		require.PanicsWithValue(t, "kaboom", func() {
			_ = WithSpan(context.Background(), "op", func(ctx context.Context) error {
				panic("kaboom")
			})
		})

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		require.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("fn sees the span on its context", func(t *testing.T) {
		installRecorder(t)

		var traceID string
		err := WithSpan(context.Background(), "op", func(ctx context.Context) error {
			traceID, _ = SpanIDs(ctx)
			return nil
		})
		require.NoError(t, err)
		require.NotEmpty(t, traceID)
	})
}

func TestSpanIDsWithoutSpan(t *testing.T) {
	traceID, spanID := SpanIDs(context.Background())
	require.Empty(t, traceID)
	require.Empty(t, spanID)
}
