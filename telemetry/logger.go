package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/otel/trace"
)

// TraceHandler wraps a slog.Handler and stamps each record with the
// trace_id and span_id of the span active on the record's context, so log
// lines can be correlated with traces after the fact.
type TraceHandler struct {
	inner slog.Handler
}

// NewTraceHandler wraps handler with trace correlation.
func NewTraceHandler(handler slog.Handler) *TraceHandler {
	return &TraceHandler{inner: handler}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, record)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger returns a trace-aware logger that writes to stdout with
// colorized output if stdout is a terminal.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(NewTraceHandler(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})))
}

// NewJSONLogger returns a trace-aware logger emitting one JSON object per
// record with timestamp, level, and event fields.
func NewJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewTraceHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameEventKey,
	})))
}

// renameEventKey makes the record's message appear under "event", which is
// the key operational tooling indexes on.
func renameEventKey(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.MessageKey {
		a.Key = "event"
	}
	return a
}

// EventLogger emits structured operational events. Every record carries a
// timestamp and level from slog, the event name, caller-supplied fields,
// and trace correlation when a span is in scope.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger wraps a logger. A nil logger discards events.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EventLogger{logger: logger}
}

// Event logs one structured event at the given level.
func (l *EventLogger) Event(ctx context.Context, level slog.Level, event string, attrs ...slog.Attr) {
	l.logger.LogAttrs(ctx, level, event, attrs...)
}

func (l *EventLogger) Debug(ctx context.Context, event string, attrs ...slog.Attr) {
	l.Event(ctx, slog.LevelDebug, event, attrs...)
}

func (l *EventLogger) Info(ctx context.Context, event string, attrs ...slog.Attr) {
	l.Event(ctx, slog.LevelInfo, event, attrs...)
}

func (l *EventLogger) Warn(ctx context.Context, event string, attrs ...slog.Attr) {
	l.Event(ctx, slog.LevelWarn, event, attrs...)
}

func (l *EventLogger) Error(ctx context.Context, event string, attrs ...slog.Attr) {
	l.Event(ctx, slog.LevelError, event, attrs...)
}
