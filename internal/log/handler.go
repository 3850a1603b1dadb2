package log

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tuanvumaihuynh/stock-ledger/pkg/correlationid"
)

// contextAttrs returns the attributes a record should carry for ctx.
type contextAttrs func(ctx context.Context) []slog.Attr

func correlationAttrs(ctx context.Context) []slog.Attr {
	if id, ok := correlationid.FromContext(ctx); ok {
		return []slog.Attr{slog.String("correlation_id", id)}
	}
	return nil
}

func traceAttrs(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

var _ slog.Handler = contextHandler{}

// contextHandler adds request-scoped attributes to every record.
type contextHandler struct {
	next    slog.Handler
	sources []contextAttrs
}

func newContextHandler(next slog.Handler) contextHandler {
	return contextHandler{next: next, sources: []contextAttrs{correlationAttrs, traceAttrs}}
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, source := range h.sources {
		r.AddAttrs(source(ctx)...)
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs), sources: h.sources}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name), sources: h.sources}
}
