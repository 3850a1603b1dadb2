package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.9.0"
	"go.opentelemetry.io/otel/trace"
)

// entityParams are route params copied onto the server span so a trace can
// be found by the product, order or serial it touched.
var entityParams = map[string]attribute.Key{
	"productId": "ledger.product_id",
	"orderId":   "ledger.order_id",
	"serialId":  "ledger.serial_id",
}

// Trace opens a server span per request, continuing any propagated trace.
func Trace(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !traced(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(r.Method),
					semconv.HTTPURLKey.String(r.RequestURI),
				))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			// chi fills the route context while routing, so it is read afterwards
			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(semconv.HTTPRouteKey.String(route))
			span.SetAttributes(routeEntityAttrs(r)...)

			status := ww.Status()
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, "HTTP status "+strconv.Itoa(status))
			}
		})
	}
}

func routeEntityAttrs(r *http.Request) []attribute.KeyValue {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var attrs []attribute.KeyValue
	for i, name := range rctx.URLParams.Keys {
		if key, ok := entityParams[name]; ok && i < len(rctx.URLParams.Values) {
			attrs = append(attrs, key.String(rctx.URLParams.Values[i]))
		}
	}
	return attrs
}

func traced(path string) bool {
	switch {
	case path == MetricsPath, path == "/healthz":
		return false
	case path == "/docs", strings.HasPrefix(path, "/docs/"):
		return false
	default:
		return true
	}
}
