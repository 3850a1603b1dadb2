// Package outbox carries request-scoped metadata across the outbox table so
// a relayed event keeps the trace and correlation id of the command that
// recorded it.
package outbox

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tuanvumaihuynh/stock-ledger/pkg/correlationid"
)

// EventTypeHeader names the domain event a message carries.
const EventTypeHeader = "event-type"

// NewHeaders returns the headers stored next to an event payload.
func NewHeaders(ctx context.Context, eventType string) map[string]string {
	headers := map[string]string{EventTypeHeader: eventType}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
	if id, ok := correlationid.FromContext(ctx); ok {
		headers[correlationid.Header] = id
	}
	return headers
}

// ContextFromHeaders restores the trace and correlation id saved by NewHeaders.
func ContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
	if id := headers[correlationid.Header]; id != "" {
		ctx = correlationid.NewContext(ctx, id)
	}
	return ctx
}

// EventType reports the event type header, if any.
func EventType(headers map[string]string) (string, bool) {
	t, ok := headers[EventTypeHeader]
	return t, ok
}
