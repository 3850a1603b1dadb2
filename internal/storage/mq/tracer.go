package mq

import (
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
)

var (
	tracer = otel.Tracer("internal/storage/mq")
	// kTracer injects trace context into produced records and opens a
	// process span per consumed record.
	kTracer = kotel.NewTracer()
)
