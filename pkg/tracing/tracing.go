// Package tracing creates an OpenTelemetry span for every
// Socket Mode request, from its dispatch to its acknowledgement.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tzrikka/socketmode/pkg/request"
	"github.com/tzrikka/socketmode/pkg/socketmode"
)

const (
	DefaultTracerName = "github.com/tzrikka/socketmode"
)

type spanKey struct{}

// Listener returns a request listener that starts a span when a request
// begins, and ends it when the request ends. Handlers can access the span
// with [trace.SpanFromContext], since it's attached to the request.
// If tracer is nil, it uses the global tracer provider.
func Listener(tracer trace.Tracer) request.Listener {
	if tracer == nil {
		tracer = otel.Tracer(DefaultTracerName)
	}

	return request.ListenerFuncs{
		Begin: func(rc *request.Context) {
			ctx, span := tracer.Start(rc.Context, "socketmode.request",
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.Int("socketmode.socket_id", rc.SocketID),
					attribute.String("socketmode.envelope_id", rc.EnvelopeID),
					attribute.String("socketmode.request_id", rc.RequestID),
				),
			)
			rc.WithContext(ctx)
			rc.Set(spanKey{}, span)
		},
		End: func(rc *request.Context) {
			v, ok := rc.Get(spanKey{})
			if !ok {
				return
			}
			span := v.(trace.Span)
			if kind := socketmode.PayloadKind(rc); kind != "" {
				span.SetName("socketmode." + kind)
				span.SetAttributes(attribute.String("socketmode.payload_type", kind))
			}
			span.End()
		},
	}
}
