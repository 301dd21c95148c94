package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/singlebase/singlebase-go/core"
)

const instrumentationName = "github.com/singlebase/singlebase-go"

// OTelHook emits one client span per request.
type OTelHook struct {
	tracer trace.Tracer
	spans  sync.Map // request ID -> trace.Span
}

// NewOTelHook creates a hook using tp. Spans are named "singlebase <service>.<action>".
//
// Hook events carry no context, so every span is a root span: it is not
// parented to the caller's trace and no trace headers are sent on the
// request. Correlate with the caller through the singlebase.request_id
// attribute.
func NewOTelHook(tp trace.TracerProvider) *OTelHook {
	return &OTelHook{tracer: tp.Tracer(instrumentationName)}
}

// OnRequestStart opens the span.
func (h *OTelHook) OnRequestStart(e core.RequestStartEvent) {
	attrs := []attribute.KeyValue{
		attribute.String("singlebase.request_id", e.RequestID),
		attribute.String("singlebase.service", string(e.Service)),
		attribute.String("singlebase.action", e.Action),
		attribute.Bool("singlebase.async", e.Async),
	}
	if e.Collection != "" {
		attrs = append(attrs, attribute.String("singlebase.collection", e.Collection))
	}

	_, span := h.tracer.Start(context.Background(), spanName(e.Service, e.Action),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(e.Start),
		trace.WithAttributes(attrs...),
	)
	h.spans.Store(e.RequestID, span)
}

// OnRequestEnd records the outcome and closes the span.
func (h *OTelHook) OnRequestEnd(e core.RequestEndEvent) {
	v, ok := h.spans.LoadAndDelete(e.RequestID)
	if !ok {
		return
	}
	span := v.(trace.Span)

	span.SetAttributes(attribute.String("singlebase.outcome", Outcome(e)))
	if e.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", e.StatusCode))
	}
	if e.OK {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(
			attribute.String("singlebase.error_kind", string(e.ErrorKind)),
			attribute.String("singlebase.error_code", e.ErrorCode),
		)
		span.SetStatus(codes.Error, e.ErrorCode)
	}
	span.End(trace.WithTimestamp(e.End))
}

func spanName(svc core.Service, action string) string {
	if svc == "" {
		return "singlebase " + action
	}
	return "singlebase " + string(svc) + "." + action
}

var _ core.TelemetryHook = (*OTelHook)(nil)
