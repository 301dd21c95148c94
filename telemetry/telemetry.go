// Package telemetry provides core.TelemetryHook implementations backed by
// zap, Prometheus and OpenTelemetry.
//
//	metrics, err := telemetry.NewPrometheusHook(prometheus.DefaultRegisterer, "myapp")
//	if err != nil {
//	    return err
//	}
//	client, err := core.NewClient(cfg, core.WithTelemetry(telemetry.Multi(
//	    telemetry.NewZapHook(logger),
//	    metrics,
//	    telemetry.NewOTelHook(otel.GetTracerProvider()),
//	)))
//
// Hooks only see operational metadata. Payloads, records and the access key
// never reach them.
package telemetry

import "github.com/singlebase/singlebase-go/core"

// Outcome labels used by the hooks.
const (
	OutcomeOK             = "ok"
	OutcomeBackendError   = "backend_error"
	OutcomeTransportError = "transport_error"
)

// Outcome classifies a finished request.
func Outcome(e core.RequestEndEvent) string {
	switch {
	case e.OK:
		return OutcomeOK
	case e.ErrorKind == core.KindTransport:
		return OutcomeTransportError
	default:
		return OutcomeBackendError
	}
}

type multiHook []core.TelemetryHook

// Multi fans events out to every hook in order. Nil hooks are skipped.
func Multi(hooks ...core.TelemetryHook) core.TelemetryHook {
	out := make(multiHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (m multiHook) OnRequestStart(e core.RequestStartEvent) {
	for _, h := range m {
		h.OnRequestStart(e)
	}
}

func (m multiHook) OnRequestEnd(e core.RequestEndEvent) {
	for _, h := range m {
		h.OnRequestEnd(e)
	}
}
