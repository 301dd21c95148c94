package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/singlebase/singlebase-go/core"
)

// PrometheusHook records request counts, latencies and in-flight requests.
//
// Metrics (with the configured namespace prefix):
//   - singlebase_requests_total{service,action,outcome}
//   - singlebase_request_duration_seconds{service,action}
//   - singlebase_requests_in_flight{service}
//
// The action label is the caller's action string as sent. Actions are defined
// by the backend, so an application that builds action names from input can
// grow the label set without bound; WithActions caps it.
type PrometheusHook struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec

	actions map[string]struct{} // nil: record every action as-is
}

// OtherAction is the action label used for actions outside WithActions.
const OtherAction = "other"

// PrometheusOption configures a PrometheusHook.
type PrometheusOption func(*PrometheusHook)

// WithActions limits the action label to the given names. Any other action
// is recorded as OtherAction.
func WithActions(actions ...string) PrometheusOption {
	return func(h *PrometheusHook) {
		h.actions = make(map[string]struct{}, len(actions))
		for _, a := range actions {
			h.actions[a] = struct{}{}
		}
	}
}

// NewPrometheusHook creates the collectors and registers them with reg.
// Collectors already registered under the same names are reused, so two
// clients can share one registry.
func NewPrometheusHook(reg prometheus.Registerer, namespace string, opts ...PrometheusOption) (*PrometheusHook, error) {
	h := &PrometheusHook{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "singlebase",
			Name:      "requests_total",
			Help:      "Singlebase requests by service, action and outcome (ok, backend_error, transport_error).",
		}, []string{"service", "action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "singlebase",
			Name:      "request_duration_seconds",
			Help:      "Singlebase request latency in seconds, including failed requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service", "action"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "singlebase",
			Name:      "requests_in_flight",
			Help:      "Singlebase requests currently awaiting a response.",
		}, []string{"service"}),
	}

	for _, opt := range opts {
		opt(h)
	}

	if reg == nil {
		return h, nil
	}

	var err error
	if h.requests, err = register(reg, h.requests); err != nil {
		return nil, err
	}
	if h.duration, err = register(reg, h.duration); err != nil {
		return nil, err
	}
	if h.inFlight, err = register(reg, h.inFlight); err != nil {
		return nil, err
	}
	return h, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// OnRequestStart increments the in-flight gauge.
func (h *PrometheusHook) OnRequestStart(e core.RequestStartEvent) {
	h.inFlight.WithLabelValues(string(e.Service)).Inc()
}

// OnRequestEnd records the outcome and latency.
func (h *PrometheusHook) OnRequestEnd(e core.RequestEndEvent) {
	svc := string(e.Service)
	h.inFlight.WithLabelValues(svc).Dec()
	action := h.actionLabel(e.Action)
	h.requests.WithLabelValues(svc, action, Outcome(e)).Inc()
	h.duration.WithLabelValues(svc, action).Observe(e.Duration().Seconds())
}

func (h *PrometheusHook) actionLabel(action string) string {
	if h.actions == nil {
		return action
	}
	if _, ok := h.actions[action]; ok {
		return action
	}
	return OtherAction
}

var _ core.TelemetryHook = (*PrometheusHook)(nil)
