package telemetry

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/singlebase/singlebase-go/core"
)

func startEvent(id string) core.RequestStartEvent {
	return core.RequestStartEvent{
		RequestID:  id,
		Service:    core.ServiceDB,
		Action:     "fetch",
		Collection: "articles",
		Start:      time.Now(),
	}
}

func endEvent(start core.RequestStartEvent, ok bool, kind core.ErrorKind, code string, status int) core.RequestEndEvent {
	return core.RequestEndEvent{
		RequestID:  start.RequestID,
		Service:    start.Service,
		Action:     start.Action,
		Collection: start.Collection,
		Start:      start.Start,
		End:        start.Start.Add(120 * time.Millisecond),
		StatusCode: status,
		OK:         ok,
		ErrorKind:  kind,
		ErrorCode:  code,
	}
}

func TestOutcome(t *testing.T) {
	s := startEvent("1")
	assert.Equal(t, OutcomeOK, Outcome(endEvent(s, true, "", "", 200)))
	assert.Equal(t, OutcomeBackendError, Outcome(endEvent(s, false, core.KindBackend, "NOT_FOUND", 404)))
	assert.Equal(t, OutcomeTransportError, Outcome(endEvent(s, false, core.KindTransport, core.CodeTimeout, 0)))
}

func TestZapHook(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	hook := NewZapHook(zap.New(obsCore))

	s := startEvent("req-1")
	hook.OnRequestStart(s)
	hook.OnRequestEnd(endEvent(s, true, "", "", 200))
	hook.OnRequestEnd(endEvent(s, false, core.KindBackend, "UNAUTHORIZED", 401))

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "singlebase", entries[0].LoggerName)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "articles", entries[0].ContextMap()["collection"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, OutcomeOK, entries[1].ContextMap()["outcome"])
	assert.Equal(t, 120*time.Millisecond, entries[1].ContextMap()["duration"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "UNAUTHORIZED", entries[2].ContextMap()["error_code"])
	assert.Equal(t, "BackendError", entries[2].ContextMap()["error_kind"])
}

func TestPrometheusHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewPrometheusHook(reg, "test")
	require.NoError(t, err)

	s := startEvent("a")
	hook.OnRequestStart(s)
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.inFlight.WithLabelValues("db")))

	hook.OnRequestEnd(endEvent(s, true, "", "", 200))
	hook.OnRequestStart(s)
	hook.OnRequestEnd(endEvent(s, false, core.KindTransport, core.CodeTimeout, 0))

	assert.Equal(t, 0.0, testutil.ToFloat64(hook.inFlight.WithLabelValues("db")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("db", "fetch", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("db", "fetch", OutcomeTransportError)))

	count, err := testutil.GatherAndCount(reg, "test_singlebase_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP test_singlebase_requests_total Singlebase requests by service, action and outcome (ok, backend_error, transport_error).
# TYPE test_singlebase_requests_total counter
test_singlebase_requests_total{action="fetch",outcome="ok",service="db"} 1
test_singlebase_requests_total{action="fetch",outcome="transport_error",service="db"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_singlebase_requests_total"))
}

func TestPrometheusHookSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusHook(reg, "shared")
	require.NoError(t, err)
	second, err := NewPrometheusHook(reg, "shared")
	require.NoError(t, err)

	s := startEvent("x")
	first.OnRequestEnd(endEvent(s, true, "", "", 200))
	second.OnRequestEnd(endEvent(s, true, "", "", 200))

	assert.Equal(t, 2.0, testutil.ToFloat64(first.requests.WithLabelValues("db", "fetch", OutcomeOK)))
}

func TestPrometheusHookNilRegisterer(t *testing.T) {
	hook, err := NewPrometheusHook(nil, "")
	require.NoError(t, err)
	hook.OnRequestEnd(endEvent(startEvent("n"), true, "", "", 200))
}

func TestPrometheusHookWithActions(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewPrometheusHook(reg, "capped", WithActions("fetch", "insert"))
	require.NoError(t, err)

	known := startEvent("k")
	unknown := startEvent("u")
	unknown.Action = "report-2026-10-18"

	hook.OnRequestEnd(endEvent(known, true, "", "", 200))
	hook.OnRequestEnd(endEvent(unknown, true, "", "", 200))

	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("db", "fetch", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("db", OtherAction, OutcomeOK)))
	assert.Equal(t, 2, testutil.CollectAndCount(hook.requests))
}

func TestOTelHookSpansAreRoots(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	hook := NewOTelHook(tp)
	for _, id := range []string{"r-1", "r-2"} {
		s := startEvent(id)
		hook.OnRequestStart(s)
		hook.OnRequestEnd(endEvent(s, true, "", "", 200))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.False(t, span.Parent().IsValid(), "span %s should have no parent", span.Name())
	}
	assert.NotEqual(t, spans[0].SpanContext().TraceID(), spans[1].SpanContext().TraceID())
}

func TestOTelHook(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	hook := NewOTelHook(tp)

	ok := startEvent("ok-1")
	hook.OnRequestStart(ok)
	hook.OnRequestEnd(endEvent(ok, true, "", "", 200))

	failed := startEvent("fail-1")
	failed.Service = core.ServiceGenAI
	failed.Action = "summarize"
	failed.Collection = ""
	hook.OnRequestStart(failed)
	hook.OnRequestEnd(endEvent(failed, false, core.KindBackend, "QUOTA", 429))

	// An end without a start is ignored.
	hook.OnRequestEnd(endEvent(startEvent("orphan"), true, "", "", 200))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	first := spans[0]
	assert.Equal(t, "singlebase db.fetch", first.Name())
	assert.Equal(t, codes.Ok, first.Status().Code)
	assert.True(t, ok.Start.Equal(first.StartTime()))
	assert.Contains(t, first.Attributes(), attribute.String("singlebase.collection", "articles"))
	assert.Contains(t, first.Attributes(), attribute.Int("http.response.status_code", http.StatusOK))

	second := spans[1]
	assert.Equal(t, "singlebase genai.summarize", second.Name())
	assert.Equal(t, codes.Error, second.Status().Code)
	assert.Equal(t, "QUOTA", second.Status().Description)
	assert.Contains(t, second.Attributes(), attribute.String("singlebase.outcome", OutcomeBackendError))
	for _, kv := range second.Attributes() {
		assert.NotEqual(t, attribute.Key("singlebase.collection"), kv.Key)
	}
}

type countingHook struct{ starts, ends int }

func (h *countingHook) OnRequestStart(core.RequestStartEvent) { h.starts++ }
func (h *countingHook) OnRequestEnd(core.RequestEndEvent)     { h.ends++ }

func TestMulti(t *testing.T) {
	a, b := &countingHook{}, &countingHook{}
	hook := Multi(a, nil, b)

	s := startEvent("m")
	hook.OnRequestStart(s)
	hook.OnRequestEnd(endEvent(s, true, "", "", 200))

	assert.Equal(t, 1, a.starts)
	assert.Equal(t, 1, b.ends)
}

func TestHooksWithClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusHook(reg, "client")
	require.NoError(t, err)
	obsCore, logs := observer.New(zapcore.DebugLevel)

	tr := core.TransportFunc(func(context.Context, *core.Call) (*core.RawResponse, error) {
		return &core.RawResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	})
	c, err := core.NewClient(core.Config{APIURL: "https://example.test", APIKey: "k"},
		core.WithTransport(tr),
		core.WithTelemetry(Multi(NewZapHook(zap.New(obsCore)), metrics)),
	)
	require.NoError(t, err)

	f, err := c.AuthAsync(context.Background(), "nonce", nil)
	require.NoError(t, err)
	require.True(t, f.Await(context.Background()).OK())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("auth", "nonce", OutcomeOK)))
	require.Len(t, logs.All(), 2)
	assert.Equal(t, true, logs.All()[0].ContextMap()["async"])
}
