package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/singlebase/singlebase-go/core"
)

func newCall(t *testing.T, svc core.Service, action, collection string) *core.Call {
	t.Helper()
	env, err := core.BuildEnvelope(svc, action, collection, nil)
	require.NoError(t, err)
	body, err := env.Encode()
	require.NoError(t, err)
	return &core.Call{Envelope: env, Body: body, Header: http.Header{}}
}

func okSend(status int) core.SendFunc {
	return func(context.Context, *core.Call) (*core.RawResponse, error) {
		return &core.RawResponse{StatusCode: status, Body: []byte(`{"ok":true}`)}, nil
	}
}

func failSend(err error) core.SendFunc {
	return func(context.Context, *core.Call) (*core.RawResponse, error) {
		return nil, err
	}
}

func TestLogging(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(obsCore)

	ctx := core.ContextWithRequestID(context.Background(), "req-1")
	_, err := Logging(logger)(okSend(200))(ctx, newCall(t, core.ServiceDB, "fetch", "articles"))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, zapcore.DebugLevel, e.Level)
	assert.Equal(t, "singlebase request", e.Message)

	fields := e.ContextMap()
	assert.Equal(t, "db", fields["service"])
	assert.Equal(t, "fetch", fields["action"])
	assert.Equal(t, "articles", fields["collection"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.EqualValues(t, 200, fields["status"])
	assert.Contains(t, fields, "duration")
}

func TestLoggingFailures(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	mw := Logging(zap.New(obsCore))

	_, err := mw(failSend(errors.New("connection refused")))(context.Background(), newCall(t, core.ServiceAuth, "signin", ""))
	require.Error(t, err)

	_, err = mw(okSend(503))(context.Background(), newCall(t, core.ServiceGenAI, "qna", ""))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])
	assert.NotContains(t, entries[0].ContextMap(), "collection")

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 503, entries[1].ContextMap()["status"])
}

func nilSend(context.Context, *core.Call) (*core.RawResponse, error) {
	return nil, nil
}

func TestLoggingNoResponse(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)

	resp, err := Logging(zap.New(obsCore))(nilSend)(context.Background(), newCall(t, core.ServiceDB, "fetch", "articles"))
	require.NoError(t, err)
	assert.Nil(t, resp)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "singlebase request returned no response", entries[0].Message)
	assert.NotContains(t, entries[0].ContextMap(), "status")
}

func TestMiddlewareNoResponseBecomesTransportError(t *testing.T) {
	tests := []struct {
		name string
		mw   core.Middleware
	}{
		{"logging", Logging(zap.NewNop())},
		{"circuit breaker", CircuitBreaker(DefaultCircuitBreakerConfig())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := core.NewClient(
				core.Config{APIURL: "https://api.example.test", APIKey: "k"},
				core.WithTransport(core.TransportFunc(nilSend)),
				core.WithMiddleware(tt.mw),
			)
			require.NoError(t, err)
			ctx := context.Background()

			res, err := client.DB(ctx, "fetch", "articles", nil)
			require.NoError(t, err)
			resErr, ok := res.(*core.ResultError)
			require.True(t, ok, "result = %#v", res)
			assert.Equal(t, core.KindTransport, resErr.Kind)
			assert.Equal(t, core.CodeMalformedResponse, resErr.Code)

			f, err := client.DBAsync(ctx, "fetch", "articles", nil)
			require.NoError(t, err)
			assert.Equal(t, res, f.Await(ctx))
		})
	}
}

func TestLoggingNeverLogsPayload(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)

	env, err := core.BuildEnvelope(core.ServiceAuth, "signin", "", core.Payload{"password": "hunter2"})
	require.NoError(t, err)
	body, err := env.Encode()
	require.NoError(t, err)

	_, err = Logging(zap.New(obsCore))(okSend(200))(context.Background(), &core.Call{Envelope: env, Body: body, Header: http.Header{}})
	require.NoError(t, err)

	for _, e := range logs.All() {
		for k, v := range e.ContextMap() {
			assert.NotContains(t, k, "payload")
			assert.NotEqual(t, "hunter2", v)
		}
	}
}

func TestLoggingNilLogger(t *testing.T) {
	_, err := Logging(nil)(okSend(200))(context.Background(), newCall(t, core.ServiceStorage, "get", ""))
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)
	send := RateLimit(limiter)(okSend(200))
	call := newCall(t, core.ServiceDB, "count", "articles")

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := send(context.Background(), call)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitContextCancellation(t *testing.T) {
	var sent int
	next := func(context.Context, *core.Call) (*core.RawResponse, error) {
		sent++
		return &core.RawResponse{StatusCode: 200}, nil
	}
	send := RateLimitPerSecond(0.1, 1)(next)
	call := newCall(t, core.ServiceDB, "count", "articles")

	_, err := send(context.Background(), call)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = send(ctx, call)
	require.Error(t, err)
	assert.Equal(t, 1, sent, "a throttled call must not be sent")
}

func TestRateLimitedCallBecomesTransportError(t *testing.T) {
	tr := core.TransportFunc(func(context.Context, *core.Call) (*core.RawResponse, error) {
		return &core.RawResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	})
	c, err := core.NewClient(core.Config{APIURL: "https://example.test", APIKey: "k"},
		core.WithTransport(tr),
		core.WithMiddleware(RateLimit(rate.NewLimiter(rate.Every(time.Hour), 1))),
	)
	require.NoError(t, err)

	res, err := c.DB(context.Background(), "fetch", "articles", nil)
	require.NoError(t, err)
	assert.True(t, res.OK())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err = c.DB(ctx, "fetch", "articles", nil)
	require.NoError(t, err)
	re, ok := core.AsError(res)
	require.True(t, ok)
	assert.Equal(t, core.KindTransport, re.Kind)
}

func TestTimeout(t *testing.T) {
	slow := func(ctx context.Context, _ *core.Call) (*core.RawResponse, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return &core.RawResponse{StatusCode: 200}, nil
		}
	}

	_, err := Timeout(20*time.Millisecond)(slow)(context.Background(), newCall(t, core.ServiceGenAI, "summarize", ""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	resp, err := Timeout(time.Second)(okSend(200))(context.Background(), newCall(t, core.ServiceGenAI, "summarize", ""))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = Timeout(0)(okSend(201))(context.Background(), newCall(t, core.ServiceGenAI, "summarize", ""))
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	var got string
	capture := func(_ context.Context, call *core.Call) (*core.RawResponse, error) {
		got = call.Header.Get(RequestIDHeader)
		return &core.RawResponse{StatusCode: 200}, nil
	}

	ctx := core.ContextWithRequestID(context.Background(), "from-dispatch")
	_, err := RequestID()(capture)(ctx, newCall(t, core.ServiceDB, "fetch", "a"))
	require.NoError(t, err)
	assert.Equal(t, "from-dispatch", got)

	_, err = RequestID()(capture)(context.Background(), newCall(t, core.ServiceDB, "fetch", "a"))
	require.NoError(t, err)
	assert.Len(t, got, 36, "expected a generated uuid")

	call := newCall(t, core.ServiceDB, "fetch", "a")
	call.Header.Set(RequestIDHeader, "caller-set")
	_, err = RequestID()(capture)(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, "caller-set", got)
}

func TestHeader(t *testing.T) {
	var got http.Header
	capture := func(_ context.Context, call *core.Call) (*core.RawResponse, error) {
		got = call.Header
		return &core.RawResponse{StatusCode: 200}, nil
	}

	call := newCall(t, core.ServiceStorage, "get", "")
	call.Header = nil
	_, err := Header("X-Tenant", "acme")(capture)(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Get("X-Tenant"))
}

func TestForServicesAndExceptServices(t *testing.T) {
	var mu sync.Mutex
	var tagged []string
	tag := func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			mu.Lock()
			tagged = append(tagged, call.Envelope.Name())
			mu.Unlock()
			return next(ctx, call)
		}
	}

	only := ForServices([]core.Service{core.ServiceGenAI}, tag)(okSend(200))
	except := ExceptServices([]core.Service{core.ServiceGenAI}, tag)(okSend(200))

	for _, send := range []core.SendFunc{only, except} {
		_, _ = send(context.Background(), newCall(t, core.ServiceGenAI, "qna", ""))
		_, _ = send(context.Background(), newCall(t, core.ServiceDB, "fetch", "a"))
	}

	assert.Equal(t, []string{"genai.qna", "db.fetch"}, tagged)
}
