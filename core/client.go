package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is the main entry point for talking to a Singlebase backend.
// Client holds only read-only state after construction and is safe for
// concurrent use.
type Client struct {
	apiURL    string
	transport Transport
	send      SendFunc
	mapper    Mapper
	telemetry TelemetryHook
}

// NewClient creates a Client for the tenant endpoint in cfg.
//
//	client, err := core.NewClient(core.Config{
//	    APIURL: "https://cloud.singlebase.cloud/api/<tenant>",
//	    APIKey: os.Getenv("SINGLEBASE_API_KEY"),
//	})
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, ErrAPIURLRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}

	s := settings{
		timeout:    DefaultTimeout,
		authHeader: DefaultAuthHeader,
		userAgent:  DefaultUserAgent,
		mapper:     NewMapper(),
		telemetry:  NoopTelemetryHook{},
	}
	for _, opt := range opts {
		opt(&s)
	}

	transport := s.transport
	if transport == nil {
		httpClient := s.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: s.timeout}
		}
		transport = &HTTPTransport{
			url:        cfg.APIURL,
			key:        NewSecret(cfg.APIKey),
			authHeader: s.authHeader,
			authScheme: s.authScheme,
			userAgent:  s.userAgent,
			headers:    s.headers.Clone(),
			client:     httpClient,
		}
	}

	return &Client{
		apiURL:    cfg.APIURL,
		transport: transport,
		send:      Chain(s.middleware...)(transport.Send),
		mapper:    s.mapper,
		telemetry: s.telemetry,
	}, nil
}

// APIURL returns the endpoint the client posts to.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Transport returns the underlying transport, without middleware.
func (c *Client) Transport() Transport {
	return c.transport
}

// Dispatch sends a prepared envelope and waits for its Result.
// The returned error is non-nil only when env cannot be sent at all
// (an invalid argument); every transport or backend failure is a
// *ResultError inside the Result.
func (c *Client) Dispatch(ctx context.Context, env *Envelope) (Result, error) {
	call, err := prepareCall(env)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, call, false), nil
}

// DispatchAsync is the non-blocking form of Dispatch. Validation and encoding
// happen before it returns; the round trip runs on its own goroutine.
func (c *Client) DispatchAsync(ctx context.Context, env *Envelope) (*Future, error) {
	call, err := prepareCall(env)
	if err != nil {
		return nil, err
	}
	return startFuture(ctx, c.mapper, func(ctx context.Context) Result {
		return c.do(ctx, call, true)
	}), nil
}

// DB runs a database action against collection.
//
//	res, err := client.DB(ctx, core.ActionFetch, "articles", core.Payload{
//	    "matches": map[string]any{"status": "published"},
//	})
func (c *Client) DB(ctx context.Context, action, collection string, payload Payload) (Result, error) {
	env, err := BuildEnvelope(ServiceDB, action, collection, payload)
	if err != nil {
		return nil, err
	}
	return c.Dispatch(ctx, env)
}

// DBAsync is the non-blocking form of DB.
func (c *Client) DBAsync(ctx context.Context, action, collection string, payload Payload) (*Future, error) {
	env, err := BuildEnvelope(ServiceDB, action, collection, payload)
	if err != nil {
		return nil, err
	}
	return c.DispatchAsync(ctx, env)
}

// Auth runs an authentication action such as signin or nonce.
func (c *Client) Auth(ctx context.Context, action string, payload Payload) (Result, error) {
	return c.service(ctx, ServiceAuth, action, payload)
}

// AuthAsync is the non-blocking form of Auth.
func (c *Client) AuthAsync(ctx context.Context, action string, payload Payload) (*Future, error) {
	return c.serviceAsync(ctx, ServiceAuth, action, payload)
}

// Storage runs a file storage action.
func (c *Client) Storage(ctx context.Context, action string, payload Payload) (Result, error) {
	return c.service(ctx, ServiceStorage, action, payload)
}

// StorageAsync is the non-blocking form of Storage.
func (c *Client) StorageAsync(ctx context.Context, action string, payload Payload) (*Future, error) {
	return c.serviceAsync(ctx, ServiceStorage, action, payload)
}

// GenAI runs a generative AI action such as summarize or qna.
func (c *Client) GenAI(ctx context.Context, action string, payload Payload) (Result, error) {
	return c.service(ctx, ServiceGenAI, action, payload)
}

// GenAIAsync is the non-blocking form of GenAI.
func (c *Client) GenAIAsync(ctx context.Context, action string, payload Payload) (*Future, error) {
	return c.serviceAsync(ctx, ServiceGenAI, action, payload)
}

// VectorDB runs a vector database action.
func (c *Client) VectorDB(ctx context.Context, action string, payload Payload) (Result, error) {
	return c.service(ctx, ServiceVectorDB, action, payload)
}

// VectorDBAsync is the non-blocking form of VectorDB.
func (c *Client) VectorDBAsync(ctx context.Context, action string, payload Payload) (*Future, error) {
	return c.serviceAsync(ctx, ServiceVectorDB, action, payload)
}

// Request sends payload verbatim. It is the escape hatch for backend
// features the facade does not model; payload must contain "action".
func (c *Client) Request(ctx context.Context, payload Payload) (Result, error) {
	env, err := NewRawEnvelope(payload)
	if err != nil {
		return nil, err
	}
	return c.Dispatch(ctx, env)
}

// RequestAsync is the non-blocking form of Request.
func (c *Client) RequestAsync(ctx context.Context, payload Payload) (*Future, error) {
	env, err := NewRawEnvelope(payload)
	if err != nil {
		return nil, err
	}
	return c.DispatchAsync(ctx, env)
}

func (c *Client) service(ctx context.Context, svc Service, action string, payload Payload) (Result, error) {
	env, err := BuildEnvelope(svc, action, "", payload)
	if err != nil {
		return nil, err
	}
	return c.Dispatch(ctx, env)
}

func (c *Client) serviceAsync(ctx context.Context, svc Service, action string, payload Payload) (*Future, error) {
	env, err := BuildEnvelope(svc, action, "", payload)
	if err != nil {
		return nil, err
	}
	return c.DispatchAsync(ctx, env)
}

func prepareCall(env *Envelope) (*Call, error) {
	if env == nil {
		return nil, &ArgumentError{Field: "envelope", Reason: "must not be nil"}
	}
	body, err := env.Encode()
	if err != nil {
		return nil, err
	}
	return &Call{Envelope: env, Body: body, Header: make(http.Header)}, nil
}

// do performs one round trip and always yields a Result.
func (c *Client) do(ctx context.Context, call *Call, async bool) Result {
	// Each round trip gets its own header map so middleware never races.
	call = &Call{Envelope: call.Envelope, Body: call.Body, Header: call.Header.Clone()}

	id := uuid.NewString()
	ctx = ContextWithRequestID(ctx, id)
	env := call.Envelope

	start := time.Now()
	c.telemetry.OnRequestStart(RequestStartEvent{
		RequestID:  id,
		Service:    env.Service,
		Action:     env.Action,
		Collection: env.Collection,
		Async:      async,
		Start:      start,
	})

	var res Result
	raw, err := c.send(ctx, call)
	if err != nil {
		res = c.mapper.MapTransportError(err)
	} else {
		res = c.mapper.Map(raw)
	}

	end := RequestEndEvent{
		RequestID:  id,
		Service:    env.Service,
		Action:     env.Action,
		Collection: env.Collection,
		Async:      async,
		Start:      start,
		End:        time.Now(),
		StatusCode: res.Status(),
		OK:         res.OK(),
	}
	if re, ok := AsError(res); ok {
		end.ErrorKind = re.Kind
		end.ErrorCode = re.Code
	}
	c.telemetry.OnRequestEnd(end)

	return res
}

type requestIDKey struct{}

// ContextWithRequestID returns a context carrying a request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID assigned to the current
// dispatch, as seen by middleware and telemetry.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
