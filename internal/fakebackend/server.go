// Package fakebackend is an in-memory implementation of the Singlebase
// envelope protocol. It backs the client's tests and the CLI's devserver
// command; it is not a faithful model of the hosted service.
package fakebackend

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DefaultAuthHeader is the header checked for the access key.
const DefaultAuthHeader = "X-SINGLEBASE-ACCESS-KEY"

// Envelope is a request as received by the server.
type Envelope struct {
	Service    string         `json:"service"`
	Action     string         `json:"action"`
	Collection string         `json:"collection,omitempty"`
	Payload    map[string]any `json:"payload"`
	// Raw is the full decoded body.
	Raw map[string]any `json:"-"`
	// Header holds the request headers.
	Header http.Header `json:"-"`
}

// Failure is an injected response returned instead of normal handling.
type Failure struct {
	Status int
	Body   string
}

// Server serves the protocol at every path on POST.
// Server is safe for concurrent use.
type Server struct {
	echo       *echo.Echo
	logger     *zap.Logger
	apiKey     string
	authHeader string
	authScheme string
	delay      time.Duration

	mu          sync.Mutex
	collections map[string][]map[string]any
	received    []Envelope
	failures    []Failure
	entropy     io.Reader
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey sets the accepted access key. An empty key disables the check.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithAuthHeader changes the header carrying the access key, with an
// optional scheme prefix such as "Bearer".
func WithAuthHeader(name, scheme string) Option {
	return func(s *Server) {
		if name != "" {
			s.authHeader = name
			s.authScheme = scheme
		}
	}
}

// WithLogger logs every request.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDelay delays every response, honoring request cancellation.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// New creates a Server with empty collections.
func New(opts ...Option) *Server {
	s := &Server{
		logger:      zap.NewNop(),
		authHeader:  DefaultAuthHeader,
		collections: make(map[string][]map[string]any),
		entropy:     ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Info("fakebackend request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	e.POST("/*", s.handle)
	s.echo = e

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Close stops a server started with Start.
func (s *Server) Close() error {
	return s.echo.Close()
}

// Received returns a copy of every envelope received so far.
func (s *Server) Received() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.received...)
}

// Seed inserts records into a collection, assigning keys where missing.
// Records go through a JSON round trip so they compare like wire data.
func (s *Server) Seed(collection string, records ...map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("seed %s: %w", collection, err)
		}
		var doc map[string]any
		if err := json.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("seed %s: %w", collection, err)
		}
		s.collections[collection] = append(s.collections[collection], s.newRecord(doc))
	}
	return nil
}

// Records returns a copy of the stored records of a collection, archived included.
func (s *Server) Records(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.collections[collection]))
	for _, r := range s.collections[collection] {
		out = append(out, copyMap(r))
	}
	return out
}

// FailNext queues a canned response for the next request.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{Status: status, Body: body})
}

// Reset drops all data, received envelopes and queued failures.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string][]map[string]any)
	s.received = nil
	s.failures = nil
}

// apiError is a protocol-level failure.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.code + ": " + e.message }

func newAPIError(status int, code, format string, args ...any) *apiError {
	return &apiError{status: status, code: code, message: fmt.Sprintf(format, args...)}
}

func (s *Server) handle(c echo.Context) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-c.Request().Context().Done():
			return nil
		}
	}

	if !s.authorized(c.Request().Header) {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"ok":    false,
			"error": map[string]any{"code": "UNAUTHORIZED", "message": "invalid or missing access key"},
		})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, newAPIError(http.StatusBadRequest, "INVALID_BODY", "read body: %v", err))
	}

	env, apiErr := decodeEnvelope(body)
	if apiErr != nil {
		return writeError(c, apiErr)
	}
	env.Header = c.Request().Header.Clone()

	s.mu.Lock()
	s.received = append(s.received, env)
	var failure *Failure
	if len(s.failures) > 0 {
		failure = &s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()

	if failure != nil {
		return c.Blob(failure.Status, echo.MIMEApplicationJSON, []byte(failure.Body))
	}

	data, meta, apiErr := s.dispatch(env)
	if apiErr != nil {
		return writeError(c, apiErr)
	}
	resp := map[string]any{"ok": true, "data": data}
	if meta != nil {
		resp["meta"] = meta
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) authorized(h http.Header) bool {
	if s.apiKey == "" {
		return true
	}
	want := s.apiKey
	if s.authScheme != "" {
		want = s.authScheme + " " + s.apiKey
	}
	return h.Get(s.authHeader) == want
}

func writeError(c echo.Context, e *apiError) error {
	return c.JSON(e.status, map[string]any{"ok": false, "code": e.code, "message": e.message})
}

// decodeEnvelope accepts both the structured form and raw payloads whose
// action is written as "service.action".
func decodeEnvelope(body []byte) (Envelope, *apiError) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return Envelope{}, newAPIError(http.StatusBadRequest, "INVALID_JSON", "body must be a JSON object")
	}

	env := Envelope{Raw: raw}
	env.Service, _ = raw["service"].(string)
	env.Action, _ = raw["action"].(string)
	env.Collection, _ = raw["collection"].(string)

	if p, ok := raw["payload"].(map[string]any); ok {
		env.Payload = p
	} else {
		// Raw requests carry their parameters at the top level.
		env.Payload = make(map[string]any, len(raw))
		for k, v := range raw {
			switch k {
			case "service", "action", "collection", "payload":
			default:
				env.Payload[k] = v
			}
		}
	}

	if env.Service == "" {
		if svc, action, ok := strings.Cut(env.Action, "."); ok {
			env.Service, env.Action = svc, action
		}
	}
	if env.Action == "" {
		return Envelope{}, newAPIError(http.StatusBadRequest, "ACTION_REQUIRED", "action is required")
	}
	return env, nil
}

func (s *Server) dispatch(env Envelope) (data any, meta map[string]any, err *apiError) {
	switch env.Service {
	case "db":
		return s.handleDB(env)
	case "auth":
		return s.handleAuth(env)
	case "storage", "genai", "vectordb":
		return map[string]any{
			"service": env.Service,
			"action":  env.Action,
			"payload": env.Payload,
		}, nil, nil
	default:
		return nil, nil, newAPIError(http.StatusBadRequest, "UNKNOWN_SERVICE", "unknown service %q", env.Service)
	}
}

func (s *Server) handleAuth(env Envelope) (any, map[string]any, *apiError) {
	switch env.Action {
	case "nonce":
		s.mu.Lock()
		nonce := s.newID()
		s.mu.Unlock()
		return map[string]any{"nonce": nonce}, nil, nil
	case "signin":
		email, _ := env.Payload["email"].(string)
		password, _ := env.Payload["password"].(string)
		if email == "" || password == "" {
			return nil, nil, newAPIError(http.StatusBadRequest, "MISSING_CREDENTIALS", "email and password are required")
		}
		s.mu.Lock()
		token := s.newID()
		s.mu.Unlock()
		return map[string]any{"email": email, "id_token": token}, nil, nil
	default:
		return nil, nil, newAPIError(http.StatusBadRequest, "UNKNOWN_ACTION", "unknown auth action %q", env.Action)
	}
}

// newID returns a fresh ULID. Callers hold s.mu.
func (s *Server) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// newRecord copies r and assigns a key and timestamps. Callers hold s.mu.
func (s *Server) newRecord(r map[string]any) map[string]any {
	rec := copyMap(r)
	if k, _ := rec["_key"].(string); k == "" {
		rec["_key"] = s.newID()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := rec["_created_at"]; !ok {
		rec["_created_at"] = now
	}
	rec["_modified_at"] = now
	return rec
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
