package core

import (
	"errors"
	"net/http"
	"os"
	"time"
)

// Environment variables read by NewFromEnv.
const (
	EnvAPIURL = "SINGLEBASE_API_URL"
	EnvAPIKey = "SINGLEBASE_API_KEY"
)

// ErrEnvNotSet is returned by NewFromEnv when a required variable is missing.
var ErrEnvNotSet = errors.New("singlebase: SINGLEBASE_API_URL and SINGLEBASE_API_KEY must be set")

// Config identifies the tenant endpoint and its credential.
type Config struct {
	// APIURL is the tenant-scoped endpoint (required).
	APIURL string
	// APIKey is the access key (required).
	APIKey string
}

// settings collects everything an Option may change.
type settings struct {
	httpClient *http.Client
	timeout    time.Duration
	authHeader string
	authScheme string
	userAgent  string
	headers    http.Header
	transport  Transport
	middleware []Middleware
	mapper     Mapper
	telemetry  TelemetryHook
}

// Option configures a Client.
type Option func(*settings)

// WithHTTPClient sets a custom HTTP client. Its own Timeout then applies
// instead of DefaultTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTimeout sets the overall request timeout for the default HTTP client.
// Zero disables the timeout; callers then rely on context deadlines.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithAuthHeader changes the header that carries the access key. scheme, when
// non-empty, prefixes the key, as in WithAuthHeader("Authorization", "Bearer").
func WithAuthHeader(name, scheme string) Option {
	return func(s *settings) {
		if name != "" {
			s.authHeader = name
			s.authScheme = scheme
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithHeader adds an extra header to every request.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithTransport replaces the HTTP transport, typically with a test double.
func WithTransport(t Transport) Option {
	return func(s *settings) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithMiddleware appends transport middleware. The first middleware given is
// the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *settings) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithResponseFields overrides the wire names read from responses.
func WithResponseFields(f ResponseFields) Option {
	return func(s *settings) {
		s.mapper.Fields = f
	}
}

// WithTimestampDecoding converts RFC 3339 strings in results to time.Time.
func WithTimestampDecoding() Option {
	return func(s *settings) {
		s.mapper.DecodeTimestamps = true
	}
}

// WithTelemetry sets the telemetry hook for the client.
func WithTelemetry(h TelemetryHook) Option {
	return func(s *settings) {
		if h != nil {
			s.telemetry = h
		}
	}
}

// NewFromEnv creates a Client from SINGLEBASE_API_URL and SINGLEBASE_API_KEY.
//
//	client, err := core.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewFromEnv(opts ...Option) (*Client, error) {
	url := os.Getenv(EnvAPIURL)
	key := os.Getenv(EnvAPIKey)
	if url == "" || key == "" {
		return nil, ErrEnvNotSet
	}
	return NewClient(Config{APIURL: url, APIKey: key}, opts...)
}
