package core

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a blocking call when no custom http.Client is given.
const DefaultTimeout = 30 * time.Second

// DefaultAuthHeader is the header that carries the access key.
const DefaultAuthHeader = "X-SINGLEBASE-ACCESS-KEY"

// DefaultUserAgent identifies the SDK in requests.
const DefaultUserAgent = "singlebase-go"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Call is one outbound dispatch as seen by a Transport and its middleware.
type Call struct {
	Envelope *Envelope
	// Body is the encoded envelope.
	Body []byte
	// Header holds per-call headers added by middleware.
	Header http.Header
}

// RawResponse is an HTTP response read in full.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a single call and returns the raw response.
// A non-nil error means no usable response was received.
// Implementations must be safe for concurrent use and must not retry.
type Transport interface {
	Send(ctx context.Context, call *Call) (*RawResponse, error)
}

// TransportFunc adapts an ordinary function to the Transport interface.
type TransportFunc func(ctx context.Context, call *Call) (*RawResponse, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, call *Call) (*RawResponse, error) {
	return f(ctx, call)
}

// HTTPTransport posts envelopes to the configured API URL.
// HTTPTransport is safe for concurrent use.
type HTTPTransport struct {
	url        string
	key        Secret
	authHeader string
	authScheme string
	userAgent  string
	headers    http.Header
	client     *http.Client
}

// Send performs exactly one HTTP POST.
func (t *HTTPTransport) Send(ctx context.Context, call *Call) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(call.Body))
	if err != nil {
		return nil, err
	}

	for key, values := range t.buildHeaders() {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, values := range call.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// buildHeaders constructs the headers shared by every request.
func (t *HTTPTransport) buildHeaders() http.Header {
	headers := make(http.Header)

	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", t.userAgent)

	credential := t.key.Expose()
	if t.authScheme != "" {
		credential = t.authScheme + " " + credential
	}
	headers.Set(t.authHeader, credential)

	for key, values := range t.headers {
		for _, v := range values {
			headers.Add(key, v)
		}
	}

	return headers
}

var _ Transport = (*HTTPTransport)(nil)
