package core

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPTransportRequest(t *testing.T) {
	var (
		gotMethod string
		gotHeader http.Header
		gotBody   map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"data":[{"_key":"k1"}]}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{APIURL: server.URL, APIKey: "sb-secret"}, WithHeader("X-Tenant", "acme"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	res, err := c.DB(context.Background(), ActionFetch, "articles", Payload{"limit": 1})
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	if !res.OK() {
		t.Fatalf("res = %#v", res)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	checks := map[string]string{
		"Content-Type":            "application/json",
		"Accept":                  "application/json",
		"User-Agent":              DefaultUserAgent,
		"X-Singlebase-Access-Key": "sb-secret",
		"X-Tenant":                "acme",
	}
	for k, want := range checks {
		if got := gotHeader.Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}
	if gotBody["collection"] != "articles" || gotBody["action"] != "fetch" {
		t.Errorf("body = %#v", gotBody)
	}
}

func TestHTTPTransportBearerAuth(t *testing.T) {
	var auth, legacy string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		legacy = r.Header.Get(DefaultAuthHeader)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{APIURL: server.URL, APIKey: "sb-secret"},
		WithAuthHeader("Authorization", "Bearer"),
		WithUserAgent("my-app/1.0"),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.Auth(context.Background(), ActionNonce, nil); err != nil {
		t.Fatalf("Auth() error = %v", err)
	}

	if auth != "Bearer sb-secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if legacy != "" {
		t.Errorf("%s should not be sent, got %q", DefaultAuthHeader, legacy)
	}
}

func TestHTTPTransportExactlyOneRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"ok":false,"message":"try later"}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{APIURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	res, _ := c.GenAI(context.Background(), ActionQnA, Payload{"question": "?"})
	re, ok := AsError(res)
	if !ok || re.Code != CodeServer || re.StatusCode != 503 {
		t.Errorf("res = %#v", res)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestHTTPTransportTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	c, err := NewClient(Config{APIURL: server.URL, APIKey: "k"}, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	res, err := c.DB(context.Background(), ActionFetch, "articles", nil)
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	re, ok := AsError(res)
	if !ok || re.Kind != KindTransport || re.Code != CodeTimeout {
		t.Errorf("res = %#v, want TransportError/TIMEOUT", res)
	}
}

func TestHTTPTransportConnectionRefused(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, err := NewClient(Config{APIURL: "http://" + addr, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	res, _ := c.Storage(context.Background(), ActionGet, nil)
	re, ok := AsError(res)
	if !ok || re.Kind != KindTransport || re.Code != CodeConnectionRefused {
		t.Errorf("res = %#v, want TransportError/CONNECTION_REFUSED", res)
	}
}

func TestHTTPTransportMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>Bad Gateway</html>"))
	}))
	defer server.Close()

	c, _ := NewClient(Config{APIURL: server.URL, APIKey: "k"})
	res, _ := c.VectorDB(context.Background(), "search", nil)
	re, ok := AsError(res)
	if !ok || re.Code != CodeMalformedResponse || re.StatusCode != 502 {
		t.Errorf("res = %#v", res)
	}
}

func TestTransportFunc(t *testing.T) {
	called := false
	var tr Transport = TransportFunc(func(context.Context, *Call) (*RawResponse, error) {
		called = true
		return &RawResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	})

	c := newTestClient(t, tr)
	if c.Transport() == nil {
		t.Fatal("Transport() should not be nil")
	}
	if res, _ := c.Auth(context.Background(), ActionNonce, nil); !res.OK() {
		t.Errorf("res = %#v", res)
	}
	if !called {
		t.Error("TransportFunc was not called")
	}
}
