// Package core provides the Singlebase client, request envelope and result types.
//
// Singlebase exposes one HTTP endpoint per tenant. Every operation, whatever
// service it targets, is a single JSON POST of an [Envelope]:
//
//	{"service": "db", "action": "fetch", "collection": "articles", "payload": {...}}
//
// The package is a thin facade over that endpoint. It does not interpret
// actions or payloads; the backend owns that vocabulary.
//
// # Client
//
// Create a [Client] with the tenant URL and access key:
//
//	client, err := core.NewClient(core.Config{
//	    APIURL: os.Getenv("SINGLEBASE_API_URL"),
//	    APIKey: os.Getenv("SINGLEBASE_API_KEY"),
//	}, core.WithTimeout(10*time.Second))
//
// [NewFromEnv] reads the same two variables. Client is safe for concurrent use.
//
// # Services
//
// One facade method exists per service: [Client.DB], [Client.Auth],
// [Client.Storage], [Client.GenAI] and [Client.VectorDB]. [Client.Request]
// sends a caller-built payload verbatim.
//
//	res, err := client.DB(ctx, core.ActionFetch, "articles", core.Payload{
//	    "matches": map[string]any{"status": "published"},
//	})
//	if err != nil {
//	    return err // invalid argument, nothing was sent
//	}
//	switch r := res.(type) {
//	case *core.ResultOK:
//	    for _, rec := range r.Data {
//	        fmt.Println(rec.Key())
//	    }
//	case *core.ResultError:
//	    fmt.Println(r.Kind, r.Code, r.Message)
//	}
//
// The error return is reserved for caller mistakes detected before any I/O
// ([ErrInvalidArgument]). Network and backend failures are reported as a
// [*ResultError] inside the [Result], classified by [ErrTransport] or
// [ErrBackend]. No call is ever retried.
//
// # Async
//
// Each facade has an Async variant returning a [Future]. The round trip runs
// on its own goroutine:
//
//	f1, _ := client.DBAsync(ctx, core.ActionCount, "articles", nil)
//	f2, _ := client.GenAIAsync(ctx, core.ActionSummarize, core.Payload{"text": doc})
//	results := core.AwaitAll(ctx, f1, f2)
//
// Blocking and async forms produce equal Results for equal inputs.
//
// # Collections
//
// [Client.Collection] returns a handle with per-action helpers and optional
// default match conditions:
//
//	drafts := client.Collection("articles").Matches(map[string]any{"status": "draft"})
//	res, err := drafts.Count(ctx, nil)
//
// # Middleware and Telemetry
//
// [WithMiddleware] wraps the transport (see the middleware package for
// logging, rate limiting, timeouts and request IDs). [WithTelemetry]
// installs a [TelemetryHook]; see the telemetry package for zap, Prometheus
// and OpenTelemetry hooks.
package core
