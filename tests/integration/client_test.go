//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/singlebase/singlebase-go/core"
	"github.com/singlebase/singlebase-go/middleware"
)

func newLiveClient(t *testing.T) *core.Client {
	t.Helper()
	target := skipIfNoTenant(t)
	client, err := core.NewClient(
		core.Config{APIURL: target.URL, APIKey: target.Key},
		core.WithTimeout(30*time.Second),
		core.WithMiddleware(middleware.RequestID()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestClient_Nonce(t *testing.T) {
	client := newLiveClient(t)

	nonce, err := client.Nonce(context.Background())
	if err != nil {
		t.Fatalf("Nonce() error = %v", err)
	}
	if nonce == "" {
		t.Error("nonce should not be empty")
	}
}

func TestClient_CollectionLifecycle(t *testing.T) {
	client := newLiveClient(t)
	ctx := context.Background()
	marker := uniqueName("run")
	col := client.Collection(testCollection()).Matches(map[string]any{"marker": marker})

	t.Cleanup(func() {
		_, _ = col.Delete(context.Background(), nil)
	})

	res, err := col.Insert(ctx, core.Payload{"data": map[string]any{"marker": marker, "title": "integration"}})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := core.Err(res); err != nil {
		t.Fatalf("Insert() result = %v", err)
	}

	res, err = col.Fetch(ctx, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	ok, isOK := res.(*core.ResultOK)
	if !isOK {
		t.Fatalf("Fetch() result = %v", core.Err(res))
	}
	if len(ok.Data) != 1 || ok.Data[0]["title"] != "integration" {
		t.Errorf("Fetch() data = %v", ok.Data)
	}
}

func TestClient_AsyncFanOut(t *testing.T) {
	client := newLiveClient(t)
	ctx := context.Background()

	futures := make([]*core.Future, 0, 3)
	for i := 0; i < 3; i++ {
		f, err := client.AuthAsync(ctx, core.ActionNonce, nil)
		if err != nil {
			t.Fatalf("AuthAsync() error = %v", err)
		}
		futures = append(futures, f)
	}
	for i, f := range futures {
		if res := f.Await(ctx); !res.OK() {
			t.Errorf("future %d failed: %v", i, core.Err(res))
		}
	}
}
