package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrNoNonce is returned by Client.Nonce when a successful response
// carries no nonce.
var ErrNoNonce = errors.New("singlebase: response carried no nonce")

// Collection is a handle on one database collection with optional default
// match conditions. A Collection is immutable and safe for concurrent use.
//
//	published := client.Collection("articles").Matches(map[string]any{"status": "published"})
//	res, err := published.Fetch(ctx, nil)
type Collection struct {
	client  *Client
	name    string
	matches map[string]any
}

// Collection returns a handle for the named collection.
func (c *Client) Collection(name string) *Collection {
	return &Collection{client: c, name: name}
}

// Name returns the collection name.
func (col *Collection) Name() string {
	return col.name
}

// Matches returns a copy of the collection whose calls carry m as default
// match conditions. Keys given at the call site take precedence.
func (col *Collection) Matches(m map[string]any) *Collection {
	merged := make(map[string]any, len(col.matches)+len(m))
	for k, v := range col.matches {
		merged[k] = v
	}
	for k, v := range m {
		merged[k] = v
	}
	return &Collection{client: col.client, name: col.name, matches: merged}
}

// Do runs an arbitrary db action on the collection.
func (col *Collection) Do(ctx context.Context, action string, payload Payload) (Result, error) {
	payload, err := col.withMatches(payload)
	if err != nil {
		return nil, err
	}
	return col.client.DB(ctx, action, col.name, payload)
}

// DoAsync is the non-blocking form of Do.
func (col *Collection) DoAsync(ctx context.Context, action string, payload Payload) (*Future, error) {
	payload, err := col.withMatches(payload)
	if err != nil {
		return nil, err
	}
	return col.client.DBAsync(ctx, action, col.name, payload)
}

// Fetch retrieves the records selected by payload.
func (col *Collection) Fetch(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionFetch, payload)
}

// FetchOne is Fetch narrowed to the first record. A successful fetch with
// no records yields a ResultOK with empty Data.
func (col *Collection) FetchOne(ctx context.Context, payload Payload) (Result, error) {
	res, err := col.Fetch(ctx, payload)
	if err != nil {
		return nil, err
	}
	ok, isOK := res.(*ResultOK)
	if !isOK || len(ok.Data) <= 1 {
		return res, nil
	}
	return &ResultOK{Data: ok.Data[:1], Meta: ok.Meta, StatusCode: ok.StatusCode}, nil
}

// Insert adds records to the collection.
func (col *Collection) Insert(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionInsert, payload)
}

// Update modifies matching records.
func (col *Collection) Update(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionUpdate, payload)
}

// Upsert updates matching records or inserts when none match.
func (col *Collection) Upsert(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionUpsert, payload)
}

// Delete removes matching records.
func (col *Collection) Delete(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionDelete, payload)
}

// Count returns the number of matching records in the result meta.
func (col *Collection) Count(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionCount, payload)
}

// Archive soft-deletes matching records.
func (col *Collection) Archive(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionArchive, payload)
}

// Restore brings archived records back.
func (col *Collection) Restore(ctx context.Context, payload Payload) (Result, error) {
	return col.Do(ctx, ActionRestore, payload)
}

// withMatches merges the default matches under the "matches" key. Caller
// matches may be any map with string keys and win on conflicts.
func (col *Collection) withMatches(payload Payload) (Payload, error) {
	if len(col.matches) == 0 {
		return payload, nil
	}
	out := payload.Clone()

	merged := make(map[string]any, len(col.matches))
	for k, v := range col.matches {
		merged[k] = v
	}
	if own, ok := out["matches"]; ok && own != nil {
		rv := reflect.ValueOf(own)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, &ArgumentError{Field: "matches", Reason: fmt.Sprintf("must be a map with string keys, got %T", own)}
		}
		iter := rv.MapRange()
		for iter.Next() {
			merged[iter.Key().String()] = iter.Value().Interface()
		}
	}
	out["matches"] = merged
	return out, nil
}

// Nonce fetches a one-time nonce from the auth service. A failed call is
// returned as its *ResultError.
func (c *Client) Nonce(ctx context.Context) (string, error) {
	res, err := c.Auth(ctx, ActionNonce, nil)
	if err != nil {
		return "", err
	}
	if err := Err(res); err != nil {
		return "", err
	}
	rec, ok := res.(*ResultOK).First()
	if !ok {
		return "", ErrNoNonce
	}
	nonce, ok := rec.String("nonce")
	if !ok || nonce == "" {
		return "", ErrNoNonce
	}
	return nonce, nil
}
