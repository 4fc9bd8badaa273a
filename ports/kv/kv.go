// Package kv is the key-value port snapshot storage is written against.
// Implementations: MemStore here, adapters/nats.KvStore for JetStream KV.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
)

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrNotFound (wrapped) for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Key joins parts with ".", the separator NATS KV buckets accept.
func Key(parts ...string) string { return strings.Join(parts, ".") }

// Put stores v as JSON.
func Put[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

// Get loads a JSON value stored with Put.
func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
