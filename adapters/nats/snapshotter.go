package nats

import (
	"context"

	"github.com/codewandler/qpool-go/core/es"
)

// NewSnapshotter stores aggregate snapshots in a JetStream key-value bucket.
// Close the returned KvStore when done.
func NewSnapshotter(ctx context.Context, cfg KvConfig) (*es.KeyValueSnapshotter, *KvStore, error) {
	store, err := NewKvStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return es.NewKeyValueSnapshotter(store), store, nil
}
