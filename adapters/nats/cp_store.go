package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/ports/kv"
)

const cpTimeout = 10 * time.Second

// CpStore keeps the checkpoint of one projection in a kv.Store under
// "proj.<name>".
type CpStore struct {
	kv  kv.Store
	key string
}

func NewCpStore(store kv.Store, projection string) (*CpStore, error) {
	if projection == "" {
		return nil, errors.New("projection name is required")
	}
	return &CpStore{kv: store, key: kv.Key("proj", projection)}, nil
}

func (c *CpStore) Get() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cpTimeout)
	defer cancel()

	lastSeq, err := kv.Get[uint64](ctx, c.kv, c.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	return lastSeq, nil
}

func (c *CpStore) Set(lastSeq uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), cpTimeout)
	defer cancel()
	return kv.Put(ctx, c.kv, c.key, lastSeq)
}

var _ es.CpStore = (*CpStore)(nil)
