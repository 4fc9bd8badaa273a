package es

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CompareAndAppend(t *testing.T) {
	ctx := t.Context()
	s := NewInMemoryStore()

	loaded, err := s.Load(ctx, "pool", "p1")
	require.NoError(t, err)
	require.Empty(t, loaded)

	res, err := appendEvents(ctx, s, "pool", "p1", 0, &renamed{Name: "a"}, &renamed{Name: "b"})
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.LastSeq)

	_, err = appendEvents(ctx, s, "pool", "p1", 0, &renamed{Name: "c"})
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	_, err = appendEvents(ctx, s, "pool", "p1", 3, &renamed{Name: "c"})
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	res, err = appendEvents(ctx, s, "pool", "p2", 0, &renamed{Name: "x"})
	require.NoError(t, err)
	require.Equal(t, uint64(3), res.LastSeq)

	loaded, err = s.Load(ctx, "pool", "p1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, Version(1), loaded[0].Version)
	require.Equal(t, Version(2), loaded[1].Version)

	loaded, err = s.Load(ctx, "pool", "p1", WithStartAtVersion(2))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, Version(2), loaded[0].Version)
}

func TestInMemoryStore_RejectsBadBatches(t *testing.T) {
	ctx := t.Context()
	s := NewInMemoryStore()

	_, err := s.Append(ctx, "pool", "p1", 0, nil)
	require.ErrorIs(t, err, ErrStoreNoEvents)

	envs, err := NewEnvelopes("pool", "p1", 1, DefaultIDGenerator(), testNow, &renamed{})
	require.NoError(t, err)
	_, err = s.Append(ctx, "pool", "p1", 0, envs)
	require.ErrorContains(t, err, "expect version 1, got 2")

	envs, err = NewEnvelopes("pool", "other", 0, DefaultIDGenerator(), testNow, &renamed{})
	require.NoError(t, err)
	_, err = s.Append(ctx, "pool", "p1", 0, envs)
	require.ErrorContains(t, err, "belongs to pool/other")

	loaded, err := s.Load(ctx, "pool", "p1")
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestInMemoryStore_ReadAll(t *testing.T) {
	ctx := t.Context()
	s := NewInMemoryStore()

	_, err := appendEvents(ctx, s, "pool", "p1", 0, &renamed{Name: "a"}, &renamed{Name: "b"})
	require.NoError(t, err)
	_, err = appendEvents(ctx, s, "pool", "p2", 0, &renamed{Name: "c"})
	require.NoError(t, err)

	all, err := s.ReadAll(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		require.Equal(t, uint64(i+1), e.Seq)
	}

	page, err := s.ReadAll(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, uint64(2), page[0].Seq)

	rest, err := s.ReadAll(ctx, 3, 10)
	require.NoError(t, err)
	require.Empty(t, rest)
}

// appendEvents encodes and appends raw events without an aggregate.
func appendEvents(
	ctx context.Context,
	store EventStore,
	aggType string,
	aggID string,
	expect Version,
	events ...any,
) (*StoreAppendResult, error) {
	if len(events) == 0 {
		return nil, ErrStoreNoEvents
	}
	envelopes, err := NewEnvelopes(aggType, aggID, expect, DefaultIDGenerator(), time.Now(), events...)
	if err != nil {
		return nil, err
	}
	return store.Append(ctx, aggType, aggID, expect, envelopes)
}
