package es

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type nameIndex struct {
	names   map[string]string
	handled []uint64
	fail    bool
	failOn  string
}

func (n *nameIndex) Name() string { return "names" }
func (n *nameIndex) Handle(_ context.Context, env Envelope, event any) error {
	if e, ok := event.(*renamed); n.fail || (ok && n.failOn != "" && e.Name == n.failOn) {
		return errors.New("boom")
	}
	n.handled = append(n.handled, env.Seq)
	if e, ok := event.(*renamed); ok {
		n.names[env.AggregateID] = e.Name
	}
	return nil
}

func TestProjector_CatchUp(t *testing.T) {
	ctx := t.Context()
	store := NewInMemoryStore()
	reg := NewRegistry()
	RegisterEvents(reg, Event[renamed]())

	idx := &nameIndex{names: map[string]string{}}
	cp := NewInMemCpStore()
	p := NewProjector(nil, store, reg, idx, WithCheckpointStore(cp), WithBatchSize(2))
	require.Same(t, idx, p.Projection())

	n, err := p.CatchUp(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = appendEvents(ctx, store, "pool", "p1", 0, &renamed{Name: "a"}, &renamed{Name: "b"})
	require.NoError(t, err)
	// not registered with reg, skipped
	_, err = appendEvents(ctx, store, "pool", "p1", 2, &counted{N: 1})
	require.NoError(t, err)
	_, err = appendEvents(ctx, store, "pool", "p2", 0, &renamed{Name: "c"})
	require.NoError(t, err)

	n, err = p.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, map[string]string{"p1": "b", "p2": "c"}, idx.names)
	require.Equal(t, []uint64{1, 2, 4}, idx.handled)

	last, err := cp.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(4), last)

	n, err = p.CatchUp(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestProjector_HandlerErrorKeepsCheckpoint(t *testing.T) {
	ctx := t.Context()
	store := NewInMemoryStore()
	reg := NewRegistry()
	RegisterEvents(reg, Event[renamed]())

	idx := &nameIndex{names: map[string]string{}, fail: true}
	cp := NewInMemCpStore()
	p := NewProjector(nil, store, reg, idx, WithCheckpointStore(cp))

	_, err := appendEvents(ctx, store, "pool", "p1", 0, &renamed{Name: "a"})
	require.NoError(t, err)

	_, err = p.CatchUp(ctx)
	require.ErrorContains(t, err, "boom")
	last, err := cp.Get()
	require.NoError(t, err)
	require.Zero(t, last)

	idx.fail = false
	n, err := p.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestProjector_HandlerErrorKeepsHandledEvents(t *testing.T) {
	ctx := t.Context()
	store := NewInMemoryStore()
	reg := NewRegistry()
	RegisterEvents(reg, Event[renamed]())

	idx := &nameIndex{names: map[string]string{}, failOn: "c"}
	cp := NewInMemCpStore()
	p := NewProjector(nil, store, reg, idx, WithCheckpointStore(cp))

	_, err := appendEvents(ctx, store, "pool", "p1", 0, &renamed{Name: "a"}, &renamed{Name: "b"}, &renamed{Name: "c"})
	require.NoError(t, err)

	n, err := p.CatchUp(ctx)
	require.ErrorContains(t, err, "handle seq=3")
	require.Equal(t, 2, n)
	last, err := cp.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(2), last)

	idx.failOn = ""
	n, err = p.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []uint64{1, 2, 3}, idx.handled)
	require.Equal(t, "c", idx.names["p1"])
}

type projectedCount struct {
	nopESMetrics
	byProjection map[string]int
}

func (m *projectedCount) EventsProjected(projection string, count int) {
	m.byProjection[projection] += count
}

func TestProjector_ReportsProjectedEvents(t *testing.T) {
	ctx := t.Context()
	store := NewInMemoryStore()
	reg := NewRegistry()
	RegisterEvents(reg, Event[renamed]())

	m := &projectedCount{byProjection: map[string]int{}}
	p := NewProjector(nil, store, reg, &nameIndex{names: map[string]string{}}, WithMetrics(m))

	_, err := appendEvents(ctx, store, "pool", "p1", 0, &renamed{Name: "a"}, &renamed{Name: "b"})
	require.NoError(t, err)

	_, err = p.CatchUp(ctx)
	require.NoError(t, err)
	_, err = p.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"names": 2}, m.byProjection)
}
