package estests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/core/es"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		repo := newCounterRepo(b)

		c := repo.NewWithID(newAggID())
		require.NoError(t, c.IncBy(4))
		require.NoError(t, c.IncBy(4))
		require.NoError(t, repo.Save(ctx, c, es.WithSnapshot(true)))

		ss, err := b.snapshotter.LoadSnapshot(ctx, c.GetAggType(), c.GetID())
		require.NoError(t, err)
		require.Equal(t, es.Version(2), ss.ObjVersion)
		require.Equal(t, c.GetSeq(), ss.StreamSeq)

		// events after the snapshot are replayed on top of it
		require.NoError(t, c.Inc())
		require.NoError(t, repo.Save(ctx, c))

		fromSnapshot, err := repo.GetByID(ctx, c.GetID(), es.WithSnapshot(true))
		require.NoError(t, err)
		fromEvents, err := repo.GetByID(ctx, c.GetID())
		require.NoError(t, err)

		require.Equal(t, 9, fromSnapshot.Count)
		require.Equal(t, fromEvents.Count, fromSnapshot.Count)
		require.Equal(t, fromEvents.NumIncrements, fromSnapshot.NumIncrements)
		require.Equal(t, fromEvents.NumTotalEvents, fromSnapshot.NumTotalEvents)
		require.Equal(t, fromEvents.GetVersion(), fromSnapshot.GetVersion())
	})
}

func TestSnapshot_MissingFallsBackToEvents(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		repo := newCounterRepo(b)

		c := repo.NewWithID(newAggID())
		require.NoError(t, c.IncBy(2))
		require.NoError(t, repo.Save(ctx, c))

		loaded, err := repo.GetByID(ctx, c.GetID(), es.WithSnapshot(true))
		require.NoError(t, err)
		require.Equal(t, 2, loaded.Count)
	})
}
