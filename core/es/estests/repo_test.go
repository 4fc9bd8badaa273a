package estests

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/core/es/estests/domain"
)

func newCounterRepo(b backend, opts ...es.RepositoryOption) es.TypedRepository[*domain.Counter] {
	opts = append([]es.RepositoryOption{es.WithSnapshotter(b.snapshotter)}, opts...)
	return es.NewTypedRepository[*domain.Counter](slog.Default(), b.store, es.NewRegistry(), opts...)
}

func TestRepository_SaveAndLoad(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		repo := newCounterRepo(b)

		c := repo.NewWithID(newAggID())
		require.NoError(t, c.Inc())
		require.NoError(t, c.IncBy(3))
		require.NoError(t, repo.Save(ctx, c))
		require.Equal(t, es.Version(2), c.GetVersion())
		require.False(t, c.IsDirty())

		require.NoError(t, c.Reset())
		require.NoError(t, c.IncBy(7))
		require.NoError(t, repo.Save(ctx, c))
		require.Equal(t, es.Version(4), c.GetVersion())

		loaded, err := repo.GetByID(ctx, c.GetID())
		require.NoError(t, err)
		require.Equal(t, 7, loaded.Count)
		require.Equal(t, 3, loaded.NumIncrements)
		require.Equal(t, 1, loaded.NumResets)
		require.Equal(t, 4, loaded.NumTotalEvents)
		require.Equal(t, c.GetVersion(), loaded.GetVersion())
		require.Equal(t, c.GetSeq(), loaded.GetSeq())
	})
}

func TestRepository_NotFound(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		_, err := newCounterRepo(b).GetByID(t.Context(), newAggID())
		require.ErrorIs(t, err, es.ErrAggregateNotFound)
	})
}

func TestRepository_ValidationKeepsStoreUntouched(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		repo := newCounterRepo(b)

		c := repo.NewWithID(newAggID())
		require.NoError(t, c.IncBy(domain.MaxCount))
		require.ErrorIs(t, c.Inc(), es.ErrValidationFailed)
		require.Len(t, c.Uncommitted(), 1)
		require.NoError(t, repo.Save(ctx, c))

		stored, err := b.store.Load(ctx, c.GetAggType(), c.GetID())
		require.NoError(t, err)
		require.Len(t, stored, 1)
	})
}

func TestRepository_Conflict(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		repo := newCounterRepo(b)

		c := repo.NewWithID(newAggID())
		require.NoError(t, c.Inc())
		require.NoError(t, repo.Save(ctx, c))

		first, err := repo.GetByID(ctx, c.GetID())
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, c.GetID())
		require.NoError(t, err)

		require.NoError(t, first.IncBy(2))
		require.NoError(t, repo.Save(ctx, first))

		require.NoError(t, second.IncBy(5))
		err = repo.Save(ctx, second)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)
		require.Equal(t, es.Version(1), second.GetVersion())

		reloaded, err := repo.GetByID(ctx, c.GetID())
		require.NoError(t, err)
		require.Equal(t, 3, reloaded.Count)
		require.Equal(t, es.Version(2), reloaded.GetVersion())
	})
}

func rawIncremented(aggID string, version es.Version, schemaVersion int, body any) es.Envelope {
	data, _ := json.Marshal(body)
	return es.Envelope{
		ID:            newAggID(),
		Type:          "counter.incremented",
		SchemaVersion: schemaVersion,
		AggregateType: "counter",
		AggregateID:   aggID,
		Version:       version,
		OccurredAt:    time.Now(),
		Data:          data,
	}
}

func TestRepository_UpcastsOldSchemaVersion(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		aggID := newAggID()

		_, err := b.store.Append(ctx, "counter", aggID, 0, []es.Envelope{
			rawIncremented(aggID, 1, 1, map[string]any{"inc": 5}),
			rawIncremented(aggID, 2, 2, map[string]any{"by": 2}),
		})
		require.NoError(t, err)

		c, err := newCounterRepo(b).GetByID(ctx, aggID)
		require.NoError(t, err)
		require.Equal(t, 7, c.Count)
		require.Equal(t, 2, c.NumIncrements)
	})
}

func TestRepository_FutureSchemaVersion(t *testing.T) {
	eachStore(t, func(t *testing.T, b backend) {
		ctx := t.Context()
		aggID := newAggID()

		_, err := b.store.Append(ctx, "counter", aggID, 0, []es.Envelope{
			rawIncremented(aggID, 1, 3, map[string]any{"by": 1}),
		})
		require.NoError(t, err)

		_, err = newCounterRepo(b).GetByID(ctx, aggID)
		require.ErrorIs(t, err, es.ErrUnsupportedEventVersion)
	})
}
