package sql

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/core/es"
)

type testDB struct {
	name  string
	store *EventStore
	// fresh reports whether the database starts empty
	fresh bool
}

func newSQLiteStore(t *testing.T, path string) *EventStore {
	t.Helper()
	db, err := OpenSQLite(t.Context(), path)
	require.NoError(t, err)
	store, err := NewEventStore(t.Context(), Config{DB: db, Dialect: SQLite()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func eachDB(t *testing.T, fn func(t *testing.T, db testDB)) {
	t.Run("sqlite", func(t *testing.T) {
		store := newSQLiteStore(t, filepath.Join(t.TempDir(), "es.db"))
		fn(t, testDB{name: "sqlite", store: store, fresh: true})
	})
	t.Run("mysql", func(t *testing.T) {
		dsn := os.Getenv("MYSQL_DSN")
		if dsn == "" {
			t.Skip("MYSQL_DSN not set")
		}
		db, err := OpenMySQL(t.Context(), dsn)
		require.NoError(t, err)
		store, err := NewEventStore(t.Context(), Config{DB: db, Dialect: MySQL()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		fn(t, testDB{name: "mysql", store: store})
	})
}

func envelopes(aggID string, after es.Version, n int) []es.Envelope {
	out := make([]es.Envelope, 0, n)
	for i := range n {
		out = append(out, es.Envelope{
			ID:            gonanoid.Must(),
			AggregateType: "test",
			AggregateID:   aggID,
			Version:       after + es.Version(i+1),
			Type:          "test.happened",
			SchemaVersion: 2,
			OccurredAt:    time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
			Data:          []byte(`{"n":1}`),
		})
	}
	return out
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	eachDB(t, func(t *testing.T, db testDB) {
		ctx := t.Context()
		aggID := gonanoid.Must()

		loaded, err := db.store.Load(ctx, "test", aggID)
		require.NoError(t, err)
		require.Empty(t, loaded)

		res, err := db.store.Append(ctx, "test", aggID, 0, envelopes(aggID, 0, 3))
		require.NoError(t, err)
		require.NotZero(t, res.LastSeq)

		loaded, err = db.store.Load(ctx, "test", aggID)
		require.NoError(t, err)
		require.Len(t, loaded, 3)
		for i, env := range loaded {
			require.Equal(t, es.Version(i+1), env.Version)
			require.Equal(t, 2, env.SchemaVersion)
			require.Equal(t, "test.happened", env.Type)
			require.JSONEq(t, `{"n":1}`, string(env.Data))
			require.True(t, env.OccurredAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)))
		}
		require.Equal(t, res.LastSeq, loaded[2].Seq)
		require.Less(t, loaded[0].Seq, loaded[1].Seq)

		loaded, err = db.store.Load(ctx, "test", aggID, es.WithStartAtVersion(3))
		require.NoError(t, err)
		require.Len(t, loaded, 1)
	})
}

func TestEventStore_Conflict(t *testing.T) {
	eachDB(t, func(t *testing.T, db testDB) {
		ctx := t.Context()
		aggID := gonanoid.Must()

		_, err := db.store.Append(ctx, "test", aggID, 0, envelopes(aggID, 0, 2))
		require.NoError(t, err)

		_, err = db.store.Append(ctx, "test", aggID, 0, envelopes(aggID, 0, 1))
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		_, err = db.store.Append(ctx, "test", aggID, 5, envelopes(aggID, 5, 1))
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		_, err = db.store.Append(ctx, "test", aggID, 2, envelopes(aggID, 2, 1))
		require.NoError(t, err)

		loaded, err := db.store.Load(ctx, "test", aggID)
		require.NoError(t, err)
		require.Len(t, loaded, 3)
	})
}

func TestEventStore_FailedAppendWritesNothing(t *testing.T) {
	eachDB(t, func(t *testing.T, db testDB) {
		ctx := t.Context()
		aggID := gonanoid.Must()

		first := envelopes(aggID, 0, 1)
		_, err := db.store.Append(ctx, "test", aggID, 0, first)
		require.NoError(t, err)

		// the second event reuses an envelope id and violates uniqueness
		batch := envelopes(aggID, 1, 2)
		batch[1].ID = first[0].ID
		_, err = db.store.Append(ctx, "test", aggID, 1, batch)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		loaded, err := db.store.Load(ctx, "test", aggID)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
	})
}

func TestEventStore_ReadAll(t *testing.T) {
	eachDB(t, func(t *testing.T, db testDB) {
		if !db.fresh {
			t.Skip("needs an empty database")
		}
		ctx := t.Context()

		_, err := db.store.Append(ctx, "test", "a", 0, envelopes("a", 0, 2))
		require.NoError(t, err)
		_, err = db.store.Append(ctx, "test", "b", 0, envelopes("b", 0, 1))
		require.NoError(t, err)

		all, err := db.store.ReadAll(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, []string{"a", "a", "b"}, []string{all[0].AggregateID, all[1].AggregateID, all[2].AggregateID})

		page, err := db.store.ReadAll(ctx, all[0].Seq, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, all[1].Seq, page[0].Seq)

		rest, err := db.store.ReadAll(ctx, all[2].Seq, 10)
		require.NoError(t, err)
		require.Empty(t, rest)
	})
}

func TestEventStore_RacingWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	writers := []*EventStore{newSQLiteStore(t, path), newSQLiteStore(t, path), newSQLiteStore(t, path)}

	_, err := writers[0].Append(t.Context(), "test", "r", 0, envelopes("r", 0, 1))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(writers)*4)
	)
	for i := range errs {
		w := writers[i%len(writers)]
		wg.Go(func() {
			_, errs[i] = w.Append(t.Context(), "test", "r", 1, envelopes("r", 1, 2))
		})
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)
	}
	require.Equal(t, 1, ok)

	loaded, err := writers[1].Load(t.Context(), "test", "r")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
}

func TestSQLiteDialect_IsConflict(t *testing.T) {
	store := newSQLiteStore(t, "")
	_, err := store.DB().ExecContext(t.Context(), `INSERT INTO es_checkpoints (name, last_seq) VALUES ('x', 1)`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(t.Context(), `INSERT INTO es_checkpoints (name, last_seq) VALUES ('x', 2)`)
	require.Error(t, err)
	require.True(t, SQLite().IsConflict(err))
	require.False(t, SQLite().IsConflict(os.ErrNotExist))
	require.False(t, MySQL().IsConflict(err))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("sqlite")
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name())
	d, err = DialectFor("mysql")
	require.NoError(t, err)
	require.Equal(t, "mysql", d.Name())
	_, err = DialectFor("oracle")
	require.Error(t, err)
}
