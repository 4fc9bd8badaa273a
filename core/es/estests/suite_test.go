package estests

import (
	"path/filepath"
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/adapters/nats"
	"github.com/codewandler/qpool-go/adapters/sql"
	"github.com/codewandler/qpool-go/core/es"
)

type feedStore interface {
	es.EventStore
	es.Feed
}

type backend struct {
	store       feedStore
	snapshotter es.Snapshotter
	// checkpoints returns a checkpoint store that outlives the projector
	// using it.
	checkpoints func(t *testing.T, projection string) es.CpStore
}

type backendFactory struct {
	name string
	new  func(t *testing.T) backend
}

var backends = []backendFactory{
	{
		name: "memory",
		new: func(t *testing.T) backend {
			cps := map[string]*es.InMemCpStore{}
			return backend{
				store:       es.NewInMemoryStore(),
				snapshotter: es.NewInMemorySnapshotter(),
				checkpoints: func(_ *testing.T, projection string) es.CpStore {
					if _, ok := cps[projection]; !ok {
						cps[projection] = es.NewInMemCpStore()
					}
					return cps[projection]
				},
			}
		},
	},
	{
		name: "sqlite",
		new: func(t *testing.T) backend {
			db, err := sql.OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "es.db"))
			require.NoError(t, err)
			store, err := sql.NewEventStore(t.Context(), sql.Config{DB: db, Dialect: sql.SQLite()})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return backend{
				store:       store,
				snapshotter: sql.NewSnapshotter(db, store.Dialect()),
				checkpoints: func(t *testing.T, projection string) es.CpStore {
					cp, err := sql.NewCpStore(db, store.Dialect(), projection)
					require.NoError(t, err)
					return cp
				},
			}
		},
	},
	{
		name: "nats",
		new: func(t *testing.T) backend {
			connect := nats.NewTestContainer(t)
			store, err := nats.NewEventStore(t.Context(), nats.EventStoreConfig{
				Connect:       connect,
				SubjectPrefix: "qpool.es.tenant-1",
				MemoryStorage: true,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			snapshotter, kvStore, err := nats.NewSnapshotter(t.Context(), nats.KvConfig{
				Connect:       connect,
				Bucket:        "snapshots",
				MemoryStorage: true,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = kvStore.Close() })

			return backend{
				store:       store,
				snapshotter: snapshotter,
				checkpoints: func(t *testing.T, projection string) es.CpStore {
					cp, err := nats.NewCpStore(kvStore, projection)
					require.NoError(t, err)
					return cp
				},
			}
		},
	},
}

// eachStore runs fn once per backend. Backends that need a container are
// skipped when none can be started.
func eachStore(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Helper()
	for _, f := range backends {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.new(t))
		})
	}
}

func newAggID() string { return gonanoid.Must() }
