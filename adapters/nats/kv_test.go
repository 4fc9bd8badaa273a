package nats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/ports/kv"
)

func TestKvStore(t *testing.T) {
	connect := NewTestContainer(t)
	store, err := NewKvStore(t.Context(), KvConfig{Bucket: "fruits", Connect: connect, MemoryStorage: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	type fruit struct {
		Name  string
		Count int
	}

	_, err = kv.Get[fruit](t.Context(), store, "apple")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, kv.Put(t.Context(), store, "apple", fruit{Name: "apple", Count: 10}))
	v, err := kv.Get[fruit](t.Context(), store, "apple")
	require.NoError(t, err)
	require.Equal(t, fruit{Name: "apple", Count: 10}, v)

	require.NoError(t, store.Delete(t.Context(), "apple"))
	_, err = kv.Get[fruit](t.Context(), store, "apple")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSnapshotter(t *testing.T) {
	connect := NewTestContainer(t)
	snapshotter, store, err := NewSnapshotter(t.Context(), KvConfig{Bucket: "snapshots", Connect: connect, MemoryStorage: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = snapshotter.LoadSnapshot(t.Context(), "question_pool", "p1")
	require.ErrorIs(t, err, es.ErrSnapshotNotFound)

	require.NoError(t, snapshotter.SaveSnapshot(t.Context(), &es.Snapshot{
		SnapshotID: "s1", ObjType: "question_pool", ObjID: "p1", ObjVersion: 3, SchemaVersion: 1, Data: []byte(`{}`),
	}))
	ss, err := snapshotter.LoadSnapshot(t.Context(), "question_pool", "p1")
	require.NoError(t, err)
	require.Equal(t, es.Version(3), ss.ObjVersion)
}
