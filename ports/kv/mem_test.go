package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	type pool struct {
		Name      string
		Questions int
	}
	s := NewMemStore()

	_, err := Get[pool](t.Context(), s, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Put(t.Context(), s, "p1", pool{Name: "Math", Questions: 3}))
	require.NoError(t, Put(t.Context(), s, "p2", pool{Name: "Art"}))

	loaded, err := Get[pool](t.Context(), s, "p1")
	require.NoError(t, err)
	require.Equal(t, pool{Name: "Math", Questions: 3}, loaded)

	require.NoError(t, s.Delete(t.Context(), "p1"))
	_, err = Get[pool](t.Context(), s, "p1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, s.Len())
}

func TestMemStore_CopiesData(t *testing.T) {
	s := NewMemStore()
	data := []byte("abc")
	require.NoError(t, s.Put(t.Context(), "k", data))
	data[0] = 'x'

	got, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestKey(t *testing.T) {
	require.Equal(t, "snapshot.question_pool.abc", Key("snapshot", "question_pool", "abc"))
}
