package ds

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet_ZeroValue(t *testing.T) {
	var s Set[string]
	require.Zero(t, s.Len())
	require.False(t, s.Contains("a"))
	require.False(t, s.Remove("a"))
	require.True(t, s.Add("a"))
	require.Equal(t, []string{"a"}, s.Values())
}

func TestSet_InsertionOrder(t *testing.T) {
	s := NewSet("c", "a", "b", "a")
	require.Equal(t, 3, s.Len())
	require.Equal(t, []string{"c", "a", "b"}, s.Values())

	require.False(t, s.Add("c"))
	require.True(t, s.Remove("a"))
	require.Equal(t, []string{"c", "b"}, s.Values())

	require.True(t, s.Add("a"))
	require.Equal(t, []string{"c", "b", "a"}, s.Values())
}

func TestSet_ValuesIsCopy(t *testing.T) {
	s := NewSet(1, 2)
	v := s.Values()
	v[0] = 99
	require.Equal(t, []int{1, 2}, s.Values())
}

func TestSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewSet("x", "y"))
	require.NoError(t, err)
	require.JSONEq(t, `["x","y"]`, string(data))

	data, err = json.Marshal(&Set[string]{})
	require.NoError(t, err)
	require.Equal(t, `[]`, string(data))

	var s Set[string]
	require.NoError(t, json.Unmarshal([]byte(`["b","a","b"]`), &s))
	require.Equal(t, []string{"b", "a"}, s.Values())

	type holder struct {
		IDs Set[int] `json:"ids"`
	}
	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"ids":[3,1]}`), &h))
	require.Equal(t, []int{3, 1}, h.IDs.Values())
	out, err := json.Marshal(h)
	require.NoError(t, err)
	require.JSONEq(t, `{"ids":[3,1]}`, string(out))
}
