package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntityStore_PutGetRemove(t *testing.T) {
	t.Parallel()

	s := NewEntityStore()
	require.Zero(t, s.Len())
	require.Nil(t, s.Get("x"))

	s.Put(&Entity{ID: "x", Fields: map[string]string{}})
	require.Equal(t, 1, s.Len())
	require.NotNil(t, s.Get("x"))

	// Re-put under the same ID must not grow the store.
	s.Put(&Entity{ID: "x", Fields: map[string]string{}})
	require.Equal(t, 1, s.Len())

	require.True(t, s.Remove("x"))
	require.False(t, s.Remove("x"))
	require.Zero(t, s.Len())
}

func TestEntityStore_AllSortedByID(t *testing.T) {
	t.Parallel()

	s := NewEntityStore()
	s.Put(&Entity{ID: "b"})
	s.Put(&Entity{ID: "a"})
	s.Put(&Entity{ID: "c"})

	all := s.All()
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].ID)
	require.Equal(t, "b", all[1].ID)
	require.Equal(t, "c", all[2].ID)
}

func TestEntityStore_OlderThanBoundary(t *testing.T) {
	t.Parallel()

	cutoff := time.Unix(1000, 0)
	s := NewEntityStore()
	s.Put(&Entity{ID: "old", LastSeen: cutoff.Add(-time.Second)})
	s.Put(&Entity{ID: "exact", LastSeen: cutoff})
	s.Put(&Entity{ID: "fresh", LastSeen: cutoff.Add(time.Second)})

	require.Equal(t, []string{"old"}, s.OlderThan(cutoff))
}
