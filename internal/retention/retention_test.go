package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
)

func TestTrim_EvictsOnlyStrictlyOlder(t *testing.T) {
	t.Parallel()

	cutoff := time.Unix(5000, 0)
	store := collector.NewEntityStore()
	store.Put(&collector.Entity{ID: "stale", LastSeen: cutoff.Add(-time.Minute)})
	store.Put(&collector.Entity{ID: "boundary", LastSeen: cutoff})
	store.Put(&collector.Entity{ID: "fresh", LastSeen: cutoff.Add(time.Minute)})

	m := New(zap.NewNop())
	evicted := m.Trim(store, cutoff)

	require.Equal(t, 1, evicted)
	require.Nil(t, store.Get("stale"))
	require.NotNil(t, store.Get("boundary"), "exactly-at-cutoff is retained")
	require.NotNil(t, store.Get("fresh"))
}

func TestTrimFiles_KeepsNewest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	var names []string
	for i := 0; i < 8; i++ {
		name := filepath.Join(dir, "live_events_"+string(rune('a'+i))+".json")
		require.NoError(t, os.WriteFile(name, []byte("{}"), 0o600))
		// Stagger mtimes so ordering is deterministic.
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(name, ts, ts))
		names = append(names, name)
	}

	m := New(zap.NewNop())
	removed := m.TrimFiles(dir, "live_events_*.json", 5)
	require.Equal(t, 3, removed)

	for i, name := range names {
		_, err := os.Stat(name)
		if i < 3 {
			require.True(t, os.IsNotExist(err), "oldest files must be gone: %s", name)
		} else {
			require.NoError(t, err, "newest files must survive: %s", name)
		}
	}
}

func TestTrimFiles_UnderKeepIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "u_"+string(rune('a'+i))+".csv")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
	}

	m := New(zap.NewNop())
	require.Zero(t, m.TrimFiles(dir, "u_*.csv", 5))

	left, err := filepath.Glob(filepath.Join(dir, "u_*.csv"))
	require.NoError(t, err)
	require.Len(t, left, 3)
}
