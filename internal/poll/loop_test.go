package poll

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/backup"
	"github.com/oddsline/collector/internal/collector"
	"github.com/oddsline/collector/internal/database"
	"github.com/oddsline/collector/internal/failure"
	"github.com/oddsline/collector/internal/health"
	"github.com/oddsline/collector/internal/metrics"
	"github.com/oddsline/collector/internal/persist"
	"github.com/oddsline/collector/internal/publisher"
	"github.com/oddsline/collector/internal/retention"
	"github.com/oddsline/collector/internal/status"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeFetcher struct {
	html   string
	err    error
	age    time.Duration
	resets int
	closes int
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func (f *fakeFetcher) Reset()             { f.resets++ }
func (f *fakeFetcher) Age() time.Duration { return f.age }
func (f *fakeFetcher) Close()             { f.closes++ }

type fakeSource struct {
	snapshots map[string]collector.Snapshot
	err       error
	panics    bool
	leagues   []collector.League
}

func (s *fakeSource) Parse(string) (map[string]collector.Snapshot, error) {
	if s.panics {
		panic("corrupt snapshot")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshots, nil
}

func (s *fakeSource) Leagues(string) []collector.League { return s.leagues }

func record(sport, league, t1, t2 string, fields map[string]string) collector.RawRecord {
	if fields == nil {
		fields = map[string]string{}
	}
	return collector.RawRecord{
		Identity: collector.Identity{Sport: sport, Country: "X", League: league, Team1: t1, Team2: t2},
		Fields:   fields,
	}
}

type harness struct {
	loop    *Loop
	fetcher *fakeFetcher
	source  *fakeSource
	clock   *fakeClock
	pub     *publisher.Memory
	state   *status.State
	dataDir string
}

func newHarness(t *testing.T, cfg Config, fetcher *fakeFetcher, source *fakeSource) *harness {
	t.Helper()
	metrics.Init()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()
	dataDir := t.TempDir()

	persister, err := persist.New(dataDir, 10, clock, logger)
	require.NoError(t, err)

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://example.com/"
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RetentionWindow == 0 {
		cfg.RetentionWindow = 48 * time.Hour
	}
	if cfg.KeepFiles == 0 {
		cfg.KeepFiles = 5
	}
	if cfg.Topic == "" {
		cfg.Topic = "odds-changes"
	}

	pub := publisher.NewMemory()
	state := status.NewState("test-run", clock.now)
	loop := New(cfg, Deps{
		Fetcher:   fetcher,
		Source:    source,
		Persister: persister,
		Retention: retention.New(logger),
		Failures:  failure.New(5, 4*time.Hour, logger),
		DB:        database.NoOp{},
		Publisher: pub,
		Backup:    backup.NoOp{},
		Pinger:    health.New("", logger),
		State:     state,
		Clock:     clock,
		Logger:    logger,
	})
	return &harness{loop: loop, fetcher: fetcher, source: source, clock: clock, pub: pub, state: state, dataDir: dataDir}
}

func TestRunCycle_SuccessPersistsAndPublishes(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{snapshots: map[string]collector.Snapshot{
		collector.CollectionLive: {record("Football", "PL", "A", "B", map[string]string{"odd_w1": "2.1"})},
	}}
	h := newHarness(t, Config{}, fetcher, source)

	h.loop.runCycle(context.Background())

	assert.Equal(t, 1, h.loop.Store(collector.CollectionLive).Len())
	assert.FileExists(t, filepath.Join(h.dataDir, "live.json"))
	assert.FileExists(t, filepath.Join(h.dataDir, "live.csv"))

	msgs := h.pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "odds-changes", msgs[0].Topic)
	assert.Contains(t, string(msgs[0].Payload), `"created":1`)

	view := h.state.Snapshot(h.clock.now)
	assert.Equal(t, 1, view.CycleCount)
	assert.Equal(t, ResultSuccess, view.LastResult)
}

func TestRunCycle_QuietCyclePublishesNothing(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{snapshots: map[string]collector.Snapshot{
		collector.CollectionLive: {record("Football", "PL", "A", "B", map[string]string{"odd_w1": "2.1"})},
	}}
	h := newHarness(t, Config{}, fetcher, source)

	h.loop.runCycle(context.Background())
	h.clock.now = h.clock.now.Add(2 * time.Minute)
	h.loop.runCycle(context.Background())

	assert.Len(t, h.pub.Messages(), 1, "unchanged cycle must not publish")
}

func TestRunCycle_FailureThresholdResetsOnce(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("navigation timeout")}
	source := &fakeSource{}
	h := newHarness(t, Config{}, fetcher, source)

	for i := 0; i < 5; i++ {
		h.loop.runCycle(context.Background())
	}
	assert.Equal(t, 0, fetcher.resets, "reset waits for the top of the next cycle")

	h.loop.runCycle(context.Background())
	assert.Equal(t, 1, fetcher.resets)

	for i := 0; i < 3; i++ {
		h.loop.runCycle(context.Background())
	}
	assert.Equal(t, 1, fetcher.resets, "counter cleared at the crossing, no escalation")
}

func TestRunCycle_ScheduledAgeReset(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>", age: 5 * time.Hour}
	source := &fakeSource{snapshots: map[string]collector.Snapshot{}}
	h := newHarness(t, Config{}, fetcher, source)

	h.loop.runCycle(context.Background())
	assert.Equal(t, 0, fetcher.resets)

	h.loop.runCycle(context.Background())
	assert.Equal(t, 1, fetcher.resets)
}

func TestRunCycle_PanicIsContained(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{panics: true}
	h := newHarness(t, Config{}, fetcher, source)

	require.NotPanics(t, func() { h.loop.runCycle(context.Background()) })

	view := h.state.Snapshot(h.clock.now)
	assert.Equal(t, ResultPanic, view.LastResult)
	assert.Equal(t, 1, view.ConsecutiveFailures)
}

func TestRunCycle_RetentionEvictsStaleEntities(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{snapshots: map[string]collector.Snapshot{}}
	h := newHarness(t, Config{RetentionEvery: 2, RetentionWindow: time.Hour}, fetcher, source)

	stale := &collector.Entity{
		ID:       "Football_PL_A_B",
		Identity: collector.Identity{Sport: "Football", League: "PL", Team1: "A", Team2: "B"},
		Fields:   map[string]string{},
		LastSeen: h.clock.now.Add(-2 * time.Hour),
	}
	h.loop.Store(collector.CollectionLive).Put(stale)

	h.loop.runCycle(context.Background())
	assert.Equal(t, 1, h.loop.Store(collector.CollectionLive).Len(), "cycle 1 is not a retention cycle")

	h.loop.runCycle(context.Background())
	assert.Equal(t, 0, h.loop.Store(collector.CollectionLive).Len())
}

func TestRunCycle_RetentionRotatesFinalDumps(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{snapshots: map[string]collector.Snapshot{}}
	h := newHarness(t, Config{RetentionEvery: 1, KeepFiles: 2}, fetcher, source)

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		name := filepath.Join(h.dataDir, fmt.Sprintf("live_final_2025020%d-1200.csv", i+1))
		require.NoError(t, os.WriteFile(name, []byte("match_id\n"), 0o600))
		require.NoError(t, os.Chtimes(name, base.AddDate(0, 0, i), base.AddDate(0, 0, i)))
	}

	h.loop.runCycle(context.Background())

	matches, err := filepath.Glob(filepath.Join(h.dataDir, "live_final_*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Contains(t, matches, filepath.Join(h.dataDir, "live_final_20250203-1200.csv"))
	assert.Contains(t, matches, filepath.Join(h.dataDir, "live_final_20250204-1200.csv"))
}

func TestRunCycle_LeagueCadence(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{
		snapshots: map[string]collector.Snapshot{},
		leagues:   []collector.League{{ID: "Football_PL", Name: "PL", Sport: "Football", Country: "England"}},
	}
	h := newHarness(t, Config{LeaguesEvery: 2}, fetcher, source)

	h.loop.runCycle(context.Background())
	assert.NoFileExists(t, filepath.Join(h.dataDir, "leagues.json"))

	h.loop.runCycle(context.Background())
	assert.FileExists(t, filepath.Join(h.dataDir, "leagues.json"))
	assert.FileExists(t, filepath.Join(h.dataDir, "leagues.csv"))
	assert.Equal(t, 1, h.state.Snapshot(h.clock.now).LeagueCount)
}

func TestRun_ShutdownDumpsFinalState(t *testing.T) {
	fetcher := &fakeFetcher{html: "<html/>"}
	source := &fakeSource{snapshots: map[string]collector.Snapshot{
		collector.CollectionLive: {record("Football", "PL", "A", "B", nil)},
	}}
	h := newHarness(t, Config{}, fetcher, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.loop.Run(ctx))

	matches, err := filepath.Glob(filepath.Join(h.dataDir, "live_final_*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, 1, fetcher.closes)

	entries, err := os.ReadDir(h.dataDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
