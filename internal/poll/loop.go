// Package poll drives the collection cycle: fetch, parse, reconcile,
// persist, publish, and the periodic maintenance work.
package poll

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/backup"
	"github.com/oddsline/collector/internal/collector"
	"github.com/oddsline/collector/internal/database"
	"github.com/oddsline/collector/internal/failure"
	"github.com/oddsline/collector/internal/health"
	"github.com/oddsline/collector/internal/metrics"
	"github.com/oddsline/collector/internal/persist"
	"github.com/oddsline/collector/internal/retention"
	"github.com/oddsline/collector/internal/status"
)

// Cycle results as reported to metrics and status.
const (
	ResultSuccess      = "success"
	ResultFetchFailure = "fetch_failure"
	ResultParseFailure = "parse_failure"
	ResultPanic        = "panic"
)

// Config sets the loop cadences. Every *Every value is a cycle count;
// zero disables that maintenance task.
type Config struct {
	RunID           string
	BaseURL         string
	Interval        time.Duration
	RetentionWindow time.Duration
	KeepFiles       int
	LeaguesEvery    int
	RetentionEvery  int
	PingEvery       int
	GCEvery         int
	Topic           string
}

// Deps are the loop's collaborators. All of them must be non-nil; the
// no-op providers stand in for disabled integrations.
type Deps struct {
	Fetcher   collector.Fetcher
	Source    collector.Source
	Persister *persist.Manager
	Retention *retention.Manager
	Failures  *failure.Controller
	DB        database.Provider
	Publisher collector.Publisher
	Backup    backup.Provider
	Pinger    *health.Pinger
	State     *status.State
	Clock     collector.Clock
	Logger    *zap.Logger
}

// Loop is the single-writer poll loop. All store mutation happens on
// the loop goroutine; the HTTP surface only reads the status state.
type Loop struct {
	cfg  Config
	deps Deps

	stores map[string]*collector.EntityStore
	cycle  int

	pendingReset  bool
	pendingReason failure.ResetReason
}

// New builds a Loop with empty stores.
func New(cfg Config, deps Deps) *Loop {
	return &Loop{
		cfg:  cfg,
		deps: deps,
		stores: map[string]*collector.EntityStore{
			collector.CollectionLive:     collector.NewEntityStore(),
			collector.CollectionUpcoming: collector.NewEntityStore(),
		},
	}
}

// Store exposes a collection's store for tests and final dumps.
func (l *Loop) Store(collection string) *collector.EntityStore {
	return l.stores[collection]
}

// Run executes cycles until ctx is canceled. The first cycle runs
// immediately; afterwards one cycle starts per interval tick. On
// shutdown the full stores are dumped under final names.
func (l *Loop) Run(ctx context.Context) error {
	l.deps.Logger.Info("poll loop starting",
		zap.String("url", l.cfg.BaseURL),
		zap.Duration("interval", l.cfg.Interval),
	)

	l.runCycle(ctx)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

// runCycle executes exactly one cycle. A panic anywhere inside the
// cycle is contained here and counted as a failure, so a poisoned
// snapshot cannot take the loop down.
func (l *Loop) runCycle(ctx context.Context) {
	l.cycle++
	start := l.deps.Clock.Now()

	l.honorPendingReset()

	result := l.collectOnce(ctx)

	switch result {
	case ResultSuccess:
		l.deps.Failures.RecordSuccess()
	default:
		if l.deps.Failures.RecordFailure() {
			l.scheduleReset(failure.ResetFailures)
		}
	}

	l.maintain(ctx)

	duration := l.deps.Clock.Now().Sub(start)
	metrics.ObserveCycle(result, duration)
	l.deps.State.RecordCycle(result, l.deps.Clock.Now(), l.deps.Failures.ConsecutiveFailures())
	l.deps.Logger.Info("cycle finished",
		zap.Int("cycle", l.cycle),
		zap.String("result", result),
		zap.Duration("duration", duration),
	)
}

func (l *Loop) collectOnce(ctx context.Context) (result string) {
	defer func() {
		if r := recover(); r != nil {
			l.deps.Logger.Error("cycle panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result = ResultPanic
		}
	}()

	html, err := l.deps.Fetcher.Fetch(ctx, l.cfg.BaseURL)
	if err != nil {
		l.deps.Logger.Warn("fetch failed", zap.Error(err))
		return ResultFetchFailure
	}

	snapshots, err := l.deps.Source.Parse(html)
	if err != nil {
		l.deps.Logger.Warn("parse failed", zap.Error(err))
		return ResultParseFailure
	}

	now := l.deps.Clock.Now()
	for _, collection := range []string{collector.CollectionLive, collector.CollectionUpcoming} {
		l.reconcileCollection(ctx, collection, snapshots[collection], now)
	}

	if l.due(l.cfg.LeaguesEvery) {
		leagues := l.deps.Source.Leagues(html)
		l.deps.Persister.PersistLeagues(leagues)
		l.deps.State.SetLeagueCount(len(leagues))
	}

	return ResultSuccess
}

func (l *Loop) reconcileCollection(ctx context.Context, collection string, snapshot collector.Snapshot, now time.Time) {
	store := l.stores[collection]
	cs := collector.Reconcile(store, snapshot, now)

	metrics.ObserveChanges(collection, len(cs.Created), len(cs.Updated), len(cs.Unchanged))
	metrics.SetEntityCount(collection, store.Len())
	l.deps.State.SetEntityCount(collection, store.Len())

	snapshotPath := l.deps.Persister.Persist(collection, cs, store, l.cycle)
	if snapshotPath != "" {
		if err := l.deps.Backup.Upload(ctx, snapshotPath); err != nil {
			l.deps.Logger.Warn("snapshot backup failed", zap.Error(err))
		}
	}

	if cs.Empty() {
		return
	}

	l.publishSummary(ctx, collection, cs, now)
	l.mirrorToDB(ctx, collection, cs, store)
}

// changeSummary is the payload published after a changed cycle.
type changeSummary struct {
	RunID        string    `json:"run_id"`
	Collection   string    `json:"collection"`
	Cycle        int       `json:"cycle"`
	Created      int       `json:"created"`
	Updated      int       `json:"updated"`
	Unchanged    int       `json:"unchanged"`
	FieldChanges int       `json:"field_changes"`
	Entities     int       `json:"entities"`
	At           time.Time `json:"at"`
}

func (l *Loop) publishSummary(ctx context.Context, collection string, cs collector.ChangeSet, now time.Time) {
	payload, err := json.Marshal(changeSummary{
		RunID:        l.cfg.RunID,
		Collection:   collection,
		Cycle:        l.cycle,
		Created:      len(cs.Created),
		Updated:      len(cs.Updated),
		Unchanged:    len(cs.Unchanged),
		FieldChanges: len(cs.FieldChanges),
		Entities:     l.stores[collection].Len(),
		At:           now,
	})
	if err != nil {
		l.deps.Logger.Warn("marshal change summary", zap.Error(err))
		return
	}
	if _, err := l.deps.Publisher.Publish(ctx, l.cfg.Topic, payload); err != nil {
		l.deps.Logger.Warn("publish change summary", zap.Error(err))
	}
}

func (l *Loop) mirrorToDB(ctx context.Context, collection string, cs collector.ChangeSet, store *collector.EntityStore) {
	if len(cs.Created) > 0 {
		created := make([]collector.Entity, 0, len(cs.Created))
		for _, id := range cs.Created {
			if e := store.Get(id); e != nil {
				created = append(created, *e)
			}
		}
		if err := l.deps.DB.RecordArrivals(ctx, collection, created); err != nil {
			l.deps.Logger.Warn("db mirror arrivals failed", zap.Error(err))
		}
	}
	if len(cs.FieldChanges) > 0 {
		if err := l.deps.DB.RecordChanges(ctx, collection, cs.FieldChanges); err != nil {
			l.deps.Logger.Warn("db mirror changes failed", zap.Error(err))
		}
	}
}

func (l *Loop) maintain(ctx context.Context) {
	if l.deps.Failures.ShouldScheduledReset(l.deps.Fetcher.Age()) {
		l.scheduleReset(failure.ResetScheduled)
	}

	if l.due(l.cfg.RetentionEvery) {
		cutoff := l.deps.Clock.Now().Add(-l.cfg.RetentionWindow)
		for collection, store := range l.stores {
			evicted := l.deps.Retention.Trim(store, cutoff)
			if evicted > 0 {
				metrics.SetEntityCount(collection, store.Len())
				l.deps.State.SetEntityCount(collection, store.Len())
			}
			l.deps.Retention.TrimFiles(l.deps.Persister.DataDir(), collection+"_*.json", l.cfg.KeepFiles)
			l.deps.Retention.TrimFiles(l.deps.Persister.DataDir(), collection+"_final_*.csv", l.cfg.KeepFiles)
		}
	}

	if l.due(l.cfg.PingEvery) {
		l.deps.Pinger.Ping(ctx)
	}

	if l.due(l.cfg.GCEvery) {
		debug.FreeOSMemory()
	}
}

// scheduleReset marks the fetcher for teardown at the top of the next
// cycle, never mid-flight.
func (l *Loop) scheduleReset(reason failure.ResetReason) {
	if l.pendingReset {
		return
	}
	l.pendingReset = true
	l.pendingReason = reason
	l.deps.Logger.Info("fetcher reset scheduled", zap.String("reason", string(reason)))
}

func (l *Loop) honorPendingReset() {
	if !l.pendingReset {
		return
	}
	l.deps.Fetcher.Reset()
	metrics.ObserveFetcherReset(string(l.pendingReason))
	l.deps.Logger.Info("fetcher reset", zap.String("reason", string(l.pendingReason)))
	l.pendingReset = false
	l.pendingReason = ""
}

func (l *Loop) shutdown() {
	l.deps.Logger.Info("poll loop stopping, dumping final state")
	for collection, store := range l.stores {
		if store.Len() > 0 {
			l.deps.Persister.Final(collection, store)
		}
	}
	l.deps.Fetcher.Close()
}

func (l *Loop) due(every int) bool {
	return every > 0 && l.cycle%every == 0
}
