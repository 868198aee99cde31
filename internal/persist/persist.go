// Package persist writes the collector's durable views: per-collection
// CSV arrival logs, JSON full-state documents, periodic timestamped
// snapshots, and the plain-text change log. Every write is best-effort;
// an I/O failure is logged and the cycle carries on.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
	"github.com/oddsline/collector/internal/metrics"
)

const stampLayout = "20060102-1504"

// Manager owns the data directory layout.
type Manager struct {
	dataDir       string
	snapshotEvery int
	clock         collector.Clock
	logger        *zap.Logger
	headers       map[string][]string
}

// New creates the data directory if needed and returns a Manager.
// snapshotEvery <= 0 falls back to 10.
func New(dataDir string, snapshotEvery int, clock collector.Clock, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	if snapshotEvery <= 0 {
		snapshotEvery = 10
	}
	return &Manager{
		dataDir:       dataDir,
		snapshotEvery: snapshotEvery,
		clock:         clock,
		logger:        logger,
		headers:       make(map[string][]string),
	}, nil
}

// Persist records one cycle's outcome for a collection. Full-state and
// snapshot writes are skipped when nothing was created or updated, to
// bound I/O on quiet cycles. Only created entities reach the CSV; it
// is an arrivals log, not a history. The returned path names the
// timestamped snapshot written this cycle, or "" when there was none.
func (m *Manager) Persist(collection string, cs collector.ChangeSet, store *collector.EntityStore, cycle int) string {
	if cs.Empty() {
		return ""
	}

	snapshotPath := ""
	m.writeJSON(collection+".json", store.All())
	if cycle > 0 && cycle%m.snapshotEvery == 0 {
		stamp := m.clock.Now().Format(stampLayout)
		name := fmt.Sprintf("%s_%s.json", collection, stamp)
		m.writeJSON(name, store.All())
		snapshotPath = filepath.Join(m.dataDir, name)
	}

	if len(cs.Created) > 0 {
		created := make([]*collector.Entity, 0, len(cs.Created))
		for _, id := range cs.Created {
			if e := store.Get(id); e != nil {
				created = append(created, e)
			}
		}
		m.appendCSV(collection+".csv", created)
	}

	if len(cs.FieldChanges) > 0 {
		m.appendChangeLog(collection, cs.FieldChanges)
	}
	return snapshotPath
}

// PersistLeagues rewrites the league catalog in both formats.
func (m *Manager) PersistLeagues(leagues []collector.League) {
	if len(leagues) == 0 {
		return
	}
	m.writeJSON("leagues.json", leagues)
	m.writeLeaguesCSV("leagues.csv", leagues)
}

// Final dumps the complete store under timestamped final names. Called
// once during graceful shutdown.
func (m *Manager) Final(collection string, store *collector.EntityStore) {
	stamp := m.clock.Now().Format(stampLayout)
	m.writeJSON(fmt.Sprintf("%s_final_%s.json", collection, stamp), store.All())
	m.appendCSV(fmt.Sprintf("%s_final_%s.csv", collection, stamp), store.All())
}

// DataDir returns the root of the persisted layout.
func (m *Manager) DataDir() string {
	return m.dataDir
}

func (m *Manager) writeJSON(name string, payload any) {
	path := filepath.Join(m.dataDir, name)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		m.fail("marshal "+name, err)
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		m.fail("write "+name, err)
	}
}

func (m *Manager) appendChangeLog(collection string, changes []collector.FieldChange) {
	path := filepath.Join(m.dataDir, "odds_changes.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		m.fail("open change log", err)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			m.logger.Warn("close change log", zap.Error(cerr))
		}
	}()

	stamp := m.clock.Now().Format(time.DateTime)
	for _, ch := range changes {
		old := ch.Old
		if old == "" {
			old = "N/A"
		}
		line := fmt.Sprintf("%s %s %s: %s %s -> %s\n", stamp, collection, ch.Label, ch.Field, old, ch.New)
		if _, err := f.WriteString(line); err != nil {
			m.fail("append change log", err)
			return
		}
	}
}

func (m *Manager) fail(op string, err error) {
	metrics.ObservePersistFailure()
	m.logger.Error("persistence write failed", zap.String("op", op), zap.Error(err))
}
