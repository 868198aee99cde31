// Package retention bounds memory and disk growth: it evicts stale
// entities from the stores and rotates old output files.
package retention

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
)

// Manager applies the retention policies. Deletion failures are
// logged, never fatal.
type Manager struct {
	logger *zap.Logger
}

// New builds a Manager.
func New(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Trim removes entities whose last_seen falls strictly before cutoff
// and returns how many were evicted. An entity seen exactly at the
// cutoff survives.
func (m *Manager) Trim(store *collector.EntityStore, cutoff time.Time) int {
	ids := store.OlderThan(cutoff)
	for _, id := range ids {
		store.Remove(id)
	}
	if len(ids) > 0 {
		m.logger.Info("evicted stale entities",
			zap.Int("count", len(ids)),
			zap.Time("cutoff", cutoff),
		)
	}
	return len(ids)
}

// TrimFiles keeps the `keep` most recently modified files matching
// pattern under dir and deletes the rest.
func (m *Manager) TrimFiles(dir, pattern string, keep int) int {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		m.logger.Warn("file rotation glob failed", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	if len(matches) <= keep {
		return 0
	}

	type fileAge struct {
		path    string
		modTime time.Time
	}
	files := make([]fileAge, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			m.logger.Warn("stat failed during rotation", zap.String("path", path), zap.Error(err))
			continue
		}
		files = append(files, fileAge{path: path, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	removed := 0
	if len(files) <= keep {
		return 0
	}
	for _, f := range files[:len(files)-keep] {
		if err := os.Remove(f.path); err != nil {
			m.logger.Warn("failed to remove old file", zap.String("path", f.path), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("rotated old files",
			zap.String("pattern", pattern),
			zap.Int("removed", removed),
			zap.Int("kept", keep),
		)
	}
	return removed
}
