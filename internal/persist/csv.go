package persist

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
)

// Columns that precede the mutable fields in every CSV.
var identityColumns = []string{"match_id", "sport", "country", "league", "team1", "team2", "first_seen", "last_seen"}

// appendCSV appends entities as rows. The header is fixed when the
// file is first created: identity columns plus the sorted union of the
// batch's field names. Later appends keep the existing header; fields
// unknown to it are dropped from the row (they still live in the JSON
// views and the change log).
func (m *Manager) appendCSV(name string, entities []*collector.Entity) {
	if len(entities) == 0 {
		return
	}
	path := filepath.Join(m.dataDir, name)

	header, isNew, err := m.resolveHeader(path, entities)
	if err != nil {
		m.fail("csv header "+name, err)
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		m.fail("open "+name, err)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			m.logger.Warn("close csv", zap.String("file", name), zap.Error(cerr))
		}
	}()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			m.fail("write csv header "+name, err)
			return
		}
	}
	for _, e := range entities {
		if err := w.Write(entityRow(header, e)); err != nil {
			m.fail("append "+name, err)
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		m.fail("flush "+name, err)
	}
}

// resolveHeader returns the column order for path, reading it back
// from an existing file so a restart never rewrites or duplicates the
// header row.
func (m *Manager) resolveHeader(path string, entities []*collector.Entity) ([]string, bool, error) {
	if header, ok := m.headers[path]; ok {
		return header, false, nil
	}

	if f, err := os.Open(path); err == nil {
		defer f.Close() //nolint:errcheck
		header, rerr := csv.NewReader(f).Read()
		if rerr == nil && len(header) > 0 {
			m.headers[path] = header
			return header, false, nil
		}
		// Unreadable or empty leftover from a partial write: start over.
		if err := os.Truncate(path, 0); err != nil {
			return nil, false, fmt.Errorf("truncate partial csv: %w", err)
		}
	}

	header := append([]string(nil), identityColumns...)
	seen := make(map[string]bool)
	for _, e := range entities {
		for k := range e.Fields {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header[len(identityColumns):])
	m.headers[path] = header
	return header, true, nil
}

func entityRow(header []string, e *collector.Entity) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case "match_id":
			row[i] = e.ID
		case "sport":
			row[i] = e.Identity.Sport
		case "country":
			row[i] = e.Identity.Country
		case "league":
			row[i] = e.Identity.League
		case "team1":
			row[i] = e.Identity.Team1
		case "team2":
			row[i] = e.Identity.Team2
		case "first_seen":
			row[i] = e.FirstSeen.Format(time.DateTime)
		case "last_seen":
			row[i] = e.LastSeen.Format(time.DateTime)
		default:
			row[i] = e.Fields[col]
		}
	}
	return row
}

func (m *Manager) writeLeaguesCSV(name string, leagues []collector.League) {
	path := filepath.Join(m.dataDir, name)
	f, err := os.Create(path)
	if err != nil {
		m.fail("create "+name, err)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			m.logger.Warn("close csv", zap.String("file", name), zap.Error(cerr))
		}
	}()

	w := csv.NewWriter(f)
	records := [][]string{{"league_id", "name", "url", "sport", "country", "is_top_event"}}
	for _, l := range leagues {
		records = append(records, []string{l.ID, l.Name, l.URL, l.Sport, l.Country, fmt.Sprintf("%t", l.Top)})
	}
	if err := w.WriteAll(records); err != nil {
		m.fail("write "+name, err)
	}
}
