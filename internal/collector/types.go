package collector

import (
	"fmt"
	"time"
)

// Collection names tracked by the collector.
const (
	CollectionLive     = "live"
	CollectionUpcoming = "upcoming"
)

// Identity holds the fields that pin a match to a stable ID. They are
// set when the entity is first observed and never overwritten by merge.
type Identity struct {
	Sport   string `json:"sport"`
	Country string `json:"country"`
	League  string `json:"league"`
	Team1   string `json:"team1,omitempty"`
	Team2   string `json:"team2,omitempty"`
}

// RawRecord is one match as extracted from a page: identity plus a flat
// field → value mapping (score, status, odds markets, start time).
type RawRecord struct {
	Identity Identity
	Fields   map[string]string
}

// MatchID derives the stable entity ID from the identity fields. When
// team names are missing it falls back to the record's position in the
// snapshot, which is not guaranteed stable across snapshots.
func (r RawRecord) MatchID(pos int) string {
	if r.Identity.Team1 != "" && r.Identity.Team2 != "" {
		return fmt.Sprintf("%s_%s_%s_%s", r.Identity.Sport, r.Identity.League, r.Identity.Team1, r.Identity.Team2)
	}
	return fmt.Sprintf("%s_%s_%d", r.Identity.Sport, r.Identity.League, pos)
}

// Snapshot is the ordered result of one fetch+parse cycle for a single
// collection.
type Snapshot []RawRecord

// Entity is the long-lived state of one match.
type Entity struct {
	ID        string            `json:"match_id"`
	Identity  Identity          `json:"identity"`
	Fields    map[string]string `json:"fields"`
	FirstSeen time.Time         `json:"first_seen"`
	LastSeen  time.Time         `json:"last_seen"`
}

// Label returns a human-readable handle for log and change-log lines.
func (e *Entity) Label() string {
	if e.Identity.Team1 != "" || e.Identity.Team2 != "" {
		return e.Identity.Team1 + " vs " + e.Identity.Team2
	}
	return e.ID
}

// FieldChange records one mutable field transition, including the
// absent→present case where Old is empty.
type FieldChange struct {
	EntityID string
	Label    string
	Field    string
	Old      string
	New      string
}

// ChangeSet classifies a snapshot's records against a store. Every ID
// in the snapshot lands in exactly one of the three groups; IDs in the
// store but absent from the snapshot appear in none of them.
type ChangeSet struct {
	Created      []string
	Updated      []string
	Unchanged    []string
	FieldChanges []FieldChange
}

// Empty reports whether the snapshot produced no creations or updates.
func (c ChangeSet) Empty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0
}

// League is one entry of the league catalog scraped from the page.
type League struct {
	ID      string `json:"league_id"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Sport   string `json:"sport"`
	Country string `json:"country"`
	Top     bool   `json:"is_top_event,omitempty"`
}
