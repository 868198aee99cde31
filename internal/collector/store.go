package collector

import (
	"sort"
	"time"
)

// EntityStore is the authoritative id → entity map for one collection.
// It has a single writer (the poll loop); readers go through published
// counters, so the store itself carries no locking.
type EntityStore struct {
	entities map[string]*Entity
}

// NewEntityStore returns an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{entities: make(map[string]*Entity)}
}

// Get returns the entity for id, or nil when absent.
func (s *EntityStore) Get(id string) *Entity {
	return s.entities[id]
}

// Put inserts or replaces an entity under its ID.
func (s *EntityStore) Put(e *Entity) {
	s.entities[e.ID] = e
}

// Remove deletes the entity for id, reporting whether it was present.
func (s *EntityStore) Remove(id string) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	return true
}

// Len returns the number of tracked entities.
func (s *EntityStore) Len() int {
	return len(s.entities)
}

// All returns the entities sorted by ID so persisted output is stable.
func (s *EntityStore) All() []*Entity {
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OlderThan returns the IDs of entities whose last_seen is strictly
// before cutoff. An entity seen exactly at the cutoff is kept.
func (s *EntityStore) OlderThan(cutoff time.Time) []string {
	var ids []string
	for id, e := range s.entities {
		if e.LastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
