package collector

import "time"

type changeClass int

const (
	classUnchanged changeClass = iota
	classCreated
	classUpdated
)

// Reconcile merges one snapshot into the store and classifies every
// record as created, updated, or unchanged. Comparison is plain string
// equality per field; fields missing from the incoming record are left
// untouched, so partial records never erase prior data. When two
// records in the same snapshot collide on an ID the later one wins.
// Entities in the store but absent from the snapshot are not touched;
// eviction is retention's job, not reconciliation's.
func Reconcile(store *EntityStore, snapshot Snapshot, now time.Time) ChangeSet {
	classes := make(map[string]changeClass, len(snapshot))
	order := make([]string, 0, len(snapshot))
	var fieldChanges []FieldChange

	for pos, rec := range snapshot {
		id := rec.MatchID(pos)
		prev, seen := classes[id]

		entity := store.Get(id)
		if entity == nil {
			entity = &Entity{
				ID:        id,
				Identity:  rec.Identity,
				Fields:    make(map[string]string, len(rec.Fields)),
				FirstSeen: now,
			}
			for k, v := range rec.Fields {
				entity.Fields[k] = v
			}
			entity.LastSeen = now
			store.Put(entity)
			classes[id] = classCreated
			order = append(order, id)
			continue
		}

		diffs := mergeFields(entity, rec.Fields)
		entity.LastSeen = now

		if !seen {
			order = append(order, id)
			if len(diffs) > 0 {
				classes[id] = classUpdated
				fieldChanges = append(fieldChanges, diffs...)
			} else {
				classes[id] = classUnchanged
			}
			continue
		}

		// Duplicate within the snapshot: keep a created classification,
		// promote unchanged to updated when the later record differs.
		switch prev {
		case classCreated:
		case classUpdated:
			fieldChanges = append(fieldChanges, diffs...)
		case classUnchanged:
			if len(diffs) > 0 {
				classes[id] = classUpdated
				fieldChanges = append(fieldChanges, diffs...)
			}
		}
	}

	cs := ChangeSet{FieldChanges: fieldChanges}
	for _, id := range order {
		switch classes[id] {
		case classCreated:
			cs.Created = append(cs.Created, id)
		case classUpdated:
			cs.Updated = append(cs.Updated, id)
		default:
			cs.Unchanged = append(cs.Unchanged, id)
		}
	}
	return cs
}

func mergeFields(entity *Entity, incoming map[string]string) []FieldChange {
	var diffs []FieldChange
	for field, value := range incoming {
		old, ok := entity.Fields[field]
		if ok && old == value {
			continue
		}
		diffs = append(diffs, FieldChange{
			EntityID: entity.ID,
			Label:    entity.Label(),
			Field:    field,
			Old:      old,
			New:      value,
		})
		entity.Fields[field] = value
	}
	return diffs
}
