package world

// Entity is an opaque identity for one thing in a World. Identifiers are
// allocated sequentially and never reused, so a stale Entity can never alias
// a newer one.
type Entity uint64

// Query describes a set-membership filter over attribute keys. An entity
// matches when it carries every Include key and none of the Exclude keys.
type Query struct {
	Include []string
	Exclude []string
}

// attributeColumn holds all values for one attribute key. The order slice
// preserves first-set order per entity; removed entries are skipped lazily on
// iteration rather than compacted immediately.
type attributeColumn struct {
	values map[Entity]any
	order  []Entity
}

// World is a queryable store of entities and typed attributes. It is the
// entity-side collaborator of the scheduler and the render graph: both only
// read attributes and invoke per-entity callbacks, never mutate identity.
//
// World is not safe for concurrent use; the engine drives it from a single
// cooperative frame loop.
type World struct {
	nextID  Entity
	alive   map[Entity]struct{}
	columns map[string]*attributeColumn
}

// NewWorld creates an empty World.
//
// Returns:
//   - *World: the newly created store
func NewWorld() *World {
	return &World{
		nextID:  1,
		alive:   make(map[Entity]struct{}),
		columns: make(map[string]*attributeColumn),
	}
}

// Spawn allocates a new live entity with no attributes.
//
// Returns:
//   - Entity: the new entity identity
func (w *World) Spawn() Entity {
	e := w.nextID
	w.nextID++
	w.alive[e] = struct{}{}
	return e
}

// Despawn removes an entity and all of its attribute values. Despawning an
// unknown entity is a silent no-op.
//
// Parameters:
//   - e: the entity to remove
func (w *World) Despawn(e Entity) {
	if _, ok := w.alive[e]; !ok {
		return
	}
	delete(w.alive, e)
	for _, col := range w.columns {
		delete(col.values, e)
	}
}

// Alive reports whether an entity exists in the store.
//
// Parameters:
//   - e: the entity to check
//
// Returns:
//   - bool: true if the entity is live
func (w *World) Alive(e Entity) bool {
	_, ok := w.alive[e]
	return ok
}

// Set attaches or replaces the attribute value stored under key for an
// entity. Setting an attribute on an unknown entity is a silent no-op.
//
// Parameters:
//   - e: the target entity
//   - key: the attribute key
//   - value: the value to store
func (w *World) Set(e Entity, key string, value any) {
	if _, ok := w.alive[e]; !ok {
		return
	}
	col := w.columns[key]
	if col == nil {
		col = &attributeColumn{values: make(map[Entity]any)}
		w.columns[key] = col
	}
	if _, exists := col.values[e]; !exists {
		col.order = append(col.order, e)
	}
	col.values[e] = value
}

// Remove detaches the attribute stored under key from an entity. Removing an
// attribute that was never set is a silent no-op.
//
// Parameters:
//   - e: the target entity
//   - key: the attribute key
func (w *World) Remove(e Entity, key string) {
	col := w.columns[key]
	if col == nil {
		return
	}
	if _, ok := col.values[e]; !ok {
		return
	}
	delete(col.values, e)
	for i, other := range col.order {
		if other == e {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
}

// Has reports whether an entity currently carries the attribute key.
//
// Parameters:
//   - e: the entity to check
//   - key: the attribute key
//
// Returns:
//   - bool: true if the attribute is present
func (w *World) Has(e Entity, key string) bool {
	col := w.columns[key]
	if col == nil {
		return false
	}
	_, ok := col.values[e]
	return ok
}

// Get retrieves a typed attribute value from an entity. It is a package-level
// function because Go methods cannot introduce type parameters.
//
// Parameters:
//   - w: the store to read from
//   - e: the entity to read
//   - key: the attribute key
//
// Returns:
//   - T: the stored value, or the zero value if absent or of another type
//   - bool: true if the attribute was present with the requested type
func Get[T any](w *World, e Entity, key string) (T, bool) {
	var zero T
	col := w.columns[key]
	if col == nil {
		return zero, false
	}
	v, ok := col.values[e]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Query returns every live entity matching the filter, iterated in the
// insertion order of the first Include key's column. A query with no Include
// keys matches nothing.
//
// Parameters:
//   - q: the include/exclude filter
//
// Returns:
//   - []Entity: the matching entities, in first-column insertion order
func (w *World) Query(q Query) []Entity {
	if len(q.Include) == 0 {
		return nil
	}
	first := w.columns[q.Include[0]]
	if first == nil {
		return nil
	}

	var out []Entity
	kept := first.order[:0]
	for _, e := range first.order {
		if _, present := first.values[e]; !present {
			continue // lazily drop removed entries from the order slice
		}
		kept = append(kept, e)
		if _, live := w.alive[e]; !live {
			continue
		}
		if w.matches(e, q) {
			out = append(out, e)
		}
	}
	first.order = kept
	return out
}

func (w *World) matches(e Entity, q Query) bool {
	for _, key := range q.Include[1:] {
		if !w.Has(e, key) {
			return false
		}
	}
	for _, key := range q.Exclude {
		if w.Has(e, key) {
			return false
		}
	}
	return true
}
