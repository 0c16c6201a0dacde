package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpawnGetSet(t *testing.T) {
	w := NewWorld()

	e := w.Spawn()
	assert.True(t, w.Alive(e))

	w.Set(e, "health", 42)
	v, ok := Get[int](w, e, "health")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	// Wrong type and missing key both miss.
	_, ok = Get[string](w, e, "health")
	assert.False(t, ok)
	_, ok = Get[int](w, e, "mana")
	assert.False(t, ok)
}

func TestQueryIncludeExclude(t *testing.T) {
	w := NewWorld()

	a := w.Spawn()
	b := w.Spawn()
	c := w.Spawn()
	w.Set(a, "pos", 1)
	w.Set(b, "pos", 2)
	w.Set(b, "frozen", true)
	w.Set(c, "pos", 3)
	w.Set(c, "vel", 4)

	assert.Equal(t, []Entity{a, b, c}, w.Query(Query{Include: []string{"pos"}}))
	assert.Equal(t, []Entity{c}, w.Query(Query{Include: []string{"pos", "vel"}}))
	assert.Equal(t, []Entity{a, c}, w.Query(Query{Include: []string{"pos"}, Exclude: []string{"frozen"}}))
	assert.Nil(t, w.Query(Query{}))
	assert.Nil(t, w.Query(Query{Include: []string{"missing"}}))
}

func TestQueryInsertionOrder(t *testing.T) {
	w := NewWorld()

	// Order follows when the attribute was first set, not entity identity.
	a := w.Spawn()
	b := w.Spawn()
	w.Set(b, "tag", 0)
	w.Set(a, "tag", 0)
	w.Set(b, "tag", 1) // re-set must not reorder

	assert.Equal(t, []Entity{b, a}, w.Query(Query{Include: []string{"tag"}}))
}

func TestDespawnDropsFromQueries(t *testing.T) {
	w := NewWorld()

	a := w.Spawn()
	b := w.Spawn()
	w.Set(a, "tag", 0)
	w.Set(b, "tag", 0)

	w.Despawn(a)
	assert.False(t, w.Alive(a))
	assert.Equal(t, []Entity{b}, w.Query(Query{Include: []string{"tag"}}))

	_, ok := Get[int](w, a, "tag")
	assert.False(t, ok)
}

func TestRemoveThenReSet(t *testing.T) {
	w := NewWorld()

	a := w.Spawn()
	b := w.Spawn()
	w.Set(a, "tag", 0)
	w.Set(b, "tag", 0)

	w.Remove(a, "tag")
	assert.False(t, w.Has(a, "tag"))
	assert.Equal(t, []Entity{b}, w.Query(Query{Include: []string{"tag"}}))

	// Re-adding appends at the end exactly once.
	w.Set(a, "tag", 1)
	assert.Equal(t, []Entity{b, a}, w.Query(Query{Include: []string{"tag"}}))
}

func TestSetOnUnknownEntityIsNoOp(t *testing.T) {
	w := NewWorld()
	w.Set(Entity(999), "tag", 0)
	assert.Nil(t, w.Query(Query{Include: []string{"tag"}}))
}
