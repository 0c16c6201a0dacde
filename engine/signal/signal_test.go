package signal

import (
	"testing"

	"github.com/eswaidner/zen/engine/world"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestBeforeAfterOrdering(t *testing.T) {
	g := NewGraph(world.NewWorld())

	var order []string
	record := func(name string) Runner {
		return Funcs{Once: func(*Context) { order = append(order, name) }}
	}

	s := g.NewSignal()
	before := g.SignalBefore(s)
	after := g.SignalAfter(s)

	g.OnSignal(s, record("own"))
	g.OnSignal(before, record("before"))
	g.OnSignal(after, record("after"))

	g.Advance(0.016)
	g.Dispatch(s)

	assert.Equal(t, []string{"before", "own", "after"}, order)

	order = nil
	g.Advance(0.016)
	g.Dispatch(s)
	assert.Equal(t, []string{"before", "own", "after"}, order, "each task runs exactly once per dispatch")
}

func TestBeforeAfterRegistrationOrder(t *testing.T) {
	g := NewGraph(world.NewWorld())

	var order []string
	record := func(name string) Runner {
		return Funcs{Once: func(*Context) { order = append(order, name) }}
	}

	s := g.NewSignal()
	g.OnSignal(g.SignalBefore(s), record("b1"))
	g.OnSignal(g.SignalBefore(s), record("b2"))
	g.OnSignal(g.SignalAfter(s), record("a1"))
	g.OnSignal(g.SignalAfter(s), record("a2"))
	g.OnSignal(s, record("s"))

	g.Dispatch(s)
	assert.Equal(t, []string{"b1", "b2", "s", "a1", "a2"}, order)
}

func TestNestedChaining(t *testing.T) {
	g := NewGraph(world.NewWorld())

	var order []string
	record := func(name string) Runner {
		return Funcs{Once: func(*Context) { order = append(order, name) }}
	}

	s := g.NewSignal()
	before := g.SignalBefore(s)
	beforeBefore := g.SignalBefore(before)

	g.OnSignal(s, record("s"))
	g.OnSignal(before, record("before"))
	g.OnSignal(beforeBefore, record("before-before"))

	g.Dispatch(s)
	assert.Equal(t, []string{"before-before", "before", "s"}, order)
}

func TestFixedTimestepCarry(t *testing.T) {
	g := NewGraph(world.NewWorld())

	fires := 0
	s := g.NewSignal(WithFrequency(10), WithMaxSteps(3))
	g.OnSignal(s, Funcs{Once: func(ctx *Context) {
		fires++
		assert.InDelta(t, 0.1, ctx.FixedDeltaTime, 1e-6)
	}})

	g.Advance(0.35)
	assert.Equal(t, 3, fires)

	// 0.35 - 3*0.1 = 0.05s of carry-over: a further 0.05s tick uncovers
	// exactly one more step.
	fires = 0
	g.Advance(0.05)
	assert.Equal(t, 1, fires)
}

func TestFixedTimestepDiscardsExcessOnClamp(t *testing.T) {
	g := NewGraph(world.NewWorld())

	fires := 0
	s := g.NewSignal(WithFrequency(10), WithMaxSteps(3))
	g.OnSignal(s, Funcs{Once: func(*Context) { fires++ }})

	// A 1.05s stall uncovers 10 whole steps; only maxSteps fire and the
	// whole excess is discarded, keeping the 0.05s fractional carry.
	g.Advance(1.05)
	assert.Equal(t, 3, fires)

	fires = 0
	g.Advance(0.05)
	assert.Equal(t, 1, fires, "fractional carry survives the clamp")

	fires = 0
	g.Advance(0.09)
	assert.Equal(t, 0, fires, "no queued catch-up steps remain")
}

func TestFixedTimestepDefaultMaxSteps(t *testing.T) {
	g := NewGraph(world.NewWorld())

	fires := 0
	s := g.NewSignal(WithFrequency(100))
	g.OnSignal(s, Funcs{Once: func(*Context) { fires++ }})

	g.Advance(1.0)
	assert.Equal(t, 10, fires)
}

func TestCancelledTaskNeverRuns(t *testing.T) {
	g := NewGraph(world.NewWorld())

	runs := 0
	s := g.NewSignal()
	task := g.OnSignal(s, Funcs{Once: func(*Context) { runs++ }})

	g.Dispatch(s)
	assert.Equal(t, 1, runs)

	g.CancelTask(task)
	g.Dispatch(s)
	g.Dispatch(s)
	assert.Equal(t, 1, runs)

	// Cancelling again through the now-stale handle is a silent no-op.
	g.CancelTask(task)
}

func TestCancelDuringTraversal(t *testing.T) {
	g := NewGraph(world.NewWorld())

	s := g.NewSignal()
	var second Task
	secondRuns := 0
	g.OnSignal(s, Funcs{Once: func(*Context) { g.CancelTask(second) }})
	second = g.OnSignal(s, Funcs{Once: func(*Context) { secondRuns++ }})

	g.Dispatch(s)
	assert.Equal(t, 0, secondRuns, "a task cancelled earlier in the same traversal must not run")
}

func TestAfterDelay(t *testing.T) {
	g := NewGraph(world.NewWorld())

	fires := 0
	g.AfterDelay(0.5, Funcs{Once: func(*Context) { fires++ }})

	g.Advance(0.3)
	assert.Equal(t, 0, fires)
	g.Advance(0.3)
	assert.Equal(t, 1, fires, "fires on the first tick the accumulator exceeds the delay")
	g.Advance(1.0)
	assert.Equal(t, 1, fires, "one-shot tasks auto-cancel after firing")
}

func TestAfterDelayCancel(t *testing.T) {
	g := NewGraph(world.NewWorld())

	fires := 0
	task := g.AfterDelay(0.1, Funcs{Once: func(*Context) { fires++ }})
	g.CancelTask(task)
	g.Advance(1.0)
	assert.Equal(t, 0, fires)
}

func TestDeltaTimePerSignal(t *testing.T) {
	g := NewGraph(world.NewWorld())

	a := g.NewSignal()
	b := g.NewSignal()

	var deltaA, deltaB float32
	g.OnSignal(a, Funcs{Once: func(ctx *Context) { deltaA = ctx.DeltaTime }})
	g.OnSignal(b, Funcs{Once: func(ctx *Context) { deltaB = ctx.DeltaTime }})

	g.Advance(0.1)
	g.Dispatch(a)
	g.Advance(0.1)
	g.Dispatch(a)
	g.Dispatch(b)

	assert.InDelta(t, 0.1, deltaA, 1e-6, "delta is time since this signal last fired")
	assert.InDelta(t, 0.2, deltaB, 1e-6, "a signal that skipped a tick accumulates both")
	assert.Zero(t, g.TimeSinceLastRun(a))
}

func TestStaleSignalHandleNoOps(t *testing.T) {
	g := NewGraph(world.NewWorld())

	var stale Signal
	assert.Equal(t, Signal{}, g.SignalBefore(stale))
	assert.Equal(t, Signal{}, g.SignalAfter(stale))
	assert.Equal(t, Task{}, g.OnSignal(stale, Funcs{Once: func(*Context) {}}))
	g.Dispatch(stale) // must not panic
}

// movement is the attribute integrated by the movement task below.
type movement struct {
	Force    mgl32.Vec2
	Velocity mgl32.Vec2
	Mass     float32
	Decay    float32
}

// movementRunner integrates force into velocity each tick, then clears the
// accumulated force.
type movementRunner struct {
	BaseRunner
}

func (movementRunner) Query() (world.Query, bool) {
	return world.Query{Include: []string{"movement"}}, true
}

func (movementRunner) RunEach(e world.Entity, ctx *Context) {
	m, ok := world.Get[*movement](ctx.World, e, "movement")
	if !ok {
		return
	}
	accel := m.Force.Mul(1 / m.Mass)
	m.Velocity = m.Velocity.Add(accel.Mul(ctx.DeltaTime)).Mul(1 - m.Decay*ctx.DeltaTime)
	m.Force = mgl32.Vec2{}
}

func TestMovementIntegrationScenario(t *testing.T) {
	w := world.NewWorld()
	g := NewGraph(w)

	update := g.NewSignal()
	g.OnSignal(update, movementRunner{})

	e := w.Spawn()
	w.Set(e, "movement", &movement{Force: mgl32.Vec2{1, 0}, Mass: 1, Decay: 0})

	g.Advance(0.5)
	g.Dispatch(update)

	m, ok := world.Get[*movement](w, e, "movement")
	assert.True(t, ok)
	assert.InDelta(t, 0.5, m.Velocity.X(), 1e-6)
	assert.Zero(t, m.Velocity.Y())
	assert.Equal(t, mgl32.Vec2{}, m.Force)
}

func TestQueryTaskIterationAndContext(t *testing.T) {
	w := world.NewWorld()
	g := NewGraph(w)

	e1 := w.Spawn()
	e2 := w.Spawn()
	e3 := w.Spawn()
	w.Set(e1, "tag", 1)
	w.Set(e2, "tag", 2)
	w.Set(e3, "other", 3)

	var seen []world.Entity
	var onceEntities int
	s := g.NewSignal()
	q := world.Query{Include: []string{"tag"}}
	g.OnSignal(s, Funcs{
		Filter: &q,
		Each:   func(e world.Entity, _ *Context) { seen = append(seen, e) },
		Once:   func(ctx *Context) { onceEntities = len(ctx.Entities) },
	})

	g.Dispatch(s)
	assert.Equal(t, []world.Entity{e1, e2}, seen)
	assert.Equal(t, 2, onceEntities, "once pass receives the same context as the entity pass")
}

func TestTaskHandleReuseKeepsGenerations(t *testing.T) {
	g := NewGraph(world.NewWorld())
	s := g.NewSignal()

	first := g.OnSignal(s, Funcs{Once: func(*Context) {}})
	g.CancelTask(first)

	runs := 0
	second := g.OnSignal(s, Funcs{Once: func(*Context) { runs++ }})

	// The stale handle must not reach the slot its index now re-occupies.
	g.CancelTask(first)
	g.Dispatch(s)

	assert.Equal(t, 1, runs)
	assert.NotEqual(t, first, second)
}
