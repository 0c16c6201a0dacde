package signal

import "github.com/eswaidner/zen/engine/world"

// Task is a generation-checked handle to a registered unit of work. The zero
// Task is never valid. Cancelling a task invalidates its handle; a lookup
// through a stale handle is a silent no-op.
type Task struct {
	index      uint32
	generation uint32
}

// taskState is the arena slot backing a Task handle. Cancelled slots bump
// their generation and return to the free list for reuse.
type taskState struct {
	generation uint32
	live       bool
	runner     Runner
}

// Context is passed to every task invocation.
//
// Entities is the task's query result, or empty when the task declared no
// query. DeltaTime is the time since the invoking signal last fired, not a
// global frame delta, which matters for signals triggered at irregular or
// sub-frame rates. FixedDeltaTime is the step duration when invoked from a
// fixed-timestep signal, else 0.
type Context struct {
	World          *world.World
	Entities       []world.Entity
	DeltaTime      float32
	FixedDeltaTime float32
}

// Runner is the fixed method surface of a task. RunEach is invoked once per
// entity matching the query, in the store's iteration order; RunOnce is
// invoked exactly once afterwards with the same context. Implement it per
// call site, or embed BaseRunner and override the methods you need.
type Runner interface {
	// Query returns the entity filter driving the per-entity pass, and
	// whether the task has one at all. Tasks without a query skip RunEach.
	Query() (world.Query, bool)

	// RunEach is invoked once per matching entity.
	RunEach(e world.Entity, ctx *Context)

	// RunOnce is invoked exactly once per task invocation, after RunEach.
	RunOnce(ctx *Context)
}

// BaseRunner is a no-op Runner intended for embedding, so call-site runner
// types only implement the methods they use.
type BaseRunner struct{}

// Query implements Runner with no entity filter.
func (BaseRunner) Query() (world.Query, bool) { return world.Query{}, false }

// RunEach implements Runner as a no-op.
func (BaseRunner) RunEach(world.Entity, *Context) {}

// RunOnce implements Runner as a no-op.
func (BaseRunner) RunOnce(*Context) {}

// Funcs adapts plain functions to the Runner interface for call sites where
// a named type would be noise (tests, examples, small glue tasks).
type Funcs struct {
	// Filter is the optional entity query; nil means no per-entity pass.
	Filter *world.Query

	// Each is invoked once per entity matching Filter.
	Each func(e world.Entity, ctx *Context)

	// Once is invoked exactly once per invocation, after Each.
	Once func(ctx *Context)
}

var _ Runner = Funcs{}

// Query implements Runner.
func (f Funcs) Query() (world.Query, bool) {
	if f.Filter == nil {
		return world.Query{}, false
	}
	return *f.Filter, true
}

// RunEach implements Runner.
func (f Funcs) RunEach(e world.Entity, ctx *Context) {
	if f.Each != nil {
		f.Each(e, ctx)
	}
}

// RunOnce implements Runner.
func (f Funcs) RunOnce(ctx *Context) {
	if f.Once != nil {
		f.Once(ctx)
	}
}

// OnSignal registers a task on a signal. Tasks run in registration order
// each time the signal executes. Registering on a stale signal handle is a
// silent no-op returning the zero Task.
//
// Parameters:
//   - s: the signal to attach to
//   - r: the task's runner
//
// Returns:
//   - Task: handle for later cancellation, or the zero Task if s is stale
func (g *Graph) OnSignal(s Signal, r Runner) Task {
	st := g.signalState(s)
	if st == nil || r == nil {
		return Task{}
	}
	t := g.allocTask(r)
	st.tasks = append(st.tasks, t)
	return t
}

// AfterDelay registers a one-shot task that fires the first time the global
// update accumulator exceeds the given delay, then is auto-cancelled. The
// deadline is checked against the coarse per-tick delta, so the firing time
// has up to one tick of positive skew.
//
// Parameters:
//   - seconds: minimum delay before the task fires
//   - r: the task's runner
//
// Returns:
//   - Task: handle usable to cancel the task before it fires
func (g *Graph) AfterDelay(seconds float64, r Runner) Task {
	if r == nil {
		return Task{}
	}
	t := g.allocTask(r)
	g.delayed = append(g.delayed, delayedTask{task: t, deadline: g.elapsed + seconds})
	return t
}

// CancelTask removes a task from the scheduler's live set. The task is
// guaranteed not to run again once CancelTask returns; its entry in any
// signal's task list is pruned lazily on that signal's next traversal.
// Cancelling a stale handle is a silent no-op.
//
// Parameters:
//   - t: the task to cancel
func (g *Graph) CancelTask(t Task) {
	ts := g.taskState(t)
	if ts == nil {
		return
	}
	ts.live = false
	ts.runner = nil
	ts.generation++
	g.freeTasks = append(g.freeTasks, t.index)
}

func (g *Graph) allocTask(r Runner) Task {
	if n := len(g.freeTasks); n > 0 {
		index := g.freeTasks[n-1]
		g.freeTasks = g.freeTasks[:n-1]
		ts := &g.tasks[index]
		ts.live = true
		ts.runner = r
		return Task{index: index, generation: ts.generation}
	}
	g.tasks = append(g.tasks, taskState{generation: 1, live: true, runner: r})
	return Task{index: uint32(len(g.tasks) - 1), generation: 1}
}

// taskState resolves a handle against the arena, validating its generation.
// Returns nil for the zero handle, out-of-range indices, stale handles, and
// cancelled slots.
func (g *Graph) taskState(t Task) *taskState {
	if t.generation == 0 || int(t.index) >= len(g.tasks) {
		return nil
	}
	ts := &g.tasks[t.index]
	if ts.generation != t.generation || !ts.live {
		return nil
	}
	return ts
}
