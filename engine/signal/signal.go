// Package signal implements the engine's frame scheduler: a DAG of named
// execution points ("signals") that tasks attach to. Signals fire once per
// external tick, at a fixed timestep, or relative to another signal via
// before/after chaining. All execution is single-threaded and cooperative;
// a task either completes within the tick or reschedules itself through the
// delay and fixed-timestep primitives.
package signal

import (
	"math"

	"github.com/eswaidner/zen/engine/world"
)

// defaultMaxSteps bounds worst-case catch-up work on a fixed-timestep signal
// after a stall.
const defaultMaxSteps = 10

// stepEpsilon pads the whole-step division on fixed-timestep signals against
// accumulated float error.
const stepEpsilon = 1e-9

// Signal is a generation-checked handle to one point in the per-tick
// execution timeline. The zero Signal is never valid.
type Signal struct {
	index      uint32
	generation uint32
}

// signalState is the arena slot backing a Signal handle. Signals are created
// once at setup and never destroyed; identity is immutable, the task list is
// not.
type signalState struct {
	generation uint32
	tasks      []Task
	precededBy []Signal
	followedBy []Signal
	sinceLast  float64
	fixed      *fixedStep
}

// fixedStep is the fixed-timestep descriptor for rate-limited signals.
type fixedStep struct {
	duration    float64
	maxSteps    int
	accumulator float64
}

// delayedTask is a one-shot task waiting on the global update accumulator.
type delayedTask struct {
	task     Task
	deadline float64
}

// Graph is the owning context for all signals and tasks. Construct one per
// runtime; independent Graphs never share state, so tests can build a fresh
// one per case.
type Graph struct {
	w         *world.World
	signals   []signalState
	tasks     []taskState
	freeTasks []uint32
	fixed     []Signal
	delayed   []delayedTask
	elapsed   float64
	lastDelta float64
}

// NewGraph creates an empty scheduler bound to the entity store its task
// queries will run against.
//
// Parameters:
//   - w: the entity store consulted by task queries
//
// Returns:
//   - *Graph: the newly created scheduler
func NewGraph(w *world.World) *Graph {
	return &Graph{w: w}
}

// SignalOption is a functional option for configuring a new Signal.
type SignalOption func(*signalState)

// WithFrequency makes the signal fixed-timestep: instead of firing once per
// external tick it accumulates elapsed time and fires floor(elapsed/duration)
// times per tick, clamped to its max step count. Leftover fractional time
// carries to the next tick. Values <= 0 are ignored.
//
// Parameters:
//   - hz: firing frequency in steps per second
//
// Returns:
//   - SignalOption: option function to apply
func WithFrequency(hz float64) SignalOption {
	return func(s *signalState) {
		if hz <= 0 {
			return
		}
		s.fixed = &fixedStep{duration: 1 / hz, maxSteps: defaultMaxSteps}
	}
}

// WithMaxSteps caps how many times a fixed-timestep signal may fire in one
// tick (default 10). Only meaningful together with WithFrequency; excess
// accumulated whole steps beyond the cap are discarded, not queued.
//
// Parameters:
//   - n: maximum steps per tick (values < 1 are ignored)
//
// Returns:
//   - SignalOption: option function to apply
func WithMaxSteps(n int) SignalOption {
	return func(s *signalState) {
		if s.fixed == nil || n < 1 {
			return
		}
		s.fixed.maxSteps = n
	}
}

// NewSignal allocates a signal with empty task and ordering lists.
//
// Parameters:
//   - options: functional options (fixed timestep configuration)
//
// Returns:
//   - Signal: handle to the new signal
func (g *Graph) NewSignal(options ...SignalOption) Signal {
	st := signalState{generation: 1}
	// WithMaxSteps must observe the fixedStep set by WithFrequency, so
	// options apply to the state before it enters the arena.
	for _, opt := range options {
		opt(&st)
	}
	g.signals = append(g.signals, st)
	s := Signal{index: uint32(len(g.signals) - 1), generation: st.generation}
	if st.fixed != nil {
		g.fixed = append(g.fixed, s)
	}
	return s
}

// SignalBefore creates a new signal wired into s's preceded-by list:
// dispatching s first dispatches the new signal (and all other preceding
// signals, depth-first in registration order). This lets a subsystem inject
// "run just before s" work without s knowing about it.
//
// Parameters:
//   - s: the signal to precede
//
// Returns:
//   - Signal: handle to the new signal, or the zero Signal if s is stale
func (g *Graph) SignalBefore(s Signal) Signal {
	if g.signalState(s) == nil {
		return Signal{}
	}
	created := g.NewSignal()
	st := g.signalState(s)
	st.precededBy = append(st.precededBy, created)
	return created
}

// SignalAfter creates a new signal wired into s's followed-by list:
// dispatching s runs its own tasks, then dispatches the new signal (and all
// other following signals, in registration order).
//
// Parameters:
//   - s: the signal to follow
//
// Returns:
//   - Signal: handle to the new signal, or the zero Signal if s is stale
func (g *Graph) SignalAfter(s Signal) Signal {
	if g.signalState(s) == nil {
		return Signal{}
	}
	created := g.NewSignal()
	st := g.signalState(s)
	st.followedBy = append(st.followedBy, created)
	return created
}

// Advance feeds one external time tick into the scheduler. It accumulates
// every signal's time-since-last-run and the global accumulator, fires any
// due one-shot delayed tasks (coarse per-tick resolution: firing time has up
// to one tick of positive skew), then pumps every fixed-timestep signal.
//
// Parameters:
//   - delta: elapsed time since the previous tick, in seconds
func (g *Graph) Advance(delta float64) {
	g.elapsed += delta
	g.lastDelta = delta
	for i := range g.signals {
		g.signals[i].sinceLast += delta
	}

	g.fireDelayed()

	for _, s := range g.fixed {
		g.pumpFixed(s, delta)
	}
}

// Dispatch executes one signal's tree for the current tick: all preceding
// signals depth-first in registration order, then the signal's own tasks,
// then all following signals. A stale handle is a silent no-op. Cycles in
// the before/after graph are a caller error and recurse unbounded.
//
// Parameters:
//   - s: the signal to execute
func (g *Graph) Dispatch(s Signal) {
	g.execute(s, 0)
}

func (g *Graph) execute(s Signal, fixedDelta float64) {
	st := g.signalState(s)
	if st == nil {
		return
	}
	delta := st.sinceLast
	st.sinceLast = 0
	pre := st.precededBy
	fol := st.followedBy

	for _, p := range pre {
		g.execute(p, fixedDelta)
	}
	g.runSignalTasks(s, delta, fixedDelta)
	for _, f := range fol {
		g.execute(f, fixedDelta)
	}
}

// runSignalTasks sweeps tombstoned tasks out of the signal's list, then runs
// the survivors. Liveness is re-checked immediately before each invocation
// so a task cancelled earlier in the same traversal never runs.
func (g *Graph) runSignalTasks(s Signal, delta, fixedDelta float64) {
	st := g.signalState(s)
	if st == nil {
		return
	}
	kept := st.tasks[:0]
	for _, t := range st.tasks {
		if g.taskState(t) != nil {
			kept = append(kept, t)
		}
	}
	st.tasks = kept

	// st may dangle once runners execute (a runner may create signals and
	// grow the arena), so only the captured slice is used from here on.
	for _, t := range kept {
		ts := g.taskState(t)
		if ts == nil {
			continue
		}
		g.run(ts.runner, delta, fixedDelta)
	}
}

// run invokes one runner: the per-entity pass over its query result first,
// then the once-per-invocation pass with the same context.
func (g *Graph) run(r Runner, delta, fixedDelta float64) {
	ctx := &Context{
		World:          g.w,
		DeltaTime:      float32(delta),
		FixedDeltaTime: float32(fixedDelta),
	}
	if q, ok := r.Query(); ok && g.w != nil {
		ctx.Entities = g.w.Query(q)
		for _, e := range ctx.Entities {
			r.RunEach(e, ctx)
		}
	}
	r.RunOnce(ctx)
}

// pumpFixed fires a fixed-timestep signal for every whole step the new tick
// uncovered, clamped to maxSteps. Fractional time always carries over; whole
// excess steps beyond the clamp are discarded so a stall cannot queue
// unbounded catch-up work.
func (g *Graph) pumpFixed(s Signal, delta float64) {
	st := g.signalState(s)
	if st == nil || st.fixed == nil {
		return
	}
	fx := st.fixed
	fx.accumulator += delta

	// The epsilon absorbs float error so e.g. a 0.05s carry plus a 0.05s
	// tick reliably uncovers one 0.1s step.
	steps := int(fx.accumulator/fx.duration + stepEpsilon)
	clamped := steps > fx.maxSteps
	if clamped {
		steps = fx.maxSteps
	}
	for i := 0; i < steps; i++ {
		g.execute(s, fx.duration)
	}

	fx.accumulator -= float64(steps) * fx.duration
	if fx.accumulator < 0 {
		fx.accumulator = 0
	}
	if clamped && fx.accumulator >= fx.duration {
		fx.accumulator = math.Mod(fx.accumulator, fx.duration)
	}
}

// fireDelayed runs every delayed task whose deadline the global accumulator
// has passed, auto-cancelling each one after it fires.
func (g *Graph) fireDelayed() {
	if len(g.delayed) == 0 {
		return
	}
	// Firing a delayed task may register new delayed tasks, so the pending
	// list is detached before iteration.
	pending := g.delayed
	g.delayed = nil
	for _, d := range pending {
		ts := g.taskState(d.task)
		if ts == nil {
			continue
		}
		if g.elapsed < d.deadline {
			g.delayed = append(g.delayed, d)
			continue
		}
		runner := ts.runner
		g.CancelTask(d.task)
		g.run(runner, g.lastDelta, 0)
	}
}

// TimeSinceLastRun reports how long ago the signal last executed, in seconds.
// Stale handles report 0.
//
// Parameters:
//   - s: the signal to inspect
//
// Returns:
//   - float64: accumulated time since the signal's last execution
func (g *Graph) TimeSinceLastRun(s Signal) float64 {
	st := g.signalState(s)
	if st == nil {
		return 0
	}
	return st.sinceLast
}

// Elapsed returns the global update accumulator in seconds.
//
// Returns:
//   - float64: total time fed through Advance
func (g *Graph) Elapsed() float64 {
	return g.elapsed
}

// signalState resolves a handle against the arena, validating its generation.
// Returns nil for the zero handle, out-of-range indices, and stale handles.
func (g *Graph) signalState(s Signal) *signalState {
	if s.generation == 0 || int(s.index) >= len(g.signals) {
		return nil
	}
	st := &g.signals[s.index]
	if st.generation != s.generation {
		return nil
	}
	return st
}
