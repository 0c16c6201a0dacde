// Package engine ties the runtime together: the attribute world, the signal
// graph that schedules work, the render graph that draws it, and the window
// that hosts it. One frame goroutine advances the graph and dispatches the
// update signal; the render signal is ordered after it and carries the frame
// executor.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/eswaidner/zen/engine/camera"
	"github.com/eswaidner/zen/engine/profiler"
	"github.com/eswaidner/zen/engine/renderer"
	"github.com/eswaidner/zen/engine/signal"
	"github.com/eswaidner/zen/engine/window"
	"github.com/eswaidner/zen/engine/world"
)

// engine is the implementation of the Engine interface.
// Coordinates the frame goroutine and the window message loop.
type engine struct {
	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	world    *world.World
	signals  *signal.Graph
	graphics renderer.Graphics

	// update fires once per frame with the frame delta; render is ordered
	// after it and carries the frame executor.
	update signal.Signal
	render signal.Signal

	profiler         *profiler.Profiler
	profilingEnabled bool

	frameLimit time.Duration // minimum frame duration; 0 = uncapped

	graphicsOptions []renderer.GraphicsOption
}

// Engine is the main entry point for the runtime.
// It owns the world, the signal graph, the graphics instance, and the window,
// and runs the frame loop that drives them.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// World returns the entity/attribute store shared by all tasks.
	//
	// Returns:
	//   - *world.World: the world instance
	World() *world.World

	// Signals returns the signal graph the frame loop advances and dispatches.
	// Use it to register gameplay tasks and derive ordered signals.
	//
	// Returns:
	//   - *signal.Graph: the signal graph
	Signals() *signal.Graph

	// Graphics returns the render graph instance.
	//
	// Returns:
	//   - renderer.Graphics: the graphics instance
	Graphics() renderer.Graphics

	// Camera returns the camera the frame executor renders with.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Update returns the per-frame gameplay signal. Tasks attached to it (or
	// to signals derived from it) run before the frame is rendered.
	//
	// Returns:
	//   - signal.Signal: the update signal
	Update() signal.Signal

	// Render returns the render signal, ordered after Update. The frame
	// executor is already attached; order additional tasks before or after it
	// with SignalBefore/SignalAfter.
	//
	// Returns:
	//   - signal.Signal: the render signal
	Render() signal.Signal

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the frame loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetFrameLimit(fps float64)

	// Run starts the frame loop and blocks until the window closes.
	Run()

	// Quit signals the frame goroutine to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Creates the window and graphics instance unless injected, builds the world
// and signal graph, and wires the frame executor to the render signal.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel: make(chan struct{}),
		profiler:    profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil && e.graphics == nil {
		e.window = window.NewWindow()
	}
	if e.graphics == nil {
		e.graphics = renderer.NewGraphics(e.window, e.graphicsOptions...)
	}

	e.world = world.NewWorld()
	e.signals = signal.NewGraph(e.world)
	e.update = e.signals.NewSignal()
	e.render = e.signals.SignalAfter(e.update)
	e.signals.OnSignal(e.render, e.graphics.FrameRunner())

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.graphics.Resize(width, height)
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) World() *world.World {
	return e.world
}

func (e *engine) Signals() *signal.Graph {
	return e.signals
}

func (e *engine) Graphics() renderer.Graphics {
	return e.graphics
}

func (e *engine) Camera() camera.Camera {
	return e.graphics.Camera()
}

func (e *engine) Update() signal.Signal {
	return e.update
}

func (e *engine) Render() signal.Signal {
	return e.render
}

func (e *engine) Run() {
	e.running = true
	e.wg.Add(2)
	go e.handleFrames()
	go e.handleQuit()

	// The message loop owns the main thread until the window closes.
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
}

// Quit signals the frame goroutine to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handleFrames runs the frame loop in its own goroutine: sample the frame
// delta, advance the signal graph, and dispatch the update signal. The render
// signal fires through the graph's ordering, so every frame collects and
// draws after gameplay tasks ran.
// Recovers from panics to avoid crashing the process and signals quit on
// recovery.
func (e *engine) handleFrames() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("frame goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastFrame := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			delta := now.Sub(lastFrame).Seconds()
			lastFrame = now

			e.signals.Advance(delta)
			e.signals.Dispatch(e.update)

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.frameLimit > 0 {
				elapsed := time.Since(lastFrame)
				if remaining := e.frameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the frame loop.
func (e *engine) SetFrameLimit(fps float64) {
	if fps <= 0 {
		e.frameLimit = 0
		return
	}
	e.frameLimit = time.Second / time.Duration(fps)
}
