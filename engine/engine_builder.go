package engine

import (
	"time"

	"github.com/eswaidner/zen/engine/renderer"
	"github.com/eswaidner/zen/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithGraphics injects a pre-built graphics instance instead of letting the
// engine create one from the window surface. Intended for tests running
// against a non-GPU backend.
//
// Parameters:
//   - g: a pre-configured Graphics instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGraphics(g renderer.Graphics) EngineBuilderOption {
	return func(e *engine) {
		e.graphics = g
	}
}

// WithGraphicsOptions passes options through to the graphics instance the
// engine creates. Ignored when WithGraphics is also supplied.
//
// Parameters:
//   - options: graphics options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGraphicsOptions(options ...renderer.GraphicsOption) EngineBuilderOption {
	return func(e *engine) {
		e.graphicsOptions = append(e.graphicsOptions, options...)
	}
}

// WithFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the frame loop (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.frameLimit = 0
			return
		}
		e.frameLimit = time.Second / time.Duration(fps)
	}
}
