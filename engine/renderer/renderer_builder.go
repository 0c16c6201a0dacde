package renderer

import "github.com/eswaidner/zen/engine/camera"

// GraphicsOption is a functional option applied to a Graphics instance during
// construction via NewGraphics.
type GraphicsOption func(*graphics)

// WithBackend injects a Backend instead of creating the WebGPU backend from
// the window surface. Used by tests to run the frame executor without a GPU.
//
// Parameters:
//   - b: the backend to use
//
// Returns:
//   - GraphicsOption: option function to apply
func WithBackend(b Backend) GraphicsOption {
	return func(g *graphics) {
		g.backend = b
	}
}

// WithCamera sets the camera the frame executor derives the view transform
// from. When not specified, a default camera at the origin is created.
//
// Parameters:
//   - cam: the camera to use
//
// Returns:
//   - GraphicsOption: option function to apply
func WithCamera(cam camera.Camera) GraphicsOption {
	return func(g *graphics) {
		g.cam = cam
	}
}

// WithPackWorkers sets the worker count of the instance packing pool.
// When not specified, the default is 4. Values < 1 are ignored.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - GraphicsOption: option function to apply
func WithPackWorkers(workers int) GraphicsOption {
	return func(g *graphics) {
		if workers > 0 {
			g.packWorkers = workers
		}
	}
}
